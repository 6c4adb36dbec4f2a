package tui

import (
	"bytes"
	"testing"

	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutesMarkdown(t *testing.T) {
	md := RoutesMarkdown(domain.DefaultRoutes())

	assert.Contains(t, md, "| Method | Path | Action |")
	assert.Contains(t, md, "| GET | `/api/products/:id` | `products.findProduct` |")
	assert.Contains(t, md, "| POST | `/api/products/seed` | `products.seedProducts` |")

	assert.Contains(t, RoutesMarkdown(nil), "No routes configured")
}

func TestServicesMarkdown(t *testing.T) {
	md := ServicesMarkdown([]domain.ServiceRecord{
		{Name: "products", NodeID: "node-3", Actions: []string{"listProducts", "findProduct"}, Dependencies: []string{"db"}, Readiness: domain.ReadinessReady},
		{Name: "db", NodeID: "node-2", Actions: []string{"find"}, Readiness: domain.ReadinessFailed},
	})

	assert.Contains(t, md, "| products | node-3 | ready | db | listProducts, findProduct |")
	assert.Contains(t, md, "| db | node-2 | failed | - | find |")
}

func TestNewRenderer_Plain(t *testing.T) {
	render := NewRenderer(false)
	out, err := render("# Title")
	require.NoError(t, err)
	assert.Equal(t, "# Title", out)
}

func TestNewRenderer_Styled(t *testing.T) {
	render := NewRenderer(true)
	out, err := render("# Gateway routes")
	require.NoError(t, err)
	assert.Contains(t, out, "Gateway routes")
}

func TestWriteBanner(t *testing.T) {
	var buf bytes.Buffer
	WriteBanner(&buf, termenv.Ascii, "v1.2.3")

	assert.Contains(t, buf.String(), "service mesh v1.2.3")
	assert.NotContains(t, buf.String(), "\x1b[", "ascii profile emits no escape codes")
}
