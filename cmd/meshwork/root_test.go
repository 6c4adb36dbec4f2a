package main

import (
	"bytes"
	"testing"

	"github.com/aretw0/meshwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "meshwork version "+meshwork.Version+"\n", out)
}

func TestCallCommand_DefaultMesh(t *testing.T) {
	out, err := execute(t, "call", "products.seedProducts")
	require.NoError(t, err)
	assert.Contains(t, out, "Products seeded!")
}

func TestCallCommand_RequiresTarget(t *testing.T) {
	_, err := execute(t, "call")
	assert.Error(t, err)
}

func TestRoutesCommand_Plain(t *testing.T) {
	out, err := execute(t, "routes", "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "products.findProduct")
}
