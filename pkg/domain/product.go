package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// priceScale matches the DECIMAL(10,2) column of the product table.
const priceScale = 2

// Price is a fixed-point amount with two decimal places. It is encoded in JSON
// as a number, not a string.
type Price struct {
	decimal.Decimal
}

// ParsePrice parses a decimal string such as "5.99".
func ParsePrice(s string) (Price, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Price{}, fmt.Errorf("invalid price %q: %w", s, err)
	}
	return Price{d.Round(priceScale)}, nil
}

// MustPrice is ParsePrice for constants; it panics on malformed input.
func MustPrice(s string) Price {
	p, err := ParsePrice(s)
	if err != nil {
		panic(err)
	}
	return p
}

// PriceFromFloat rounds f to two decimal places.
func PriceFromFloat(f float64) Price {
	return Price{decimal.NewFromFloat(f).Round(priceScale)}
}

// Equal reports whether both prices hold the same amount.
func (p Price) Equal(other Price) bool {
	return p.Decimal.Equal(other.Decimal)
}

func (p Price) String() string {
	return p.StringFixed(priceScale)
}

func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(p.StringFixed(priceScale)), nil
}

func (p *Price) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "null" || raw == "" {
		p.Decimal = decimal.Zero
		return nil
	}
	parsed, err := ParsePrice(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Product is the entity persisted by the "db" service.
type Product struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Price    Price  `json:"price"`
	Quantity int    `json:"quantity"`
}

// ProductInput holds the fields accepted when creating a product.
type ProductInput struct {
	Name     string `json:"name"`
	Price    Price  `json:"price"`
	Quantity int    `json:"quantity"`
}

// ProductPatch holds the fields of an update; nil fields are left unchanged.
type ProductPatch struct {
	Name     *string `json:"name,omitempty"`
	Price    *Price  `json:"price,omitempty"`
	Quantity *int    `json:"quantity,omitempty"`
}

// Apply returns p with the patch applied.
func (patch ProductPatch) Apply(p Product) Product {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Quantity != nil {
		p.Quantity = *patch.Quantity
	}
	return p
}

// NewProduct builds the entity stored for an input under the given id.
func (in ProductInput) NewProduct(id int) Product {
	return Product{ID: id, Name: in.Name, Price: in.Price, Quantity: in.Quantity}
}
