// Package catalog is the read-only view of products and bundles owned by the admin CRUD
// service. Checkout prices always come from here, never from the client.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/tbeaudouin05/stripe-storefront/api/apperrors"
	stripeapp "github.com/tbeaudouin05/stripe-storefront/api/services/stripe/app"
)

// Product is a sellable item. Price is in minor units.
type Product struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	ShortDescription string `json:"shortDescription"`
	Price            int64  `json:"price"`
	Currency         string `json:"currency"`
	RequiresInvite   bool   `json:"requiresInvite"`
	IsFree           bool   `json:"isFree"`
	DownloadHandle   string `json:"downloadHandle,omitempty"`
}

// Bundle sells several products at one price.
type Bundle struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       int64    `json:"price"`
	Currency    string   `json:"currency"`
	ProductIDs  []string `json:"productIds"`
}

// Catalog looks products and bundles up by id, returning apperrors.ErrNotFound for unknown ids.
type Catalog interface {
	Product(ctx context.Context, id string) (Product, error)
	Bundle(ctx context.Context, id string) (Bundle, error)
}

// Kind distinguishes cart entries.
type Kind string

const (
	KindProduct Kind = "product"
	KindBundle  Kind = "bundle"
)

// CartEntry references a catalog item by id. An omitted Quantity means one unit.
type CartEntry struct {
	Kind     Kind   `json:"type"`
	ID       string `json:"id"`
	Quantity *int64 `json:"quantity,omitempty"`
}

// LineItems prices a cart from the catalog.
func LineItems(ctx context.Context, c Catalog, cart []CartEntry) ([]stripeapp.LineItem, error) {
	if len(cart) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", apperrors.ErrInvalidInput)
	}
	items := make([]stripeapp.LineItem, 0, len(cart))
	for _, entry := range cart {
		qty := int64(1)
		if entry.Quantity != nil {
			qty = *entry.Quantity
		}
		if qty < 1 {
			return nil, fmt.Errorf("%w: quantity for %q must be at least 1", apperrors.ErrInvalidInput, entry.ID)
		}
		switch entry.Kind {
		case KindProduct, "":
			p, err := c.Product(ctx, entry.ID)
			if err != nil {
				return nil, err
			}
			price := p.Price
			if p.IsFree {
				price = 0
			}
			items = append(items, stripeapp.LineItem{
				ProductName: p.Title,
				Description: p.ShortDescription,
				Currency:    p.Currency,
				Price:       price,
				Quantity:    qty,
				ProductIDs:  []string{p.ID},
			})
		case KindBundle:
			b, err := c.Bundle(ctx, entry.ID)
			if err != nil {
				return nil, err
			}
			items = append(items, stripeapp.LineItem{
				ProductName: b.Name,
				Description: b.Description,
				Currency:    b.Currency,
				Price:       b.Price,
				Quantity:    qty,
				ProductIDs:  b.ProductIDs,
			})
		default:
			return nil, fmt.Errorf("%w: unknown cart entry type %q", apperrors.ErrInvalidInput, entry.Kind)
		}
	}
	return items, nil
}

// CartTotal is the exact total of a cart in minor units.
func CartTotal(ctx context.Context, c Catalog, cart []CartEntry) (int64, string, error) {
	items, err := LineItems(ctx, c, cart)
	if err != nil {
		return 0, "", err
	}
	return stripeapp.Total(items)
}

// Static is an in-memory catalog, loaded from a JSON file or built in tests.
type Static struct {
	mu       sync.RWMutex
	products map[string]Product
	bundles  map[string]Bundle
}

func NewStatic(products []Product, bundles []Bundle) *Static {
	s := &Static{products: map[string]Product{}, bundles: map[string]Bundle{}}
	for _, p := range products {
		p.Currency = strings.ToLower(p.Currency)
		s.products[p.ID] = p
	}
	for _, b := range bundles {
		b.Currency = strings.ToLower(b.Currency)
		s.bundles[b.ID] = b
	}
	return s
}

// LoadFile reads {"products": [...], "bundles": [...]} from path.
func LoadFile(path string) (*Static, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var doc struct {
		Products []Product `json:"products"`
		Bundles  []Bundle  `json:"bundles"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog file %s: %w", path, err)
	}
	for _, p := range doc.Products {
		if p.ID == "" || p.Price < 0 {
			return nil, fmt.Errorf("catalog file %s: invalid product %q", path, p.ID)
		}
	}
	return NewStatic(doc.Products, doc.Bundles), nil
}

func (s *Static) Product(_ context.Context, id string) (Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return Product{}, fmt.Errorf("%w: product %s", apperrors.ErrNotFound, id)
	}
	return p, nil
}

func (s *Static) Bundle(_ context.Context, id string) (Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bundles[id]
	if !ok {
		return Bundle{}, fmt.Errorf("%w: bundle %s", apperrors.ErrNotFound, id)
	}
	b.ProductIDs = append([]string(nil), b.ProductIDs...)
	return b, nil
}
