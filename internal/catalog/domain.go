// Package catalog exposes the read-only variant lookup the engine needs for
// authoritative pricing. Catalog maintenance lives elsewhere.
package catalog

import "errors"

// Variant is a sellable SKU of a product.
type Variant struct {
	ID        int64
	ProductID int64
	SKU       string
	Name      string
	// Price is the current unit price in currency minor units.
	Price  int64
	Active bool
}

// ErrVariantNotFound indicates the variant does not exist.
var ErrVariantNotFound = errors.New("catalog: variant not found")
