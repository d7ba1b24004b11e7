package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCartLine is returned by CartLine.Validate.
var ErrInvalidCartLine = errors.New("cart line: invalid")

// CartKey identifies a cart line. At most one line exists per key.
type CartKey struct {
	ProductID string
	Size      string
}

// NewCartKey builds a normalised key.
func NewCartKey(productID, size string) CartKey {
	return CartKey{ProductID: NormalizeKey(productID), Size: NormalizeKey(size)}
}

// String renders the key as "productId/size" for logs and traces.
func (k CartKey) String() string {
	return k.ProductID + "/" + k.Size
}

// CartLine is one product/size selection in a cart.
//
// JSON field names match the device-local format written by the storefront.
type CartLine struct {
	ProductID string  `json:"id"`
	Size      string  `json:"size"`
	Color     string  `json:"color"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image"`
	Quantity  int     `json:"quantity"`
}

// Key returns the normalised identity key of the line.
func (l CartLine) Key() CartKey {
	return NewCartKey(l.ProductID, l.Size)
}

// Normalized returns a copy whose key fields are normalised.
func (l CartLine) Normalized() CartLine {
	l.ProductID = NormalizeKey(l.ProductID)
	l.Size = NormalizeKey(l.Size)
	return l
}

// Subtotal is price times quantity.
func (l CartLine) Subtotal() float64 {
	return l.Price * float64(l.Quantity)
}

// Validate checks the rules for a stored line.
func (l CartLine) Validate() error {
	if NormalizeKey(l.ProductID) == "" {
		return fmt.Errorf("%w: empty product id", ErrInvalidCartLine)
	}
	if l.Price < 0 || math.IsNaN(l.Price) || math.IsInf(l.Price, 0) {
		return fmt.Errorf("%w: price %v", ErrInvalidCartLine, l.Price)
	}
	if l.Quantity <= 0 {
		return fmt.Errorf("%w: quantity %d", ErrInvalidCartLine, l.Quantity)
	}
	return nil
}

// CloneCartLines returns an independent copy of lines.
func CloneCartLines(lines []CartLine) []CartLine {
	out := make([]CartLine, len(lines))
	copy(out, lines)
	return out
}
