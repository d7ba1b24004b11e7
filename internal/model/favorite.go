package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidFavorite is returned for empty product ids.
var ErrInvalidFavorite = errors.New("favorite: invalid")

// FavoriteEntry is one favorited product. It is scoped to an identity only
// when held by the authoritative store.
type FavoriteEntry struct {
	ProductID string
}

// NewFavorite builds an entry with a normalised product id.
func NewFavorite(productID string) FavoriteEntry {
	return FavoriteEntry{ProductID: NormalizeKey(productID)}
}

// Key returns the normalised identity key.
func (f FavoriteEntry) Key() string {
	return NormalizeKey(f.ProductID)
}

// Validate rejects entries without a product id.
func (f FavoriteEntry) Validate() error {
	if f.Key() == "" {
		return fmt.Errorf("%w: empty product id", ErrInvalidFavorite)
	}
	return nil
}

// MarshalJSON encodes the entry as a bare product-id string.
func (f FavoriteEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.ProductID)
}

// UnmarshalJSON decodes a bare product-id string.
func (f *FavoriteEntry) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFavorite, err)
	}
	f.ProductID = id
	return nil
}

// FavoriteKeys returns the normalised keys of entries in order.
func FavoriteKeys(entries []FavoriteEntry) []string {
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key())
	}
	return keys
}
