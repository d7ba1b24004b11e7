package localstore

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/shopstate/internal/model"
	"github.com/roach88/shopstate/internal/schema"
)

// Codec describes the elements of one collection.
type Codec[T any] struct {
	// Field is the array field inside the legacy {"state":{...}} envelope.
	Field string

	// Schema validates each raw element before decoding. Optional.
	Schema *schema.Validator

	// Check validates each decoded element. Optional.
	Check func(T) error
}

// decode validates and decodes one raw element.
func (c Codec[T]) decode(raw json.RawMessage) (T, error) {
	var zero T
	if c.Schema != nil {
		if err := c.Schema.Validate(raw); err != nil {
			return zero, err
		}
	}

	var item T
	if err := json.Unmarshal(raw, &item); err != nil {
		return zero, fmt.Errorf("decode element: %w", err)
	}
	if c.Check != nil {
		if err := c.Check(item); err != nil {
			return zero, err
		}
	}
	return item, nil
}

// CartLines is the codec for the persisted cart.
func CartLines() Codec[model.CartLine] {
	return Codec[model.CartLine]{
		Field:  "items",
		Schema: schema.MustNew(schema.CartLine),
		Check:  model.CartLine.Validate,
	}
}

// Favorites is the codec for the persisted favorites list.
func Favorites() Codec[model.FavoriteEntry] {
	return Codec[model.FavoriteEntry]{
		Field:  "favorites",
		Schema: schema.MustNew(schema.FavoriteID),
		Check:  model.FavoriteEntry.Validate,
	}
}
