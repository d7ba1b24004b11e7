package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/shopstate/internal/localstore"
	"github.com/roach88/shopstate/internal/model"
)

type action func(ctx context.Context, h *Harness, a args) error

// setupActions run before the aggregates exist.
var setupActions = map[string]action{
	"local.seed":               seedLocal,
	"remote.seed":              seedRemote,
	"remote.fail":              failRemote,
	"remote.fail_insert_after": failInsertAfter,
}

// flowActions are the invocations a flow may use.
var flowActions = map[string]action{
	"sign_in":                  signIn,
	"sign_out":                 signOut,
	"retry":                    retry,
	"cart.add":                 cartAdd,
	"cart.remove":              cartRemove,
	"cart.update_quantity":     cartUpdateQuantity,
	"cart.clear":               cartClear,
	"favorites.add":            favoritesAdd,
	"favorites.remove":         favoritesRemove,
	"favorites.toggle":         favoritesToggle,
	"remote.fail":              failRemote,
	"remote.recover":           recoverRemote,
	"remote.fail_insert_after": failInsertAfter,
}

func seedLocal(ctx context.Context, h *Harness, a args) error {
	var key string
	switch a.str("key") {
	case "cart":
		key = localstore.CartKey
	case "favorites":
		key = localstore.FavoritesKey
	default:
		return fmt.Errorf("key must be cart or favorites, got %q", a.str("key"))
	}
	return h.backend.Put(ctx, key, a.str("value"))
}

func seedRemote(ctx context.Context, h *Harness, a args) error {
	id := model.Identity(a.str("identity"))
	if !id.Present() {
		return errors.New("identity is required")
	}
	h.identities[id] = true
	h.remote.Seed(id, a.strs("products")...)
	return nil
}

func failRemote(ctx context.Context, h *Harness, a args) error {
	h.remote.Fail(a.str("op"), errors.New(a.strOr("error", "unavailable")))
	return nil
}

func recoverRemote(ctx context.Context, h *Harness, a args) error {
	h.remote.Fail(a.str("op"), nil)
	h.remote.FailInsertAfter(-1, nil)
	return nil
}

func failInsertAfter(ctx context.Context, h *Harness, a args) error {
	h.remote.FailInsertAfter(a.int("rows"), errors.New(a.strOr("error", "unavailable")))
	return nil
}

func signIn(ctx context.Context, h *Harness, a args) error {
	id := model.Identity(a.str("identity"))
	if !id.Present() {
		return errors.New("identity is required")
	}
	h.identities[id] = true
	h.identity.Set(id)
	return h.takeErr()
}

func signOut(ctx context.Context, h *Harness, a args) error {
	h.identity.SignOut()
	return h.takeErr()
}

func retry(ctx context.Context, h *Harness, a args) error {
	return h.session.Retry(ctx)
}

func cartAdd(ctx context.Context, h *Harness, a args) error {
	return h.cart.Add(ctx, model.CartLine{
		ProductID: a.str("id"),
		Size:      a.str("size"),
		Color:     a.str("color"),
		Name:      a.str("name"),
		Price:     a.float("price"),
		Image:     a.str("image"),
		Quantity:  a.int("quantity"),
	})
}

func cartRemove(ctx context.Context, h *Harness, a args) error {
	h.cart.Remove(ctx, model.NewCartKey(a.str("id"), a.str("size")))
	return nil
}

func cartUpdateQuantity(ctx context.Context, h *Harness, a args) error {
	h.cart.UpdateQuantity(ctx, model.NewCartKey(a.str("id"), a.str("size")), a.int("quantity"))
	return nil
}

func cartClear(ctx context.Context, h *Harness, a args) error {
	return h.cart.Clear(ctx)
}

func favoritesAdd(ctx context.Context, h *Harness, a args) error {
	return h.favorites.Add(ctx, a.str("id"))
}

func favoritesRemove(ctx context.Context, h *Harness, a args) error {
	return h.favorites.Remove(ctx, a.str("id"))
}

func favoritesToggle(ctx context.Context, h *Harness, a args) error {
	return h.favorites.Toggle(ctx, a.str("id"))
}

// args reads typed values out of decoded YAML.
type args map[string]interface{}

func (a args) str(key string) string {
	return a.strOr(key, "")
}

func (a args) strOr(key, def string) string {
	if v, ok := a[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return def
}

func (a args) int(key string) int {
	switch v := a[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func (a args) float(key string) float64 {
	switch v := a[key].(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	}
	return 0
}

func (a args) strs(key string) []string {
	list, _ := a[key].([]interface{})
	out := make([]string, 0, len(list))
	for _, v := range list {
		out = append(out, fmt.Sprint(v))
	}
	return out
}

func containsString(s, sub string) bool {
	return strings.Contains(s, sub)
}
