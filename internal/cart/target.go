package cart

import (
	"context"
	"slices"

	"github.com/roach88/shopstate/internal/model"
)

// target is the cart's side of the migration. The authoritative store is
// the in-memory state, so every step is a state transform.
type target struct {
	c *Cart
}

// Attach starts an empty authoritative cart and parks the anonymous lines as
// pending.
func (t target) Attach(_ context.Context, id model.Identity) {
	t.c.writeMu.Lock()
	defer t.c.writeMu.Unlock()

	t.c.state.Update(func(s State) State {
		s.Identity = id
		s.Pending = Merge(s.Pending, s.Lines)
		s.Lines = []model.CartLine{}
		s.promoted = nil
		return s
	})
}

// Merge sums local into whatever the authoritative cart holds now. Pending
// lines win over local lines with the same key, since a failed anonymous
// write can leave the device copy behind. The whole merge is one
// transform, so it either applies completely or not at all.
func (t target) Merge(ctx context.Context, id model.Identity, local []model.CartLine) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	applied := false
	t.c.state.Update(func(s State) State {
		if s.Identity != id {
			return s
		}
		applied = true
		s.Lines = Merge(s.Lines, skipKeys(preferPending(s.Pending, local), s.promoted))
		s.Pending = nil
		s.promoted = nil
		return s
	})
	if !applied {
		return ErrSuperseded
	}
	return nil
}

// Reset drops the in-memory cart and reloads the anonymous one.
func (t target) Reset(ctx context.Context) {
	t.c.writeMu.Lock()
	defer t.c.writeMu.Unlock()

	lines := Merge(nil, t.c.local.Read(ctx))
	t.c.state.Update(func(s State) State {
		s.Identity = model.NoIdentity
		s.Lines = lines
		s.Pending = nil
		s.promoted = nil
		s.LastAdded = nil
		return s
	})
}

// source is the collection the coordinator migrates: the device copy plus
// pending lines that never reached it.
type source struct {
	c *Cart
}

func (src source) Load(ctx context.Context) ([]model.CartLine, error) {
	lines, err := src.c.local.Load(ctx)
	if err != nil {
		return nil, err
	}
	return preferPending(src.c.state.Get().Pending, lines), nil
}

func (src source) Clear(ctx context.Context) error {
	return src.c.local.Clear(ctx)
}

// preferPending returns pending followed by the local lines whose key is
// not pending.
func preferPending(pending, local []model.CartLine) []model.CartLine {
	out := Merge(nil, pending)
	for _, l := range Merge(nil, local) {
		if indexOf(out, l.Key()) < 0 {
			out = append(out, l)
		}
	}
	return out
}

func skipKeys(lines []model.CartLine, keys []model.CartKey) []model.CartLine {
	if len(keys) == 0 {
		return lines
	}
	out := make([]model.CartLine, 0, len(lines))
	for _, l := range lines {
		if !slices.Contains(keys, l.Key()) {
			out = append(out, l)
		}
	}
	return out
}
