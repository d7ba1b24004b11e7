package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shopstate/internal/model"
)

type recorder struct {
	name  string
	err   error
	calls *[]string
}

func (r recorder) Name() string {
	return r.name
}

func (r recorder) OnIdentityChanged(ctx context.Context, id model.Identity) error {
	*r.calls = append(*r.calls, r.name+":"+string(id))
	return r.err
}

func (r recorder) Retry(ctx context.Context) error {
	*r.calls = append(*r.calls, r.name+":retry")
	return r.err
}

func TestIdentitySource_FiresOnChangeOnly(t *testing.T) {
	src := NewIdentitySource()
	var seen []model.Identity
	src.Subscribe(func(id model.Identity) { seen = append(seen, id) })

	assert.True(t, src.Set("alice"))
	assert.False(t, src.Set("alice"))
	assert.False(t, src.Set(" alice "))
	assert.True(t, src.SignOut())
	assert.False(t, src.Set("  "))

	assert.Equal(t, []model.Identity{"alice", model.NoIdentity}, seen)
	assert.Equal(t, model.NoIdentity, src.Current())
}

func TestIdentitySource_Unsubscribe(t *testing.T) {
	src := NewIdentitySource()
	var a, b int
	cancelA := src.Subscribe(func(model.Identity) { a++ })
	src.Subscribe(func(model.Identity) { b++ })

	src.Set("alice")
	cancelA()
	cancelA()
	src.SignOut()

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestSession_DispatchOrder(t *testing.T) {
	var calls []string
	s := New([]Participant{
		recorder{name: "cart", calls: &calls},
		recorder{name: "favorites", calls: &calls},
	})

	require.NoError(t, s.IdentityChanged(context.Background(), "alice"))
	require.NoError(t, s.Retry(context.Background()))

	assert.Equal(t, []string{"cart:alice", "favorites:alice", "cart:retry", "favorites:retry"}, calls)
}

func TestSession_ErrorsDoNotBlockOthers(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	s := New([]Participant{
		recorder{name: "cart", err: boom, calls: &calls},
		recorder{name: "favorites", calls: &calls},
	})

	err := s.IdentityChanged(context.Background(), "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "cart: boom")
	assert.Equal(t, []string{"cart:alice", "favorites:alice"}, calls)
}

func TestSession_Bind(t *testing.T) {
	var calls []string
	var errs []error
	s := New([]Participant{recorder{name: "cart", err: errors.New("x"), calls: &calls}})
	src := NewIdentitySource()

	cancel := s.Bind(context.Background(), src, func(err error) { errs = append(errs, err) })
	src.Set("alice")
	src.Set("alice")
	cancel()
	src.SignOut()

	assert.Equal(t, []string{"cart:alice"}, calls)
	assert.Len(t, errs, 1)
}
