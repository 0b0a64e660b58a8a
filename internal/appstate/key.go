package appstate

import (
	"context"
	"fmt"
)

type keyID struct{ provider string }

// Key is a typed context accessor for the state of one provider
type Key[T any] struct {
	id *keyID
}

// NewKey creates an accessor labelled with the owning provider's name
func NewKey[T any](provider string) Key[T] {
	return Key[T]{id: &keyID{provider: provider}}
}

// Provider returns the owning provider's name
func (k Key[T]) Provider() string { return k.id.provider }

// With returns a context carrying v
func (k Key[T]) With(ctx context.Context, v T) context.Context {
	return context.WithValue(ctx, k.id, v)
}

// From returns the value and whether the provider placed one
func (k Key[T]) From(ctx context.Context) (T, bool) {
	v, ok := ctx.Value(k.id).(T)
	return v, ok
}

// Must returns the value or panics naming the missing provider
func (k Key[T]) Must(ctx context.Context) T {
	v, ok := k.From(ctx)
	if !ok {
		panic(fmt.Sprintf("%s: used outside its provider", k.id.provider))
	}
	return v
}
