package generator

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator is an interface that defines a method to generate a new value of type T.
// This can be used to generate unique identifiers, lazily iterate, etc.
type Generator[T any] interface {
	Next() (T, error)
}

// UUIDV4Generator is a generator that produces UUIDv4 strings.
// Journal events and interaction flows are keyed with it.
type UUIDV4Generator struct{}

func (g *UUIDV4Generator) Next() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

var _ Generator[string] = &UUIDV4Generator{}

// SequenceGenerator produces "<prefix>-<n>" with n counting up from 1.
// Recovery sequences are tagged with it so their log lines can be correlated.
type SequenceGenerator struct {
	Prefix string
	n      atomic.Uint64
}

func (g *SequenceGenerator) Next() (string, error) {
	return fmt.Sprintf("%s-%d", g.Prefix, g.n.Add(1)), nil
}

var _ Generator[string] = &SequenceGenerator{}

// Must returns the next value of g and panics if it fails.
func Must[T any](g Generator[T]) T {
	v, err := g.Next()
	if err != nil {
		panic(fmt.Sprintf("generator: %v", err))
	}
	return v
}
