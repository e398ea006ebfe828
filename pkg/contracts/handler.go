package contracts

import (
	"context"

	"github.com/julienschmidt/httprouter"
)

type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// Drainer finishes in-flight work before the process exits.
type Drainer interface {
	Close(ctx context.Context) error
}

type DrainerFunc func(ctx context.Context) error

func (f DrainerFunc) Close(ctx context.Context) error {
	return f(ctx)
}
