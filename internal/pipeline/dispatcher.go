package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/cesargomez89/flixetl/internal/domain"
)

type Handler interface {
	Handle(ctx context.Context, task *domain.Task, logger *slog.Logger) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, task *domain.Task, logger *slog.Logger) error

func (f HandlerFunc) Handle(ctx context.Context, task *domain.Task, logger *slog.Logger) error {
	return f(ctx, task, logger)
}

type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]Handler),
	}
}

func (d *Dispatcher) Register(kind string, handler Handler) {
	d.handlers[kind] = handler
}

func (d *Dispatcher) Has(kind string) bool {
	_, ok := d.handlers[kind]
	return ok
}

func (d *Dispatcher) Kinds() []string {
	kinds := make([]string, 0, len(d.handlers))
	for k := range d.handlers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func (d *Dispatcher) Dispatch(ctx context.Context, task *domain.Task, logger *slog.Logger) error {
	handler, ok := d.handlers[task.Kind]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownKind, task.Kind)
	}
	return handler.Handle(ctx, task, logger)
}
