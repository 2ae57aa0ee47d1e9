package starbatch

import "context"

//Task is the function form of a Handler
type Task func(ctx context.Context, execution *PhaseExecution) error

//Handler does the work that moves a run into its step's phase
type Handler interface {
	Handle(ctx context.Context, execution *PhaseExecution) error
}

type handlerAdapter struct {
	task Task
}

func (h *handlerAdapter) Handle(ctx context.Context, execution *PhaseExecution) error {
	return h.task(ctx, execution)
}
