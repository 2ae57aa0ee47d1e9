package starbatch

import (
	"context"
	"fmt"
)

type stepBuilder struct {
	name      string
	phase     Phase
	handler   Handler
	listeners []PhaseListener
}

//NewStep initialize a builder for a step that moves a run into phase
func NewStep(name string, phase Phase) *stepBuilder {
	if name == "" {
		panic("step name must not be empty")
	}
	return &stepBuilder{
		name:  name,
		phase: phase,
	}
}

//Handler accepts a Handler, a Task or a func(context.Context, *PhaseExecution) error
func (builder *stepBuilder) Handler(handler interface{}) *stepBuilder {
	switch h := handler.(type) {
	case Handler:
		builder.handler = h
	case Task:
		builder.handler = &handlerAdapter{task: h}
	case func(ctx context.Context, execution *PhaseExecution) error:
		builder.handler = &handlerAdapter{task: h}
	default:
		panic(fmt.Sprintf("not supported step handler:%T for step:%v", handler, builder.name))
	}
	return builder
}

func (builder *stepBuilder) Listener(listener ...PhaseListener) *stepBuilder {
	builder.listeners = append(builder.listeners, listener...)
	return builder
}

func (builder *stepBuilder) Build() Step {
	if builder.handler == nil {
		panic(fmt.Sprintf("no handler for step:%v", builder.name))
	}
	if builder.phase == Pending {
		panic(fmt.Sprintf("step:%v can not target the Pending phase", builder.name))
	}
	return newSimpleStep(builder.name, builder.phase, builder.handler, builder.listeners)
}
