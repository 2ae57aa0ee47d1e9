package starbatch

import (
	"fmt"
)

type pipelineBuilder struct {
	name           string
	steps          []Step
	runListeners   []RunListener
	phaseListeners []PhaseListener
}

//NewPipeline new instance of pipeline builder
func NewPipeline(name string, steps ...Step) *pipelineBuilder {
	if name == "" {
		panic("pipeline name must not be empty")
	}
	return &pipelineBuilder{
		name:  name,
		steps: steps,
	}
}

func (builder *pipelineBuilder) Step(step ...Step) *pipelineBuilder {
	builder.steps = append(builder.steps, step...)
	return builder
}

//Listener accepts RunListener and PhaseListener values; one value may be both
func (builder *pipelineBuilder) Listener(listener ...interface{}) *pipelineBuilder {
	for _, l := range listener {
		matched := false
		if rl, ok := l.(RunListener); ok {
			builder.runListeners = append(builder.runListeners, rl)
			matched = true
		}
		if pl, ok := l.(PhaseListener); ok {
			builder.phaseListeners = append(builder.phaseListeners, pl)
			matched = true
		}
		if !matched {
			panic(fmt.Sprintf("not supported listener:%T for pipeline:%v", l, builder.name))
		}
	}
	return builder
}

//Build checks that the steps walk the phases one at a time starting at ExtractReady
func (builder *pipelineBuilder) Build() (Pipeline, error) {
	if len(builder.steps) == 0 {
		return nil, NewBatchError(ErrCodePhaseOrder, "pipeline %v has no steps", builder.name)
	}
	phase := Pending
	names := map[string]bool{}
	for _, step := range builder.steps {
		if names[step.Name()] {
			return nil, NewBatchError(ErrCodePhaseOrder, "pipeline %v: duplicate step name %v", builder.name, step.Name())
		}
		names[step.Name()] = true
		if step.Phase() != phase.Next() || phase.Terminal() {
			return nil, NewBatchError(ErrCodePhaseOrder, "pipeline %v: step %v targets %v, expected %v", builder.name, step.Name(), step.Phase(), phase.Next())
		}
		phase = step.Phase()
	}
	for _, pl := range builder.phaseListeners {
		for _, step := range builder.steps {
			step.addListener(pl)
		}
	}
	return newSimplePipeline(builder.name, builder.steps, builder.runListeners), nil
}
