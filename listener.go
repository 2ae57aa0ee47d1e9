package starbatch

import "context"

//RunListener run listener
type RunListener interface {
	//BeforeRun execute before the first phase starts
	BeforeRun(ctx context.Context, execution *RunExecution) BatchError
	//AfterRun execute after the run ends either normally or abnormally
	AfterRun(ctx context.Context, execution *RunExecution) BatchError
}

//PhaseListener phase listener
type PhaseListener interface {
	//BeforePhase execute before a step starts
	BeforePhase(ctx context.Context, execution *PhaseExecution) BatchError
	//AfterPhase execute after a step ends either normally or abnormally
	AfterPhase(ctx context.Context, execution *PhaseExecution) BatchError
}

//BatchListener is notified once per loaded batch, from the worker that loaded it
type BatchListener interface {
	AfterBatch(ctx context.Context, result LoadResult)
}
