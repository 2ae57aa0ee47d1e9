package starbatch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/bmizerany/assert"

	"github.com/chararch/starbatch/dataset"
	"github.com/chararch/starbatch/status"
	"github.com/chararch/starbatch/store"
)

var allPhases = []Phase{ExtractReady, DimensionsTransformed, DimensionsLoaded, FactsPrepared, FactsLoaded, Audited}

type phaseRecorder struct {
	before, after []string
	runs          int
	last          *RunExecution
}

func (r *phaseRecorder) BeforeRun(ctx context.Context, execution *RunExecution) BatchError {
	r.runs++
	return nil
}

func (r *phaseRecorder) AfterRun(ctx context.Context, execution *RunExecution) BatchError {
	r.last = execution
	return nil
}

func (r *phaseRecorder) BeforePhase(ctx context.Context, execution *PhaseExecution) BatchError {
	r.before = append(r.before, execution.Phase.String())
	return nil
}

func (r *phaseRecorder) AfterPhase(ctx context.Context, execution *PhaseExecution) BatchError {
	r.after = append(r.after, fmt.Sprintf("%v:%v", execution.Phase, execution.Status))
	return nil
}

func stepsWith(fail Phase, failErr error) []Step {
	steps := make([]Step, 0, len(allPhases))
	for _, p := range allPhases {
		phase := p
		steps = append(steps, NewStep("step-"+phase.String(), phase).Handler(func(ctx context.Context, execution *PhaseExecution) error {
			if phase == fail {
				return failErr
			}
			execution.RunExecution.RunContext.Put(phase.String(), true)
			return nil
		}).Build())
	}
	return steps
}

func TestPhase_Next(t *testing.T) {
	assert.Equal(t, ExtractReady, Pending.Next())
	assert.Equal(t, Audited, FactsLoaded.Next())
	assert.Equal(t, Audited, Audited.Next())
	assert.T(t, Audited.Terminal())
	p, err := ParsePhase("FactsPrepared")
	assert.Equal(t, nil, err)
	assert.Equal(t, FactsPrepared, p)
}

func TestPipelineBuilder_PhaseOrder(t *testing.T) {
	steps := stepsWith(Pending, nil)
	_, err := NewPipeline("p", steps...).Build()
	assert.Equal(t, nil, err)

	_, err = NewPipeline("p", steps[1:]...).Build()
	assert.Equal(t, ErrCodePhaseOrder, ErrCode(err))

	swapped := []Step{steps[0], steps[2], steps[1]}
	_, err = NewPipeline("p", swapped...).Build()
	assert.Equal(t, ErrCodePhaseOrder, ErrCode(err))

	_, err = NewPipeline("p", append(steps, steps[5])...).Build()
	assert.Equal(t, ErrCodePhaseOrder, ErrCode(err))

	_, err = NewPipeline("p").Build()
	assert.NotEqual(t, nil, err)
}

func TestPipeline_RunAllPhases(t *testing.T) {
	ctx := context.Background()
	rec := &phaseRecorder{}
	p, err := NewPipeline("all", stepsWith(Pending, nil)...).Listener(rec).Build()
	assert.Equal(t, nil, err)

	execution := NewRunExecution("run-1", "all", nil)
	e := p.Run(ctx, execution)
	assert.T(t, e == nil)
	assert.Equal(t, status.COMPLETED, execution.Status)
	assert.Equal(t, Audited, execution.Phase)
	assert.Equal(t, 6, len(execution.PhaseExecutions))
	assert.Equal(t, 1, rec.runs)
	assert.Equal(t, []string{"ExtractReady", "DimensionsTransformed", "DimensionsLoaded", "FactsPrepared", "FactsLoaded", "Audited"}, rec.before)
	assert.Equal(t, "Audited:COMPLETED", rec.after[5])
}

func TestPipeline_FatalErrorSkipsLaterPhases(t *testing.T) {
	ctx := context.Background()
	rec := &phaseRecorder{}
	schemaErr := &dataset.SchemaError{Dataset: "transaction", Column: "quantity"}
	p, err := NewPipeline("fail", stepsWith(DimensionsTransformed, schemaErr)...).Listener(rec).Build()
	assert.Equal(t, nil, err)

	execution := NewRunExecution("run-2", "fail", nil)
	e := p.Run(ctx, execution)
	assert.NotEqual(t, nil, e)
	assert.Equal(t, ErrCodeSchema, e.Code())
	var se *dataset.SchemaError
	assert.T(t, errors.As(e, &se))

	assert.Equal(t, status.FAILED, execution.Status)
	assert.Equal(t, ExtractReady, execution.Phase)
	assert.Equal(t, 2, len(execution.PhaseExecutions))
	assert.Equal(t, status.FAILED, execution.PhaseExecution("step-DimensionsTransformed").Status)
	assert.T(t, !execution.RunContext.Exists("DimensionsLoaded"))
	assert.Equal(t, execution, rec.last)
}

func TestPipeline_PanicInHandler(t *testing.T) {
	ctx := context.Background()
	steps := stepsWith(Pending, nil)
	steps[0] = NewStep("boom", ExtractReady).Handler(func(ctx context.Context, execution *PhaseExecution) error {
		var m map[string]int
		m["x"] = 1
		return nil
	}).Build()
	p, err := NewPipeline("panic", steps...).Build()
	assert.Equal(t, nil, err)
	execution := NewRunExecution("run-3", "panic", nil)
	e := p.Run(ctx, execution)
	assert.NotEqual(t, nil, e)
	assert.Equal(t, status.FAILED, execution.Status)
	assert.Equal(t, Pending, execution.Phase)
}

func TestPipeline_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p, _ := NewPipeline("cancel", stepsWith(Pending, nil)...).Build()
	execution := NewRunExecution("run-4", "cancel", nil)
	e := p.Run(ctx, execution)
	assert.Equal(t, ErrCodeStop, e.Code())
	assert.Equal(t, status.STOPPED, execution.Status)
}

func TestOperator_Start(t *testing.T) {
	ctx := context.Background()
	p, _ := NewPipeline("operator-test", stepsWith(Pending, nil)...).Build()
	assert.Equal(t, nil, Register(p))
	defer Unregister(p)
	assert.NotEqual(t, nil, Register(p))

	execution, err := Start(ctx, "operator-test", map[string]interface{}{"date": "2024-01-01"})
	assert.Equal(t, nil, err)
	assert.Equal(t, status.COMPLETED, execution.Status)
	assert.Equal(t, 36, len(execution.RunId))
	assert.Equal(t, 32, len(execution.RunKey))

	found, err := FindRun(ctx, execution.RunId)
	assert.Equal(t, nil, err)
	assert.Equal(t, execution, found)

	_, err = Start(ctx, "missing", nil)
	assert.NotEqual(t, nil, err)
}

func TestSQLRepository(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, store.Config{Kind: "sqlite", Database: filepath.Join(t.TempDir(), "history.db")})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	repo, err := NewSQLRepository(ctx, s)
	assert.Equal(t, nil, err)

	SetRepository(repo)
	defer SetRepository(NewMemoryRepository())

	p, _ := NewPipeline("history", stepsWith(FactsLoaded, errors.New("connection refused"))...).Build()
	execution := NewRunExecution("run-sql", "history", map[string]interface{}{"batch": "b1"})
	execution.RunContext.Put("source", "local")
	_ = p.Run(ctx, execution)

	found, e := repo.FindRunExecution(ctx, "run-sql")
	assert.T(t, e == nil)
	assert.Equal(t, status.FAILED, found.Status)
	assert.Equal(t, FactsPrepared, found.Phase)
	assert.Equal(t, "b1", found.Params["batch"])
	assert.Equal(t, "local", found.RunContext.Get("source"))
	assert.NotEqual(t, nil, found.FailError)

	var phases int
	err = s.QueryRow(ctx, `SELECT COUNT(*) FROM "etl_phase_execution" WHERE "run_id" = ?`, "run-sql").Scan(&phases)
	assert.Equal(t, nil, err)
	assert.Equal(t, 5, phases)

	missing, e := repo.FindRunExecution(ctx, "nope")
	assert.T(t, e == nil)
	assert.T(t, missing == nil)
}
