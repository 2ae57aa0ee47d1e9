package starbatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/chararch/starbatch/util"
)

var (
	registryMu       sync.RWMutex
	pipelineRegistry = make(map[string]Pipeline)
)

// Register register pipeline by name
func Register(p Pipeline) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := pipelineRegistry[p.Name()]; ok {
		return fmt.Errorf("pipeline with name:%v has already been registered", p.Name())
	}
	pipelineRegistry[p.Name()] = p
	return nil
}

// Unregister unregister pipeline
func Unregister(p Pipeline) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(pipelineRegistry, p.Name())
}

// Start runs the named pipeline with params and waits for it. The execution is
// returned even when the run fails, so callers can report what was loaded.
func Start(ctx context.Context, name string, params map[string]interface{}) (*RunExecution, error) {
	registryMu.RLock()
	p, ok := pipelineRegistry[name]
	registryMu.RUnlock()
	if !ok {
		logger.Error(ctx, "can not find pipeline with name:%v", name)
		return nil, errors.Errorf("can not find pipeline with name:%v", name)
	}
	key, err := util.Digest(params)
	if err != nil {
		return nil, NewBatchError(ErrCodeGeneral, "encode params", err)
	}
	execution := NewRunExecution(uuid.NewString(), name, params)
	execution.RunKey = key
	if e := repository.SaveRunExecution(ctx, execution); e != nil {
		logger.Error(ctx, "save run execution failed, pipeline:%v, err:%v", name, e)
		return nil, e
	}
	logger.Info(ctx, "run started, pipeline:%v, runId:%v, runKey:%v", name, execution.RunId, execution.RunKey)
	if e := p.Run(ctx, execution); e != nil {
		return execution, e
	}
	return execution, nil
}

// FindRun looks a run up in the configured repository
func FindRun(ctx context.Context, runId string) (*RunExecution, error) {
	execution, err := repository.FindRunExecution(ctx, runId)
	if err != nil {
		return nil, err
	}
	if execution == nil {
		return nil, errors.Errorf("run not found: %v", runId)
	}
	return execution, nil
}
