package starbatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// workerPool runs tasks on at most size goroutines; submit blocks while all workers are busy.
type workerPool struct {
	pool *ants.Pool
}

func newWorkerPool(size int) (*workerPool, error) {
	if size <= 0 {
		size = 1
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}
	return &workerPool{pool: pool}, nil
}

func (p *workerPool) Release() {
	p.pool.Release()
}

type outcome[T any] struct {
	val T
	err error
}

// Future is the pending result of a task handed to a workerPool.
type Future[T any] struct {
	ch   chan outcome[T]
	once sync.Once
	res  outcome[T]
}

// Get waits for the task. A panic in the task, or a pool that refused it, is reported as the error.
func (f *Future[T]) Get() (T, error) {
	f.once.Do(func() {
		f.res = <-f.ch
	})
	return f.res.val, f.res.err
}

func submit[T any](ctx context.Context, p *workerPool, task func() (T, error)) *Future[T] {
	f := &Future[T]{ch: make(chan outcome[T], 1)}
	err := p.pool.Submit(func() {
		defer func() {
			if er := recover(); er != nil {
				logger.Error(ctx, "panic in pooled task, err:%v, stack:%v", er, string(debug.Stack()))
				f.ch <- outcome[T]{err: fmt.Errorf("panic:%v", er)}
			}
		}()
		val, err := task()
		f.ch <- outcome[T]{val: val, err: err}
	})
	if err != nil {
		f.ch <- outcome[T]{err: err}
	}
	return f
}
