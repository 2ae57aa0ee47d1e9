package starbatch

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/chararch/starbatch/dataset"
)

//BatchContext holds string keyed values of a run or phase execution, safe for concurrent use
type BatchContext struct {
	mu  sync.RWMutex
	kvs map[string]interface{}
}

//NewBatchContext new instance
func NewBatchContext() *BatchContext {
	return &BatchContext{
		kvs: map[string]interface{}{},
	}
}

func (ctx *BatchContext) Put(key string, value interface{}) {
	ctx.mu.Lock()
	ctx.kvs[key] = value
	ctx.mu.Unlock()
}

func (ctx *BatchContext) Exists(key string) bool {
	return ctx.Get(key) != nil
}

func (ctx *BatchContext) Remove(key string) {
	ctx.mu.Lock()
	delete(ctx.kvs, key)
	ctx.mu.Unlock()
}

func (ctx *BatchContext) Get(key string, def ...interface{}) interface{} {
	ctx.mu.RLock()
	val := ctx.kvs[key]
	ctx.mu.RUnlock()
	if val == nil && len(def) > 0 {
		val = def[0]
	}
	return val
}

//Keys returns the keys in sorted order
func (ctx *BatchContext) Keys() []string {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	keys := make([]string, 0, len(ctx.kvs))
	for k := range ctx.kvs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (ctx *BatchContext) GetInt(key string, def ...int) (int, error) {
	if v := ctx.Get(key); v == nil && len(def) > 0 {
		return def[0], nil
	}
	n, err := ctx.GetInt64(key)
	return int(n), err
}

func (ctx *BatchContext) GetInt64(key string, def ...int64) (int64, error) {
	v := ctx.Get(key)
	if v == nil && len(def) > 0 {
		return def[0], nil
	}
	switch v.(type) {
	case nil, string, []byte:
	default:
		//numbers decoded from json arrive as float64
		if n, ok := dataset.AsInt64(v); ok {
			return n, nil
		}
	}
	return 0, errors.Errorf("value is nil or not int64: %v", v)
}

func (ctx *BatchContext) GetString(key string, def ...string) (string, error) {
	v := ctx.Get(key)
	if v == nil && len(def) > 0 {
		return def[0], nil
	}
	if r, ok := v.(string); ok {
		return r, nil
	}
	return "", errors.Errorf("value is nil or not string: %v", v)
}

func (ctx *BatchContext) GetBool(key string, def ...bool) (bool, error) {
	v := ctx.Get(key)
	if v == nil && len(def) > 0 {
		return def[0], nil
	}
	if r, ok := v.(bool); ok {
		return r, nil
	}
	return false, errors.Errorf("value is nil or not bool: %v", v)
}

//GetDataset returns a dataset stored under key by an earlier phase
func (ctx *BatchContext) GetDataset(key string) (*dataset.Dataset, error) {
	if ds, ok := ctx.Get(key).(*dataset.Dataset); ok && ds != nil {
		return ds, nil
	}
	return nil, errors.Errorf("no dataset in context under key: %v", key)
}

func (ctx *BatchContext) DeepCopy() *BatchContext {
	result := NewBatchContext()
	result.Merge(ctx)
	return result
}

func (ctx *BatchContext) Merge(other *BatchContext) {
	other.mu.RLock()
	defer other.mu.RUnlock()
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	for key, value := range other.kvs {
		ctx.kvs[key] = value
	}
}

//MarshalJSON encodes every value except datasets, which live only for the run
func (ctx *BatchContext) MarshalJSON() ([]byte, error) {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	out := make(map[string]interface{}, len(ctx.kvs))
	for k, v := range ctx.kvs {
		if _, ok := v.(*dataset.Dataset); ok {
			continue
		}
		out[k] = v
	}
	return json.Marshal(out)
}

func (ctx *BatchContext) UnmarshalJSON(b []byte) error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if ctx.kvs == nil {
		ctx.kvs = map[string]interface{}{}
	}
	return json.Unmarshal(b, &ctx.kvs)
}
