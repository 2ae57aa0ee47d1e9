package starbatch

import (
	"fmt"
	"testing"

	"github.com/bmizerany/assert"
	"github.com/pkg/errors"
)

func TestBatchErr_Format(t *testing.T) {
	batchErr := NewBatchError(ErrCodeGeneral, "new error")
	assert.Equal(t, "batch err, code:general, message:new error", batchErr.Error())
	assert.NotEqual(t, 0, len(batchErr.StackTrace()))
	assert.Equal(t, nil, batchErr.Cause())

	err := fmt.Errorf("some error raised from db")
	batchErr2 := NewBatchError(ErrCodeConnection, "wrap error", err)
	assert.Equal(t, "wrap error", batchErr2.Message())
	assert.Equal(t, err, batchErr2.Cause())
	assert.T(t, errors.Is(batchErr2, err))

	batchErr3 := NewBatchError(ErrCodeBatchLoad, "load table:%v batch:%d", "Store_Dim", 3, err)
	assert.Equal(t, "load table:Store_Dim batch:3", batchErr3.Message())
	assert.Equal(t, err, batchErr3.Cause())
	detail := fmt.Sprintf("%+v", batchErr3)
	assert.NotEqual(t, batchErr3.Error(), detail)
}

func TestNewBatchError_KeepsBatchError(t *testing.T) {
	inner := NewBatchError(ErrCodeSchema, "missing column")
	assert.Equal(t, inner, NewBatchError(ErrCodeGeneral, inner))
}

func TestErrCode(t *testing.T) {
	be := NewBatchError(ErrCodeConnection, "dial failed")
	wrapped := errors.Wrap(be, "phase DimensionsLoaded")
	assert.Equal(t, ErrCodeConnection, ErrCode(wrapped))
	assert.Equal(t, "", ErrCode(fmt.Errorf("plain")))
	assert.Equal(t, "", ErrCode(nil))
}
