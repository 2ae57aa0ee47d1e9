package status

import (
	"testing"

	"github.com/bmizerany/assert"
)

func TestAnd(t *testing.T) {
	assert.Equal(t, FAILED, COMPLETED.And(FAILED))
	assert.Equal(t, FAILED, FAILED.And(COMPLETED))
	assert.Equal(t, COMPLETED, STARTED.And(COMPLETED))
	assert.Equal(t, COMPLETED, COMPLETED.And("BOGUS"))
	assert.Equal(t, COMPLETED, BatchStatus("BOGUS").And(COMPLETED))
	assert.Equal(t, UNKNOWN, BatchStatus("A").And("B"))
}

func TestDone(t *testing.T) {
	assert.T(t, COMPLETED.Done())
	assert.T(t, FAILED.Done())
	assert.T(t, STOPPED.Done())
	assert.T(t, !STARTED.Done())
	assert.T(t, !STOPPING.Done())
}
