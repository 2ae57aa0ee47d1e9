package starbatch

import (
	"os"

	"github.com/chararch/starbatch/internal/logs"
)

//log
var logger logs.Logger = logs.NewLogger(os.Stdout, logs.Info)

//SetLogger set a logger instance for the pipeline runtime
func SetLogger(l logs.Logger) {
	logger = l
}

//loader defaults
const (
	DefaultMaxWorkers = 4
	DefaultBatchSize  = 1000
)
