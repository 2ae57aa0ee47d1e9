package starbatch

import (
	"fmt"

	"github.com/pkg/errors"
)

// BatchError is the error type returned across phase and loader boundaries.
type BatchError interface {
	Code() string
	Message() string
	Error() string
	StackTrace() errors.StackTrace
	Cause() error
}

type batchErr struct {
	code  string
	msg   string
	cause error
	stack errors.StackTrace
}

func (err *batchErr) Code() string {
	return err.code
}

func (err *batchErr) Message() string {
	return err.msg
}

func (err *batchErr) Error() string {
	if err.cause != nil {
		return fmt.Sprintf("batch err, code:%v, message:%v, cause:%v", err.code, err.msg, err.cause)
	}
	return fmt.Sprintf("batch err, code:%v, message:%v", err.code, err.msg)
}

func (err *batchErr) Cause() error {
	return err.cause
}

func (err *batchErr) Unwrap() error {
	return err.cause
}

func (err *batchErr) StackTrace() errors.StackTrace {
	return err.stack
}

func (err *batchErr) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprint(s, err.Error())
			err.stack.Format(s, verb)
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(s, err.Error())
	case 'q':
		fmt.Fprintf(s, "%q", err.Error())
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// NewBatchError builds a BatchError. msg may be a format string consumed by args;
// when the last arg is an error it becomes the cause instead of a format argument.
// Passing a BatchError as msg returns it unchanged.
func NewBatchError(code string, msg interface{}, args ...interface{}) BatchError {
	if e, ok := msg.(BatchError); ok {
		return e
	}
	var cause error
	if len(args) > 0 {
		if e, ok := args[len(args)-1].(error); ok {
			cause = e
			args = args[:len(args)-1]
		}
	}
	var text string
	switch m := msg.(type) {
	case string:
		if len(args) > 0 {
			text = fmt.Sprintf(m, args...)
		} else {
			text = m
		}
	case error:
		if cause == nil {
			cause = m
		}
		text = m.Error()
	default:
		text = fmt.Sprintf("%v", m)
	}
	//skip NewBatchError's own frame
	st := errors.New(text).(stackTracer).StackTrace()
	if len(st) > 1 {
		st = st[1:]
	}
	return &batchErr{code: code, msg: text, cause: cause, stack: st}
}

// ErrCode reports the code of the first BatchError in err's chain, or "" if none.
func ErrCode(err error) string {
	var be BatchError
	if errors.As(err, &be) {
		return be.Code()
	}
	return ""
}

const (
	ErrCodeConnection = "connection"
	ErrCodeBatchLoad  = "batch_load"
	ErrCodeSchema     = "schema"
	ErrCodeTransform  = "transform"
	ErrCodePhaseOrder = "phase_order"
	ErrCodeStop       = "stop"
	ErrCodeDbFail     = "db_fail"
	ErrCodeGeneral    = "general"
)

var (
	StopError BatchError = &batchErr{code: ErrCodeStop, msg: "run stopping"}
)
