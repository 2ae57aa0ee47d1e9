// Package status holds the lifecycle states shared by runs, phases and batches.
package status

//BatchStatus is the state of a run, a phase or a single batch load
type BatchStatus string

const (
	//STARTING execution created, not yet running
	STARTING BatchStatus = "STARTING"
	//STARTED running
	STARTED BatchStatus = "STARTED"
	//STOPPING cancellation requested
	STOPPING BatchStatus = "STOPPING"
	//STOPPED canceled before finishing
	STOPPED BatchStatus = "STOPPED"
	//COMPLETED finished without a fatal error; a completed load may still carry failed batches
	COMPLETED BatchStatus = "COMPLETED"
	//FAILED finished with an error
	FAILED BatchStatus = "FAILED"
	//UNKNOWN state could not be determined, e.g. a record read back from an older version
	UNKNOWN BatchStatus = "UNKNOWN"
)

var severity = map[BatchStatus]int{
	STARTING:  0,
	STARTED:   1,
	STOPPING:  2,
	STOPPED:   3,
	COMPLETED: 4,
	FAILED:    5,
	UNKNOWN:   6,
}

//And folds two statuses into the more severe one, so a set of batches is
//FAILED as soon as one of them failed. Unrecognized values lose.
func (s BatchStatus) And(other BatchStatus) BatchStatus {
	i1, ok1 := severity[s]
	i2, ok2 := severity[other]
	switch {
	case ok1 && ok2:
		if i1 < i2 {
			return other
		}
		return s
	case ok1:
		return s
	case ok2:
		return other
	}
	return UNKNOWN
}

//Done reports whether s is a final state
func (s BatchStatus) Done() bool {
	switch s {
	case STOPPED, COMPLETED, FAILED, UNKNOWN:
		return true
	}
	return false
}
