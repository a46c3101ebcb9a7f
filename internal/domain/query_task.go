package domain

import "time"

// TaskState is the lifecycle state of a query task.
type TaskState string

// Query task lifecycle states.
const (
	TaskStateCreated    TaskState = "CREATED"
	TaskStateConnecting TaskState = "CONNECTING"
	TaskStateExecuting  TaskState = "EXECUTING"
	TaskStateSucceeded  TaskState = "SUCCEEDED"
	TaskStateFailed     TaskState = "FAILED"
	TaskStateCancelled  TaskState = "CANCELLED"
)

// Terminal reports whether no further transition can follow.
func (s TaskState) Terminal() bool {
	return s == TaskStateSucceeded || s == TaskStateFailed || s == TaskStateCancelled
}

// ResultSet is the uniform shape returned by every backend driver.
type ResultSet struct {
	Columns      []string
	Rows         [][]interface{}
	RowCount     int64
	RowProducing bool
}

// QueryResult is the success payload delivered to the result sink.
type QueryResult struct {
	Descriptor     Descriptor
	Statement      string
	Columns        []string
	Rows           [][]interface{}
	RowCount       int64
	ElapsedSeconds float64
	RowProducing   bool
}

// Completion is the single report a task emits when it finishes without being cancelled.
// Exactly one of Result and Err is set.
type Completion struct {
	Result *QueryResult
	Err    string
}

// Succeeded reports whether the completion carries a result.
func (c Completion) Succeeded() bool { return c.Result != nil }

// Elapsed converts the reported seconds back to a duration.
func (r *QueryResult) Elapsed() time.Duration {
	return time.Duration(r.ElapsedSeconds * float64(time.Second))
}
