package query

import (
	"fmt"
	"strconv"
	"time"

	"querydesk/internal/domain"
)

// ProgressStatus is the status line shown while a query runs.
func ProgressStatus(elapsed time.Duration) string {
	return fmt.Sprintf("Running... %.1f sec", elapsed.Seconds())
}

// SuccessText returns the detailed message and the one-line summary for a
// successful result. Row-producing statements report total rows, others
// report rows affected.
func SuccessText(r *domain.QueryResult) (message, summary string) {
	if r.RowProducing {
		message = fmt.Sprintf("Query executed successfully.\n\nTotal rows: %d\nTime: %.2f sec", r.RowCount, r.ElapsedSeconds)
		summary = fmt.Sprintf("Query executed successfully | Total rows: %d | Time: %.2f sec", r.RowCount, r.ElapsedSeconds)
		return message, summary
	}
	message = fmt.Sprintf("Command executed successfully.\n\nRows affected: %d\nTime: %.2f sec", r.RowCount, r.ElapsedSeconds)
	summary = fmt.Sprintf("Command executed successfully | Rows affected: %d | Time: %.2f sec", r.RowCount, r.ElapsedSeconds)
	return message, summary
}

// FailureText returns the message and summary for a failed execution.
func FailureText(errText string) (message, summary string) {
	return "Error:\n\n" + errText, "Error: " + errText
}

// TimeoutText returns the message for a query that exceeded the ceiling.
func TimeoutText(timeout time.Duration) string {
	return "Error: Query Timed Out after " + strconv.FormatFloat(timeout.Seconds(), 'f', -1, 64) + " seconds."
}

// CancelText is reported for a user cancellation.
const CancelText = "Query cancelled by user."

func succeededEvent(e *execution, r *domain.QueryResult, at time.Time) Event {
	msg, sum := SuccessText(r)
	return Event{
		Kind:        EventSucceeded,
		SessionID:   e.sessionID,
		ExecutionID: e.id,
		Result:      r,
		Message:     msg,
		Summary:     sum,
		At:          at,
	}
}

func failedEvent(e *execution, errText string, at time.Time) Event {
	msg, sum := FailureText(errText)
	return Event{
		Kind:        EventFailed,
		SessionID:   e.sessionID,
		ExecutionID: e.id,
		Message:     msg,
		Summary:     sum,
		At:          at,
	}
}

func interruptedEvent(e *execution, status domain.HistoryStatus, timeout time.Duration, at time.Time) Event {
	ev := Event{
		Kind:        EventCancelled,
		SessionID:   e.sessionID,
		ExecutionID: e.id,
		Message:     CancelText,
		Summary:     CancelText,
		At:          at,
	}
	if status == domain.HistoryStatusTimedOut {
		ev.Kind = EventTimedOut
		ev.Message = TimeoutText(timeout)
		ev.Summary = "Error occurred"
	}
	return ev
}
