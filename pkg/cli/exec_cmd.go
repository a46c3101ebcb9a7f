package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"querydesk/internal/domain"
	"querydesk/internal/service/query"
)

// outcomeError reports a query that did not succeed. reported is set when
// the outcome was already written as JSON.
type outcomeError struct {
	ev       query.Event
	reported bool
}

func (e *outcomeError) Error() string {
	return strings.TrimSpace(strings.TrimPrefix(e.ev.Message, "Error:"))
}

func newExecCmd(s *settings) *cobra.Command {
	var connID string

	cmd := &cobra.Command{
		Use:   "exec --conn <id> <sql>",
		Short: "Execute one statement against a stored connection",
		Long: "Execute one statement against a stored connection. The statement must end with ';'.\n" +
			"With no SQL argument the statement is read from stdin. Ctrl-C cancels the query.",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseID("connection id", connID)
			if err != nil {
				return err
			}
			statement, err := statementFrom(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runStatement(ctx, cmd, s, id, statement)
		},
	}

	cmd.Flags().StringVar(&connID, "conn", "", "Connection id (required)")
	_ = cmd.MarkFlagRequired("conn")

	return cmd
}

// statementFrom joins the arguments, or reads stdin when there are none.
func statementFrom(in io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read statement: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// runStatement submits the statement and waits for its single outcome. When
// ctx ends first the query is cancelled and the cancellation is reported.
func runStatement(ctx context.Context, cmd *cobra.Command, s *settings, connID int64, statement string) error {
	sink := query.NewChannelSink(1)
	ws, err := s.open(context.WithoutCancel(ctx), sink)
	if err != nil {
		return err
	}
	defer ws.Close() //nolint:errcheck

	sessionID := "cli-" + uuid.NewString()
	if _, err := ws.Submit(ctx, sessionID, connID, statement); err != nil {
		return err
	}

	var ev query.Event
	select {
	case ev = <-sink.Events():
	case <-ctx.Done():
		// A NotFound here means the outcome is already in the sink.
		_ = ws.Services.Orchestrator.Cancel(context.Background(), sessionID)
		ev = <-sink.Events()
	}
	return printOutcome(cmd, ev)
}

func printOutcome(cmd *cobra.Command, ev query.Event) error {
	out := cmd.OutOrStdout()
	asJSON := getOutputFormat(cmd) == "json"
	if asJSON {
		obj := map[string]interface{}{
			"kind":         ev.Kind,
			"execution_id": ev.ExecutionID,
			"message":      ev.Message,
			"summary":      ev.Summary,
		}
		if r := ev.Result; r != nil {
			obj["columns"] = r.Columns
			obj["rows"] = r.Rows
			obj["row_count"] = r.RowCount
			obj["elapsed_sec"] = r.ElapsedSeconds
			obj["row_producing"] = r.RowProducing
		}
		if err := PrintJSON(out, obj); err != nil {
			return err
		}
	} else if ev.Kind == query.EventSucceeded {
		if r := ev.Result; r != nil && r.RowProducing {
			rows := make([][]string, 0, len(r.Rows))
			for _, row := range r.Rows {
				cells := make([]string, len(row))
				for i, v := range row {
					cells[i] = formatValue(v)
				}
				rows = append(rows, cells)
			}
			PrintTable(out, r.Columns, rows)
			_, _ = fmt.Fprintln(out)
		}
		_, _ = fmt.Fprintln(out, ev.Summary)
	}
	if ev.Kind != query.EventSucceeded {
		return &outcomeError{ev: ev, reported: asJSON}
	}
	return nil
}
