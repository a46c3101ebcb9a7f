package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"querydesk/internal/domain"
)

func newHistoryCmd(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and prune query history",
	}

	cmd.AddCommand(newHistoryListCmd(s))
	cmd.AddCommand(newHistoryDeleteCmd(s))
	cmd.AddCommand(newHistoryClearCmd(s))

	return cmd
}

func newHistoryListCmd(s *settings) *cobra.Command {
	var connID string

	cmd := &cobra.Command{
		Use:   "list --conn <id>",
		Short: "List history for a connection, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := domain.ParseID("connection id", connID)
			if err != nil {
				return err
			}
			ws, err := s.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer ws.Close() //nolint:errcheck

			entries, err := ws.Services.History.List(cmd.Context(), id)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				out := make([]map[string]interface{}, 0, len(entries))
				for _, e := range entries {
					out = append(out, map[string]interface{}{
						"id":                 e.ID,
						"connection_id":      e.ConnectionID,
						"query_text":         e.QueryText,
						"status":             e.Status,
						"rows_affected":      e.RowsAffected,
						"execution_time_sec": e.ExecutionTimeSec,
						"timestamp":          e.Timestamp.Format(historyTimeLayout),
					})
				}
				return PrintJSON(cmd.OutOrStdout(), out)
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					strconv.FormatInt(e.ID, 10),
					e.Timestamp.Format(historyTimeLayout),
					string(e.Status),
					optionalInt(e.RowsAffected),
					optionalSeconds(e.ExecutionTimeSec),
					oneLine(e.QueryText, 60),
				})
			}
			PrintTable(cmd.OutOrStdout(), []string{"id", "timestamp", "status", "rows", "time", "query"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&connID, "conn", "", "Connection id (required)")
	_ = cmd.MarkFlagRequired("conn")

	return cmd
}

func newHistoryDeleteCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <entry-id>",
		Short: "Delete one history entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseID("history entry id", args[0])
			if err != nil {
				return err
			}
			ws, err := s.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer ws.Close() //nolint:errcheck

			if err := ws.Services.History.Delete(cmd.Context(), id); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), map[string]interface{}{"status": "deleted", "id": id})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "History entry %d deleted\n", id)
			return nil
		},
	}
}

func newHistoryClearCmd(s *settings) *cobra.Command {
	var connID string

	cmd := &cobra.Command{
		Use:   "clear --conn <id>",
		Short: "Delete all history for a connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := domain.ParseID("connection id", connID)
			if err != nil {
				return err
			}
			ws, err := s.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer ws.Close() //nolint:errcheck

			n, err := ws.Services.History.DeleteAll(cmd.Context(), id)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), map[string]interface{}{"status": "cleared", "deleted": n})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d history entries\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&connID, "conn", "", "Connection id (required)")
	_ = cmd.MarkFlagRequired("conn")

	return cmd
}

const historyTimeLayout = "2006-01-02 15:04:05"

func optionalInt(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}

func optionalSeconds(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64) + "s"
}

// oneLine collapses whitespace and truncates to limit runes.
func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
