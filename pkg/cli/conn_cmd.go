package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"querydesk/internal/domain"
)

func newConnCmd(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conn",
		Aliases: []string{"connections"},
		Short:   "Manage stored connections",
	}

	cmd.AddCommand(newConnAddEmbeddedCmd(s))
	cmd.AddCommand(newConnAddServerCmd(s))
	cmd.AddCommand(newConnListCmd(s))
	cmd.AddCommand(newConnDeleteCmd(s))

	return cmd
}

func newConnAddEmbeddedCmd(s *settings) *cobra.Command {
	var name, path, engine string

	cmd := &cobra.Command{
		Use:   "add-embedded",
		Short: "Store a file-based connection (sqlite, duckdb)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := s.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer ws.Close() //nolint:errcheck

			d := domain.NewEmbeddedDescriptor(name, path, domain.Engine(engine))
			created, err := ws.Services.Connections.Create(cmd.Context(), d)
			if err != nil {
				return err
			}
			return printCreated(cmd, created)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Connection name (required)")
	cmd.Flags().StringVar(&path, "path", "", "Database file path (required)")
	cmd.Flags().StringVar(&engine, "engine", string(domain.EngineSQLite), "Engine (sqlite, duckdb)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("path")

	return cmd
}

func newConnAddServerCmd(s *settings) *cobra.Command {
	var (
		name, host, database, user, engine string
		port                               int
		passwordStdin                      bool
	)

	cmd := &cobra.Command{
		Use:   "add-server",
		Short: "Store a client-server connection (postgres, mysql)",
		Long: "Store a client-server connection. The password is prompted for on a terminal,\n" +
			"or read from the first line of stdin with --password-stdin.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd, passwordStdin)
			if err != nil {
				return err
			}

			ws, err := s.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer ws.Close() //nolint:errcheck

			d := domain.NewServerDescriptor(name, domain.ServerTarget{
				Host:     host,
				Port:     port,
				Database: database,
				User:     user,
				Password: password,
				Engine:   domain.Engine(engine),
			})
			created, err := ws.Services.Connections.Create(cmd.Context(), d)
			if err != nil {
				return err
			}
			return printCreated(cmd, created)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Connection name (required)")
	cmd.Flags().StringVar(&host, "host", "", "Server host (required)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port (engine default when 0)")
	cmd.Flags().StringVar(&database, "database", "", "Database name")
	cmd.Flags().StringVar(&user, "user", "", "User name")
	cmd.Flags().StringVar(&engine, "engine", string(domain.EnginePostgres), "Engine (postgres, mysql)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("host")

	return cmd
}

// readPassword reads from stdin when asked to, prompts on a terminal, and
// otherwise stores no password.
func readPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	in := cmd.InOrStdin()
	if fromStdin {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return "", nil
	}
	_, _ = fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	b, err := term.ReadPassword(int(f.Fd()))
	_, _ = fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func printCreated(cmd *cobra.Command, d *domain.Descriptor) error {
	if getOutputFormat(cmd) == "json" {
		return PrintJSON(cmd.OutOrStdout(), connectionJSON(*d))
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Connection %q created (id %d)\n", d.Name, d.ID)
	return nil
}

func newConnListCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored connections, most used first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := s.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer ws.Close() //nolint:errcheck

			conns, err := ws.Services.Connections.List(cmd.Context())
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				out := make([]map[string]interface{}, 0, len(conns))
				for _, d := range conns {
					out = append(out, connectionJSON(d))
				}
				return PrintJSON(cmd.OutOrStdout(), out)
			}
			rows := make([][]string, 0, len(conns))
			for _, d := range conns {
				rows = append(rows, []string{
					strconv.FormatInt(d.ID, 10),
					d.Name,
					string(d.Kind),
					string(d.Engine()),
					connectionTarget(d),
					strconv.FormatInt(d.UsageCount, 10),
				})
			}
			PrintTable(cmd.OutOrStdout(), []string{"id", "name", "kind", "engine", "target", "usage"}, rows)
			return nil
		},
	}
}

func newConnDeleteCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a connection and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseID("connection id", args[0])
			if err != nil {
				return err
			}
			ws, err := s.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer ws.Close() //nolint:errcheck

			if err := ws.Services.Connections.Delete(cmd.Context(), id); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), map[string]interface{}{"status": "deleted", "id": id})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Connection %d deleted\n", id)
			return nil
		},
	}
}

// connectionTarget renders where a descriptor points, without credentials.
func connectionTarget(d domain.Descriptor) string {
	if d.Kind == domain.BackendEmbedded {
		return d.Embedded.Path
	}
	t := d.Server
	target := t.Host
	if t.Port > 0 {
		target += ":" + strconv.Itoa(t.Port)
	}
	if t.Database != "" {
		target += "/" + t.Database
	}
	if t.User != "" {
		target = t.User + "@" + target
	}
	return target
}

func connectionJSON(d domain.Descriptor) map[string]interface{} {
	return map[string]interface{}{
		"id":           d.ID,
		"name":         d.Name,
		"kind":         d.Kind,
		"engine":       d.Engine(),
		"target":       connectionTarget(d),
		"has_password": d.Server.Password != "",
		"usage_count":  d.UsageCount,
		"created_at":   d.CreatedAt,
	}
}
