// Package cli implements the querydesk command-line client. It opens the
// metastore directly and runs statements through the same orchestrator as
// the server.
package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"querydesk/internal/app"
	"querydesk/internal/config"
	"querydesk/internal/db"
	"querydesk/internal/domain"
	"querydesk/internal/service/query"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		var outcome *outcomeError
		if errors.As(err, &outcome) && outcome.reported {
			return 1
		}
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			errObj := map[string]interface{}{
				"error": err.Error(),
			}
			if code := errorCode(err); code != "" {
				errObj["code"] = code
			}
			_ = PrintJSON(os.Stdout, errObj)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// errorCode classifies err for JSON error output.
func errorCode(err error) string {
	var (
		notFound   *domain.NotFoundError
		validation *domain.ValidationError
		conflict   *domain.ConflictError
		running    *domain.AlreadyRunningError
		empty      *domain.EmptyInputError
		conn       *domain.ConnectionError
		qerr       *domain.QueryError
		outcome    *outcomeError
	)
	switch {
	case errors.As(err, &outcome):
		return string(outcome.ev.Kind)
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &conflict):
		return "conflict"
	case errors.As(err, &running):
		return "already_running"
	case errors.As(err, &empty):
		return "empty_input"
	case errors.As(err, &conn):
		return "connection"
	case errors.As(err, &qerr):
		return "query"
	}
	return ""
}

// settings are the values resolved from flags, environment and the config file.
type settings struct {
	metaDB   string
	output   string
	timeout  time.Duration
	logLevel string
}

func newRootCmd() *cobra.Command {
	s := &settings{}
	timeout := timeoutValue(query.DefaultTimeout)

	rootCmd := &cobra.Command{
		Use:           "querydesk",
		Short:         "Run SQL against stored connections",
		Long:          "Command-line client for the querydesk connection store and query history.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				return err
			}

			// Apply precedence: flag > env > file > default
			flags := cmd.Flags()
			if !flags.Changed("meta-db") {
				if v := os.Getenv("META_DB_PATH"); v != "" {
					s.metaDB = v
				} else if cfg.MetaDB != "" {
					s.metaDB = cfg.MetaDB
				}
			}
			if !flags.Changed("output") {
				if v := os.Getenv("QUERYDESK_OUTPUT"); v != "" {
					s.output = v
				} else if cfg.Output != "" {
					s.output = cfg.Output
				}
			}
			if !flags.Changed("timeout") {
				if v := os.Getenv("QUERY_TIMEOUT"); v != "" {
					if err := timeout.Set(v); err != nil {
						return fmt.Errorf("QUERY_TIMEOUT: %w", err)
					}
				} else if cfg.Timeout != "" {
					if err := timeout.Set(cfg.Timeout); err != nil {
						return fmt.Errorf("%s: %w", ConfigPath(), err)
					}
				}
			}
			if !flags.Changed("log-level") {
				if v := os.Getenv("LOG_LEVEL"); v != "" {
					s.logLevel = v
				}
			}

			if err := validateOutputFormat(s.output); err != nil {
				return err
			}
			if s.output == "" {
				s.output = "table"
			}
			s.timeout = time.Duration(timeout)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&s.metaDB, "meta-db", "querydesk_meta.sqlite", "Path to the metastore")
	rootCmd.PersistentFlags().StringVarP(&s.output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().Var(&timeout, "timeout", "Query timeout (duration or seconds)")
	rootCmd.PersistentFlags().StringVar(&s.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newConnCmd(s))
	rootCmd.AddCommand(newExecCmd(s))
	rootCmd.AddCommand(newHistoryCmd(s))
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	// Shell completions
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

// timeoutValue is a pflag.Value accepting a Go duration or bare seconds.
type timeoutValue time.Duration

var _ pflag.Value = (*timeoutValue)(nil)

func (v *timeoutValue) String() string { return time.Duration(*v).String() }

func (v *timeoutValue) Set(s string) error {
	d, err := parseTimeout(s)
	if err != nil {
		return err
	}
	*v = timeoutValue(d)
	return nil
}

func (v *timeoutValue) Type() string { return "duration" }

// workspace is an opened metastore plus the wired application.
type workspace struct {
	*app.App
	writeDB *sql.DB
	readDB  *sql.DB
}

// open migrates the metastore and wires the application. sink may be nil.
func (s *settings) open(ctx context.Context, sink query.ResultSink) (*workspace, error) {
	key, insecure := config.EncryptionKeyFromEnv()
	cfg := &config.Config{
		MetaDBPath:       s.metaDB,
		EncryptionKey:    key,
		LogLevel:         s.logLevel,
		QueryTimeout:     s.timeout,
		ProgressInterval: query.DefaultProgressInterval,
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	if insecure {
		logger.Debug("ENCRYPTION_KEY not set; using insecure default")
	}

	writeDB, readDB, err := db.OpenSQLitePair(cfg.MetaDBPath, 2)
	if err != nil {
		return nil, fmt.Errorf("open metastore: %w", err)
	}
	if err := db.RunMigrations(writeDB); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("migrate metastore: %w", err)
	}
	a, err := app.New(ctx, app.Deps{
		Cfg:     cfg,
		WriteDB: writeDB,
		ReadDB:  readDB,
		Logger:  logger,
		Sink:    sink,
	})
	if err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, err
	}
	return &workspace{App: a, writeDB: writeDB, readDB: readDB}, nil
}

// Close stops the application and closes both pools.
func (w *workspace) Close() error {
	err := w.App.Close(5 * time.Second)
	return errors.Join(err, w.readDB.Close(), w.writeDB.Close())
}

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
	return cmd
}

