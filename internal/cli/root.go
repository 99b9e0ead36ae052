// Package cli implements the termmeta command-line interface.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/termmeta/internal/logging"
	"github.com/mesh-intelligence/termmeta/internal/paths"
	"github.com/mesh-intelligence/termmeta/internal/store"
	"github.com/mesh-intelligence/termmeta/pkg/termmeta"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	verbose   bool
	siteID    int64
}

var flags rootFlags

// NewRootCmd creates the top-level "termmeta" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "termmeta",
		Short: "Key-value metadata for taxonomy terms",
		Long: "termmeta stores key-value metadata for taxonomy terms across the sites\n" +
			"of a network, and filters term listings by that metadata.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configDir, "config-dir", "", "configuration directory (env "+paths.EnvConfigDir+")")
	pf.StringVar(&flags.dataDir, "data-dir", "", "SQLite data directory (default: ./.termmeta-db)")
	pf.BoolVar(&flags.jsonMode, "json", false, "output in JSON format")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log debug output to stderr")
	pf.Int64Var(&flags.siteID, "site", 0, "site to operate on (default: main site)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newActivateCmd())
	root.AddCommand(newUpgradeCmd())
	root.AddCommand(newInstallCmd())
	root.AddCommand(newSiteCmd())
	root.AddCommand(newTermCmd())
	root.AddCommand(newMetaCmd())

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// userError marks failures caused by bad input.
type userError struct{ err error }

func (e userError) Error() string { return e.err.Error() }
func (e userError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return userError{fmt.Errorf(format, args...)}
}

func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ue userError
	if errors.As(err, &ue) {
		return exitUserError
	}
	return exitSysError
}

// session is an open store with the CLI logger. close releases both.
type session struct {
	store  *termmeta.Store
	logger *zap.Logger
}

func (s *session) backend() *store.Backend { return s.store.Backend() }

func (s *session) close() {
	if err := s.store.Close(); err != nil {
		s.logger.Warn("closing store", zap.Error(err))
	}
	_ = s.logger.Sync()
}

// openSession opens the store and switches to the --site site when one is
// given.
func openSession(ctx context.Context) (*session, error) {
	s, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	if flags.siteID != 0 && flags.siteID != store.MainSiteID {
		if err := s.backend().SwitchToSite(ctx, flags.siteID); err != nil {
			s.close()
			return nil, usageErrorf("%w", err)
		}
	}
	return s, nil
}

// openStore loads the configuration and opens the store on the main site.
func openStore(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, usageErrorf("%w", err)
	}
	logger, err := logging.New(flags.verbose)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	logger.Debug("configuration loaded",
		zap.String("backend", cfg.Backend),
		zap.String("data_dir", cfg.DataDir),
		zap.String("dsn", logging.SanitizeDSN(cfg.DSN)))

	st, err := termmeta.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &session{store: st, logger: logger}, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult writes the outcome of a boolean operation.
func printResult(w io.Writer, op string, ok bool) error {
	if flags.jsonMode {
		return printJSON(w, map[string]any{"op": op, "ok": ok})
	}
	if ok {
		fmt.Fprintf(w, "%s: ok\n", op)
	} else {
		fmt.Fprintf(w, "%s: no change\n", op)
	}
	return nil
}
