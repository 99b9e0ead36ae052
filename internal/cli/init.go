package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/termmeta/internal/paths"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize termmeta configuration and storage",
		Long: "Write a default config.yaml when none exists, then attach the backend,\n" +
			"create the network tables and install the termmeta table on the main site.",
		Args: cobra.NoArgs,
		RunE: runInit,
	}
}

func runInit(cmd *cobra.Command, _ []string) error {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}

	// The data directory recorded in a new config.yaml is the flag value, so
	// later runs without --data-dir find the same database.
	created, err := writeConfigIfMissing(paths.ConfigFile(configDir), flags.dataDir)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.close()

	out := cmd.OutOrStdout()
	if flags.jsonMode {
		return printJSON(out, map[string]any{
			"config":         paths.ConfigFile(configDir),
			"config_created": created,
			"backend":        s.backend().Config().Backend,
			"data_dir":       s.backend().Config().DataDir,
		})
	}
	if created {
		fmt.Fprintf(out, "Wrote %s\n", paths.ConfigFile(configDir))
	}
	fmt.Fprintln(out, "termmeta initialized successfully")
	return nil
}
