package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/termmeta/internal/termmeta"
	pub "github.com/mesh-intelligence/termmeta/pkg/termmeta"
)

const modulePath = "github.com/mesh-intelligence/termmeta"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the termmeta version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"version":        pub.Version,
					"module":         modulePath,
					"schema_version": termmeta.DBVersion,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "termmeta v%s\nmodule: %s\nschema: %d\n", pub.Version, modulePath, termmeta.DBVersion)
			return nil
		},
	}
}
