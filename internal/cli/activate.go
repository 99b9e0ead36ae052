package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/termmeta/internal/termmeta"
	"github.com/mesh-intelligence/termmeta/pkg/types"
)

func newActivateCmd() *cobra.Command {
	var network bool
	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Activate term metadata on the current site or network-wide",
		Long: "Activate installs the termmeta table. With --network every site of the\n" +
			"network is installed in order and new sites are installed as they are\n" +
			"created. Large networks are recorded as active but each site must then\n" +
			"be installed with `termmeta install --site N`.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.backend().Activate(cmd.Context(), termmeta.Name, network); err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), "activate", true)
		},
	}
	cmd.Flags().BoolVar(&network, "network", false, "activate on every site of the network")
	return cmd
}

func newUpgradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade",
		Short: "Bring the current site's termmeta schema up to date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.store.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			return printSchemaStatus(cmd, s)
		},
	}
}

func newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install the termmeta table on the site given by --site",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.siteID <= 0 {
				return usageErrorf("install requires --site")
			}
			// InstallSite does its own switch, so the session stays on the main site.
			s, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.store.InstallSite(cmd.Context(), flags.siteID); err != nil {
				if errors.Is(err, types.ErrSiteNotFound) {
					return usageErrorf("%w", err)
				}
				return err
			}
			return printResult(cmd.OutOrStdout(), fmt.Sprintf("install site %d", flags.siteID), true)
		},
	}
}

func printSchemaStatus(cmd *cobra.Command, s *session) error {
	ctx := cmd.Context()
	version, err := s.store.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	active, err := s.backend().IsNetworkActive(ctx, termmeta.Name)
	if err != nil {
		return err
	}
	h := s.backend().Handle()
	out := cmd.OutOrStdout()
	if flags.jsonMode {
		return printJSON(out, map[string]any{
			"site_id":        h.SiteID,
			"table":          s.store.Table(),
			"schema_version": version,
			"current":        version >= termmeta.DBVersion,
			"network_active": active,
		})
	}
	fmt.Fprintf(out, "site %d: table %s, schema %d (current %d), network active: %t\n",
		h.SiteID, s.store.Table(), version, termmeta.DBVersion, active)
	return nil
}
