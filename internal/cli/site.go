package cli

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/termmeta/pkg/types"
)

func newSiteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "site",
		Short: "Manage the sites of the network",
	}
	cmd.AddCommand(newSiteCreateCmd(), newSiteListCmd(), newSiteDeleteCmd())
	return cmd
}

func newSiteCreateCmd() *cobra.Command {
	var domain, path string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a site; network-active components install on it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if domain == "" {
				return usageErrorf("--domain is required")
			}
			s, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			id, err := s.backend().CreateSite(cmd.Context(), domain, path)
			if err != nil {
				return err
			}
			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]any{"site_id": id})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created site %d\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "", "site domain")
	cmd.Flags().StringVar(&path, "path", "/", "site path")
	return cmd
}

func newSiteListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the sites of the configured network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			sites, err := s.backend().ListSites(cmd.Context(), s.backend().Config().GetNetworkID())
			if err != nil {
				return err
			}
			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), sites)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDOMAIN\tPATH\tCREATED")
			for _, site := range sites {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", site.SiteID, site.Domain, site.Path, site.CreatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}

func newSiteDeleteCmd() *cobra.Command {
	var drop bool
	cmd := &cobra.Command{
		Use:   "delete SITE_ID",
		Short: "Delete a site, optionally dropping its tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("site", args[0])
			if err != nil {
				return err
			}
			s, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.backend().DeleteSite(cmd.Context(), id, drop); err != nil {
				if errors.Is(err, types.ErrMainSite) || errors.Is(err, types.ErrSiteNotFound) {
					return usageErrorf("%w", err)
				}
				return err
			}
			return printResult(cmd.OutOrStdout(), fmt.Sprintf("delete site %d", id), true)
		},
	}
	cmd.Flags().BoolVar(&drop, "drop", false, "drop the site's tables")
	return cmd
}

// parseID parses a positive integer id argument.
func parseID(what, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, usageErrorf("invalid %s id %q", what, raw)
	}
	return id, nil
}
