package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/termmeta/internal/metaquery"
	"github.com/mesh-intelligence/termmeta/pkg/types"
)

func newTermCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "term",
		Short: "Manage taxonomy terms of the current site",
	}
	cmd.AddCommand(newTermAddCmd(), newTermDeleteCmd(), newTermListCmd())
	return cmd
}

func newTermAddCmd() *cobra.Command {
	var taxonomy, slug string
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a term to a taxonomy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			term, err := s.backend().InsertTerm(cmd.Context(), args[0], slug, taxonomy)
			if err != nil {
				if errors.Is(err, types.ErrInvalidName) || errors.Is(err, types.ErrInvalidTaxonomy) {
					return usageErrorf("%w", err)
				}
				return err
			}
			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), term)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created term %d (%s)\n", term.TermID, term.Slug)
			return nil
		},
	}
	cmd.Flags().StringVar(&taxonomy, "taxonomy", "category", "taxonomy of the term")
	cmd.Flags().StringVar(&slug, "slug", "", "term slug (default: derived from NAME)")
	return cmd
}

func newTermDeleteCmd() *cobra.Command {
	var taxonomy string
	cmd := &cobra.Command{
		Use:   "delete TERM_ID",
		Short: "Delete a term and its metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("term", args[0])
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.backend().DeleteTerm(cmd.Context(), id, taxonomy); err != nil {
				if errors.Is(err, types.ErrTermNotFound) {
					return usageErrorf("%w", err)
				}
				return err
			}
			return printResult(cmd.OutOrStdout(), fmt.Sprintf("delete term %d", id), true)
		},
	}
	cmd.Flags().StringVar(&taxonomy, "taxonomy", "category", "taxonomy of the term")
	return cmd
}

type termListOptions struct {
	taxonomies    []string
	search        string
	number        int
	offset        int
	metaKey       string
	metaValue     string
	metaCompare   string
	metaType      string
	metaQueryFile string
}

func newTermListCmd() *cobra.Command {
	var o termListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List terms, optionally filtered by metadata",
		Long: "List terms of the current site. --meta-key, --meta-value, --meta-compare\n" +
			"and --meta-type describe one metadata clause; --meta-query reads a full\n" +
			"query (relation, clauses, groups) from a YAML or JSON file. Values for IN\n" +
			"and BETWEEN are comma separated.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			args, err := o.listingArgs()
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			terms, err := s.backend().ListTerms(cmd.Context(), args)
			if err != nil {
				return err
			}
			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), terms)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSLUG\tTAXONOMY")
			for _, t := range terms {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.TermID, t.Name, t.Slug, t.Taxonomy)
			}
			return tw.Flush()
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&o.taxonomies, "taxonomy", nil, "restrict to these taxonomies")
	f.StringVar(&o.search, "search", "", "match name or slug")
	f.IntVar(&o.number, "number", 0, "maximum number of terms (0 for all)")
	f.IntVar(&o.offset, "offset", 0, "terms to skip when --number is set")
	f.StringVar(&o.metaKey, "meta-key", "", "metadata key to filter by")
	f.StringVar(&o.metaValue, "meta-value", "", "metadata value to compare against")
	f.StringVar(&o.metaCompare, "meta-compare", "", "comparison operator (default = or IN)")
	f.StringVar(&o.metaType, "meta-type", "", "cast applied to meta_value (CHAR, NUMERIC, DATE, ...)")
	f.StringVar(&o.metaQueryFile, "meta-query", "", "YAML or JSON file holding a meta query")
	return cmd
}

func (o termListOptions) listingArgs() (types.ListingArgs, error) {
	if o.number < 0 || o.offset < 0 {
		return types.ListingArgs{}, usageErrorf("--number and --offset must not be negative")
	}
	args := types.ListingArgs{
		Taxonomies:  o.taxonomies,
		Search:      o.search,
		Number:      o.number,
		Offset:      o.offset,
		MetaKey:     o.metaKey,
		MetaCompare: strings.ToUpper(o.metaCompare),
		MetaType:    strings.ToUpper(o.metaType),
	}
	if o.metaValue != "" {
		args.MetaValue = cliMetaValue(o.metaValue, args.MetaCompare)
	}
	if o.metaQueryFile != "" {
		q, err := readMetaQuery(o.metaQueryFile)
		if err != nil {
			return types.ListingArgs{}, err
		}
		args.MetaQuery = q
	}

	// The listing only honours a non-empty meta query, so the single-clause
	// flags are folded into one here.
	if mq := metaquery.FromListingArgs(args); !mq.IsEmpty() {
		args.MetaQuery = mq
	}
	args.MetaKey, args.MetaValue, args.MetaCompare, args.MetaType = "", nil, "", ""
	return args, nil
}

// cliMetaValue splits comma separated values for the operators that take a
// list.
func cliMetaValue(raw, compare string) any {
	switch compare {
	case types.CompareIn, types.CompareNotIn, types.CompareBetween, types.CompareNotBetween:
		parts := strings.Split(raw, ",")
		values := make([]any, 0, len(parts))
		for _, p := range parts {
			values = append(values, strings.TrimSpace(p))
		}
		return values
	}
	return raw
}

// readMetaQuery parses a meta query document. JSON is valid YAML, so one
// decoder serves both.
func readMetaQuery(path string) (*types.MetaQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, usageErrorf("read meta query: %w", err)
	}
	var q types.MetaQuery
	if err := yaml.Unmarshal(data, &q); err != nil {
		return nil, usageErrorf("parse meta query %s: %w", path, err)
	}
	return &q, nil
}
