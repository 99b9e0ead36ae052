package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/termmeta/pkg/types"
)

func newMetaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meta",
		Short: "Read and write term metadata on the current site",
	}
	cmd.AddCommand(
		newMetaAddCmd(),
		newMetaGetCmd(),
		newMetaUpdateCmd(),
		newMetaDeleteCmd(),
		newMetaDeleteByKeyCmd(),
	)
	return cmd
}

// metaError maps metadata validation failures to user errors.
func metaError(err error) error {
	switch {
	case errors.Is(err, types.ErrInvalidObjectID),
		errors.Is(err, types.ErrInvalidKey),
		errors.Is(err, types.ErrMetaTableMissing):
		return usageErrorf("%w", err)
	}
	return err
}

func newMetaAddCmd() *cobra.Command {
	var unique bool
	cmd := &cobra.Command{
		Use:   "add TERM_ID KEY VALUE",
		Short: "Add a metadata row to a term",
		Args:  cobra.ExactArgs(3),
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

			ok, err := s.store.AddTermMeta(cmd.Context(), id, args[1], args[2], unique)
			if err != nil {
				return metaError(err)
			}
			return printResult(cmd.OutOrStdout(), "add", ok)
		},
	}
	cmd.Flags().BoolVar(&unique, "unique", false, "refuse when the key already exists on the term")
	return cmd
}

func newMetaGetCmd() *cobra.Command {
	var single bool
	cmd := &cobra.Command{
		Use:   "get TERM_ID [KEY]",
		Short: "Print metadata of a term",
		Long:  "Without KEY every key of the term is printed. With --single only the\nfirst value of KEY is printed.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("term", args[0])
			if err != nil {
				return err
			}
			if single && len(args) < 2 {
				return usageErrorf("--single requires KEY")
			}
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			switch {
			case len(args) == 1:
				all, err := s.store.AllTermMeta(ctx, id)
				if err != nil {
					return metaError(err)
				}
				if flags.jsonMode {
					return printJSON(out, all)
				}
				keys := make([]string, 0, len(all))
				for k := range all {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					for _, v := range all[k] {
						fmt.Fprintf(out, "%s\t%s\n", k, v)
					}
				}
			case single:
				v, err := s.store.GetTermMetaSingle(ctx, id, args[1])
				if err != nil {
					return metaError(err)
				}
				if flags.jsonMode {
					return printJSON(out, v)
				}
				fmt.Fprintln(out, v)
			default:
				values, err := s.store.GetTermMeta(ctx, id, args[1])
				if err != nil {
					return metaError(err)
				}
				if flags.jsonMode {
					return printJSON(out, values)
				}
				for _, v := range values {
					fmt.Fprintln(out, v)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&single, "single", false, "print only the first value")
	return cmd
}

func newMetaUpdateCmd() *cobra.Command {
	var prev string
	cmd := &cobra.Command{
		Use:   "update TERM_ID KEY VALUE",
		Short: "Overwrite metadata of a term, adding it when absent",
		Args:  cobra.ExactArgs(3),
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

			ok, err := s.store.UpdateTermMeta(cmd.Context(), id, args[1], args[2], prev)
			if err != nil {
				return metaError(err)
			}
			return printResult(cmd.OutOrStdout(), "update", ok)
		},
	}
	cmd.Flags().StringVar(&prev, "prev", "", "only overwrite rows holding this value")
	return cmd
}

func newMetaDeleteCmd() *cobra.Command {
	var value string
	cmd := &cobra.Command{
		Use:   "delete TERM_ID KEY",
		Short: "Delete metadata of a term",
		Args:  cobra.ExactArgs(2),
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

			ok, err := s.store.DeleteTermMeta(cmd.Context(), id, args[1], value)
			if err != nil {
				return metaError(err)
			}
			return printResult(cmd.OutOrStdout(), "delete", ok)
		},
	}
	cmd.Flags().StringVar(&value, "value", "", "only delete rows holding this value")
	return cmd
}

func newMetaDeleteByKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-by-key KEY",
		Short: "Delete KEY from every term of the current site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			ok, err := s.store.DeleteTermMetaByKey(cmd.Context(), args[0])
			if err != nil {
				return metaError(err)
			}
			return printResult(cmd.OutOrStdout(), "delete-by-key", ok)
		},
	}
}
