package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harvester-hq/harvester/internal/source"
)

// newSourcesCmd groups the source management subcommands.
func newSourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage source records",
	}
	cmd.AddCommand(newSourcesListCmd())
	cmd.AddCommand(newSourcesCreateCmd())
	cmd.AddCommand(newSourcesDeleteCmd())
	return cmd
}

func newSourcesListCmd() *cobra.Command {
	var ids []int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFromContext(cmd.Context())
			if err != nil {
				return err
			}
			sources, err := a.Sources().All(cmd.Context(), ids...)
			if err != nil {
				return err
			}
			for _, src := range sources {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\n",
					src.ID, src.ForeignID, src.Label, src.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
	cmd.Flags().Int64SliceVar(&ids, "ids", nil, "restrict to the given source ids")
	return cmd
}

func newSourcesCreateCmd() *cobra.Command {
	var label string

	cmd := &cobra.Command{
		Use:   "create [foreign-id]",
		Short: "Create a source (or update its label if it exists)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFromContext(cmd.Context())
			if err != nil {
				return err
			}
			in := source.CreateInput{Label: label}
			if len(args) == 1 {
				in.ForeignID = args[0]
			}
			src, err := a.Sources().CreateOrGet(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", src.ID, src.ForeignID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&label, "label", "l", "", "display label for the source")
	return cmd
}

func newSourcesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <foreign-id>",
		Short: "Delete a source and everything ingested from it",
		Long: `Deletes the source together with all of its documents, pages, and
references in one transaction. The removal either completes in full or
leaves storage untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFromContext(cmd.Context())
			if err != nil {
				return err
			}
			src, found, err := a.Sources().ByForeignID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no source with foreign id %q", args[0])
			}
			if err := a.Sources().Delete(cmd.Context(), src); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted source %d (%s)\n", src.ID, src.ForeignID)
			return nil
		},
	}
}
