package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harvester-hq/harvester/internal/crawler"
	"github.com/harvester-hq/harvester/internal/source"
)

// newCrawlCmd creates the 'crawl' subcommand. It resolves (or creates)
// the target source, resolves the named crawler, and runs one crawl
// against it.
func newCrawlCmd() *cobra.Command {
	var (
		foreignID string
		label     string
		opts      map[string]string
	)

	cmd := &cobra.Command{
		Use:   "crawl <crawler>",
		Short: "Run a crawler against a source",
		Long: `Runs the named crawler once. The target source is resolved by its
foreign id and created when missing, so re-running a crawl registration
is always safe. Crawler options are passed as repeated --opt key=value
flags; each crawler documents the options it understands (the web
crawler wants "url", the directory crawler wants "path").`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFromContext(cmd.Context())
			if err != nil {
				return err
			}

			c, err := a.Crawlers().Get(args[0])
			if err != nil {
				return fmt.Errorf("available crawlers %v: %w", a.Crawlers().Names(), err)
			}

			src, err := a.Sources().CreateOrGet(cmd.Context(), source.CreateInput{
				ForeignID: foreignID,
				Label:     label,
			})
			if err != nil {
				return fmt.Errorf("resolve source: %w", err)
			}

			a.Logger().Info("crawl starting",
				zap.String("crawler", args[0]),
				zap.Int64("source_id", src.ID),
				zap.String("foreign_id", src.ForeignID),
			)
			if err := c.Crawl(cmd.Context(), src, crawler.Options(opts)); err != nil {
				return fmt.Errorf("crawl %s: %w", args[0], err)
			}
			a.Logger().Info("crawl finished", zap.String("crawler", args[0]))
			return nil
		},
	}

	cmd.Flags().StringVarP(&foreignID, "source", "s", "", "foreign id of the source to crawl (generated when empty)")
	cmd.Flags().StringVarP(&label, "label", "l", "", "display label for the source")
	cmd.Flags().StringToStringVar(&opts, "opt", nil, "crawler option as key=value (repeatable)")

	return cmd
}
