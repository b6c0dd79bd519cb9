// File: cmd/resolve.go
package cmd

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wardrobelabs/relist/internal/config"
	"github.com/wardrobelabs/relist/internal/observability"
	"github.com/wardrobelabs/relist/internal/taxonomy"
)

// resolvedCandidate is the CLI-facing shape of one scored catalog node.
type resolvedCandidate struct {
	Path  string `json:"path"`
	Score int    `json:"score"`
}

// newResolveCmd creates the `resolve` command: a dry run of category
// resolution against the loaded catalog, without touching a browser.
func newResolveCmd() *cobra.Command {
	resolveCmd := &cobra.Command{
		Use:   "resolve [category text]",
		Short: "Shows the ranked taxonomy candidates for a free-text category",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			var cfg config.Config
			if err := viper.Unmarshal(&cfg); err != nil {
				return fmt.Errorf("failed to unmarshal config: %w", err)
			}

			catalog, err := taxonomy.LoadCatalog(cfg.Marketplace.CatalogPath)
			if err != nil {
				return fmt.Errorf("failed to load taxonomy catalog: %w", err)
			}
			resolver := taxonomy.NewResolver(catalog, logger)

			gender, _ := cmd.Flags().GetString("gender")
			candidates := resolver.Resolve(args[0], gender)

			out := make([]resolvedCandidate, 0, len(candidates))
			for _, c := range candidates {
				out = append(out, resolvedCandidate{Path: c.Node.Path(), Score: c.Score})
			}

			data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode candidates: %w", err)
			}
			fmt.Println(string(data))
			return nil
		},
	}

	resolveCmd.Flags().StringP("gender", "g", "", "Gender hint steering the main branch (women, men, kids).")
	return resolveCmd
}
