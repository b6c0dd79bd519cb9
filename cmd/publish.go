// File: cmd/publish.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wardrobelabs/relist/api/schemas"
	"github.com/wardrobelabs/relist/internal/browser"
	"github.com/wardrobelabs/relist/internal/config"
	"github.com/wardrobelabs/relist/internal/observability"
	"github.com/wardrobelabs/relist/internal/publisher"
	"github.com/wardrobelabs/relist/internal/taxonomy"
)

var cmdJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// pageFactory adapts the browser manager to the orchestrator's factory
// interface.
type pageFactory struct {
	manager *browser.Manager
}

func (f *pageFactory) NewPage(ctx context.Context) (publisher.Page, error) {
	return f.manager.NewPage(ctx)
}

// newPublishCmd creates and configures the `publish` command.
func newPublishCmd() *cobra.Command {
	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Publishes one listing to the marketplace using a saved session",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			var cfg config.Config
			if err := viper.Unmarshal(&cfg); err != nil {
				return fmt.Errorf("failed to unmarshal config with flag overrides: %w", err)
			}

			listing, err := readListing(viper.GetString("listing"))
			if err != nil {
				return err
			}
			session, err := readSession(viper.GetString("session"))
			if err != nil {
				return err
			}

			catalog, err := taxonomy.LoadCatalog(cfg.Marketplace.CatalogPath)
			if err != nil {
				return fmt.Errorf("failed to load taxonomy catalog: %w", err)
			}
			resolver := taxonomy.NewResolver(catalog, logger)

			manager := browser.NewManager(&cfg, logger)
			pub := publisher.New(&cfg, resolver, &pageFactory{manager: manager}, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			outcome, pubErr := pub.Publish(ctx, listing, session)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()
			if err := manager.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Error during browser shutdown", zap.Error(err))
			}

			if err := writeOutcome(outcome, viper.GetString("snapshot")); err != nil {
				return err
			}

			if !outcome.Succeeded() {
				return fmt.Errorf("publish attempt %s failed with status %q: %v",
					outcome.AttemptID, outcome.Status, pubErr)
			}
			return nil
		},
	}

	publishCmd.Flags().StringP("listing", "l", "", "Path to the listing JSON file. (Required)")
	publishCmd.Flags().StringP("session", "s", "", "Path to the session JSON file with authenticated cookies. (Required)")
	publishCmd.Flags().String("snapshot", "", "Path to write the failure screenshot PNG, when one was captured.")
	publishCmd.Flags().Bool("headless", true, "Run the browser headless. (Overrides config/env)")
	_ = publishCmd.MarkFlagRequired("listing")
	_ = publishCmd.MarkFlagRequired("session")

	return publishCmd
}

func readListing(path string) (*schemas.Listing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read listing file: %w", err)
	}
	var listing schemas.Listing
	if err := cmdJSON.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("failed to parse listing file %q: %w", path, err)
	}
	return &listing, nil
}

func readSession(path string) (*schemas.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	var session schemas.Session
	if err := cmdJSON.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to parse session file %q: %w", path, err)
	}
	return &session, nil
}

// writeOutcome prints the outcome JSON to stdout. The raw screenshot is moved
// to a file when a path was given, and never dumped inline.
func writeOutcome(outcome *schemas.PublishOutcome, snapshotPath string) error {
	if len(outcome.Snapshot) > 0 && snapshotPath != "" {
		if err := os.WriteFile(snapshotPath, outcome.Snapshot, 0o644); err != nil {
			return fmt.Errorf("failed to write snapshot file: %w", err)
		}
	}
	printable := *outcome
	printable.Snapshot = nil

	data, err := cmdJSON.MarshalIndent(&printable, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode outcome: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
