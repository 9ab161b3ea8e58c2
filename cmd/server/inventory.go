package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/maxim618/inventory-reservation-service/internal/config"
	"github.com/maxim618/inventory-reservation-service/internal/core/domain"
	"github.com/maxim618/inventory-reservation-service/internal/port"
)

var errNoJournal = errors.New("journal.backend is none, the inventory snapshot lives in the journal database")

// newInventoryCommand manages the inventory snapshot that seed_from_db reads
// at startup. It never touches live stock counters.
func newInventoryCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Manage the inventory snapshot used for seeding",
	}

	cmd.AddCommand(&cobra.Command{
		Use:          "set <stock-id> <quantity>",
		Short:        "Upsert the snapshot quantity of a stock item",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || quantity < 0 {
				return fmt.Errorf("quantity must be a non-negative integer, got %q", args[1])
			}

			return withJournal(cmd.Context(), *configPath, func(repo port.JournalRepository) error {
				return setStockLevel(cmd.Context(), repo, args[0], quantity, time.Now())
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:          "list",
		Short:        "Print the inventory snapshot",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd.Context(), *configPath, func(repo port.JournalRepository) error {
				return printStockLevels(cmd.Context(), repo, cmd.OutOrStdout())
			})
		},
	})

	return cmd
}

func withJournal(ctx context.Context, configPath string, fn func(port.JournalRepository) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	repo, closeJournal, err := openJournal(ctx, cfg.Journal, zap.NewNop())
	if err != nil {
		return err
	}
	defer closeJournal()

	if repo == nil {
		return errNoJournal
	}
	return fn(repo)
}

func setStockLevel(ctx context.Context, repo port.JournalRepository, stockID string, quantity int64, now time.Time) error {
	if stockID == "" {
		return errors.New("stock id is required")
	}
	return repo.PutStockLevel(ctx, domain.StockLevel{StockID: stockID, Quantity: quantity, UpdatedAt: now.UTC()})
}

func printStockLevels(ctx context.Context, repo port.JournalRepository, w io.Writer) error {
	levels, err := repo.LoadStockLevels(ctx)
	if err != nil {
		return err
	}
	for _, lvl := range levels {
		fmt.Fprintf(w, "%s\t%d\t%s\n", lvl.StockID, lvl.Quantity, lvl.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}
