// cmd/fridgetrack/commands.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"fridgetrack-sync/internal/models"
	"fridgetrack-sync/internal/upload"
)

func (a *app) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the backend and its detection components",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.client.Ping(cmd.Context())
			if err != nil {
				return a.fail("health", err)
			}
			if err := a.print(h); err != nil {
				return err
			}
			if !h.Healthy() {
				return fmt.Errorf("backend is %s (database %s)", h.Status, h.Database)
			}
			return nil
		},
	}
}

func (a *app) inventoryCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "List the user's items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.requireUser()
			if err != nil {
				return err
			}
			st, err := models.ParseItemStatus(status)
			if err != nil {
				return err
			}
			items, err := a.client.Queries.Inventory(cmd.Context(), user, st)
			if err != nil {
				return a.fail("inventory", err)
			}
			return a.print(items)
		},
	}
	cmd.Flags().StringVar(&status, "status", string(models.StatusActive), "active, consumed or wasted")
	return cmd
}

func (a *app) expiringCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "expiring",
		Short: "List items expiring soon, grouped by urgency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.requireUser()
			if err != nil {
				return err
			}
			res, err := a.client.Queries.Expiring(cmd.Context(), user, days)
			if err != nil {
				return a.fail("expiring", err)
			}
			return a.print(res)
		},
	}
	cmd.Flags().IntVar(&days, "days", 3, "lookahead window in days")
	return cmd
}

func (a *app) recipesCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "recipes",
		Short: "Suggest recipes that use expiring items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.requireUser()
			if err != nil {
				return err
			}
			res, err := a.client.Queries.Recipes(cmd.Context(), user, days)
			if err != nil {
				return a.fail("recipes", err)
			}
			return a.print(res)
		},
	}
	cmd.Flags().IntVar(&days, "days", 3, "use items expiring within this many days")
	return cmd
}

func (a *app) shoppingListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shopping-list",
		Short: "Suggest what to buy next",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.requireUser()
			if err != nil {
				return err
			}
			res, err := a.client.Queries.ShoppingList(cmd.Context(), user)
			if err != nil {
				return a.fail("shopping_list", err)
			}
			return a.print(res)
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show waste and savings statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.requireUser()
			if err != nil {
				return err
			}
			res, err := a.client.Queries.Stats(cmd.Context(), user)
			if err != nil {
				return a.fail("stats", err)
			}
			return a.print(res)
		},
	}
}

func (a *app) scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <image>",
		Short: "Upload a fridge photo and detect its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.requireUser()
			if err != nil {
				return err
			}
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}

			unsubscribe := a.client.Upload.Subscribe(progressPrinter(a.errOut))
			defer unsubscribe()

			res, err := a.client.Upload.Select(cmd.Context(), user, upload.File{
				Name:    filepath.Base(args[0]),
				Content: content,
			})
			if err != nil {
				return a.fail("scan", err)
			}
			return a.print(res)
		},
	}
}

// progressPrinter reports state changes and progress steps of ten percent.
func progressPrinter(w io.Writer) func(upload.Snapshot) {
	var (
		last     upload.State
		lastStep = -1
	)
	return func(s upload.Snapshot) {
		if s.State != last {
			last = s.State
			switch s.State {
			case upload.StateTransmitting:
				fmt.Fprintf(w, "%s (%d bytes, compressed: %t)\n", s.State, s.UploadSize, s.Compressed)
			default:
				fmt.Fprintln(w, s.State)
			}
		}
		if s.State == upload.StateTransmitting && s.Progress/10 > lastStep {
			lastStep = s.Progress / 10
			fmt.Fprintf(w, "  %3d%%\n", s.Progress)
		}
	}
}

type statusFunc func(ctx context.Context, userID, itemID string) (*models.StatusUpdate, error)

func (a *app) consume(ctx context.Context, userID, itemID string) (*models.StatusUpdate, error) {
	return a.client.Mutations.MarkConsumed(ctx, userID, itemID)
}

func (a *app) waste(ctx context.Context, userID, itemID string) (*models.StatusUpdate, error) {
	return a.client.Mutations.MarkWasted(ctx, userID, itemID)
}

func (a *app) restore(ctx context.Context, userID, itemID string) (*models.StatusUpdate, error) {
	return a.client.Mutations.Restore(ctx, userID, itemID)
}

func (a *app) statusCmd(name, short string, fn statusFunc) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <item-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.requireUser()
			if err != nil {
				return err
			}
			res, err := fn(cmd.Context(), user, args[0])
			if err != nil {
				return a.fail(name, err)
			}
			return a.print(res)
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <item-id>",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.requireUser()
			if err != nil {
				return err
			}
			if err := a.client.Mutations.DeleteItem(cmd.Context(), user, args[0]); err != nil {
				return a.fail("delete", err)
			}
			return nil
		},
	}
}

func (a *app) metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Print the process metrics in Prometheus text format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeMetrics(a.out)
		},
	}
}

func writeMetrics(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}
