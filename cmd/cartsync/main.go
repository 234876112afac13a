// Command cartsync keeps a reconciled cart view current without serving HTTP.
// With -once it prints a single view as JSON and exits.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront/internal/app"
	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/instance"
	"github.com/angelmondragon/storefront/pkg/logger"
)

func main() {
	once := flag.Bool("once", false, "reconcile the stored cart once and print the view")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cartsync"})
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cartsync",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
		"cart_key": cfg.Storage.CartKey,
	})

	if err := run(ctx, cfg, logg, *once); err != nil {
		logg.Error(ctx, "cartsync stopped unexpectedly", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, once bool) (err error) {
	a, err := app.New(ctx, cfg, logg, cart.WithOnView(func(ctx context.Context, view *cart.View) {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"item_count":   view.ItemCount,
			"total_amount": view.TotalAmount.StringFixed(2),
			"pending":      view.Pending,
			"lines":        len(view.Lines),
		}), "cart view reconciled")
	}))
	defer func() {
		err = multierr.Append(err, a.Close())
	}()
	if err != nil {
		return err
	}

	if once {
		view, err := a.Reconciler.Reconcile(ctx, a.Cart.Get(ctx))
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(view); err != nil {
			return fmt.Errorf("writing view: %w", err)
		}
		return nil
	}

	logg.Info(ctx, "cartsync watching cart")
	return a.Watcher.Run(ctx)
}
