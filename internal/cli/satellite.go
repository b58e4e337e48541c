package cli

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront-core/internal/broadcast"
	"github.com/joao-fontenele/storefront-core/internal/cleanup"
	"github.com/joao-fontenele/storefront-core/internal/config"
	"github.com/joao-fontenele/storefront-core/internal/reconcile"
	"github.com/joao-fontenele/storefront-core/internal/redisx"
	"github.com/joao-fontenele/storefront-core/internal/satellite"
)

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation cycle between the satellite cache and the storefront",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSatellite()
			if err != nil {
				return err
			}

			store, err := satellite.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx := cmd.Context()
			var locker reconcile.Locker
			if cfg.RedisAddr != "" {
				rdb, err := redisx.New(ctx, cfg.RedisAddr)
				if err != nil {
					return fmt.Errorf("failed to connect to redis: %w", err)
				}
				defer func() { _ = rdb.Close() }()
				locker = redisx.NewLocker(rdb)
			}

			engine := reconcile.NewEngine(
				reconcile.NewHTTPUpstream(cfg.StorefrontURL, newHTTPClient(cfg.PullTimeout)),
				store,
				locker,
				reconcile.Config{
					SyncInterval: cfg.SyncInterval,
					PullTimeout:  cfg.PullTimeout,
					PushTimeout:  cfg.PushTimeout,
				},
				rootOpts.logger(cmd),
			)

			report, cycleErr := engine.RunCycle(ctx)
			if err := rootOpts.print(cmd, report, func(w io.Writer) { printCycle(w, report) }); err != nil {
				return err
			}
			return cycleErr
		},
	}
}

func printCycle(w io.Writer, r reconcile.CycleReport) {
	if r.Skipped {
		_, _ = fmt.Fprintln(w, "skipped: another replica holds the reconciliation lock")
		return
	}
	_, _ = fmt.Fprintf(w, "catalog:    fetched %d, applied %d, failed %d, deactivated %d\n",
		r.Catalog.Fetched, r.Catalog.Applied, r.Catalog.Failed, r.Catalog.Deactivated)
	_, _ = fmt.Fprintf(w, "identities: pending %d, pushed %d, failed %d\n",
		r.Identity.Pending, r.Identity.Pushed, r.Identity.Failed)
	_, _ = fmt.Fprintf(w, "profiles:   fetched %d, applied %d, failed %d\n",
		r.Profiles.Fetched, r.Profiles.Applied, r.Profiles.Failed)
}

func satelliteDBPath(flag string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv("SATELLITE_DB_PATH"); v != "" {
		return v
	}
	return "satellite.db"
}

func NewCleanupCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Prune expired chat states, view history and user actions once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := satellite.Open(satelliteDBPath(dbPath))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			res, err := cleanup.NewService(store, rootOpts.logger(cmd)).RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			return rootOpts.print(cmd, res, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "removed %d chat states, %d views, %d actions\n", res.ChatStates, res.Views, res.Actions)
			})
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "satellite database path (default $SATELLITE_DB_PATH or satellite.db)")
	return cmd
}

type broadcastOptions struct {
	dbPath string
	target string
	text   string
	photo  string
}

func NewBroadcastCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &broadcastOptions{}

	cmd := &cobra.Command{
		Use:   "broadcast",
		Short: "Send a message to every chat user, or only VIPs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := satellite.Target(opts.target)
			if !target.Valid() {
				return fmt.Errorf("invalid target %q: must be all or vip", opts.target)
			}
			if strings.TrimSpace(opts.text) == "" && opts.photo == "" {
				return errors.New("--text is required")
			}

			token := os.Getenv("TELEGRAM_BOT_TOKEN")
			if token == "" {
				return errors.New("TELEGRAM_BOT_TOKEN environment variable is required")
			}

			store, err := satellite.Open(satelliteDBPath(opts.dbPath))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx := cmd.Context()
			recipients, err := store.Recipients(ctx, target)
			if err != nil {
				return fmt.Errorf("failed to list recipients: %w", err)
			}

			policy, err := config.LoadPolicy(os.Getenv("POLICY_FILE"), config.SurfaceSatellite)
			if err != nil {
				return err
			}

			logger := rootOpts.logger(cmd)
			sender := broadcast.NewTelegramSender(os.Getenv("TELEGRAM_API_URL"), token, newHTTPClient(10*time.Second))
			report := broadcast.NewBroadcaster(sender, broadcast.DefaultInterval, logger).Send(ctx, recipients, broadcast.Message{
				Text:    broadcast.Expand(opts.text, broadcast.PolicyPrices(policy)),
				PhotoID: opts.photo,
			})

			return rootOpts.print(cmd, report, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "sent to %d of %d recipients, %d failed\n", report.Succeeded, report.Total, report.Failed)
			})
		},
	}

	cmd.Flags().StringVar(&opts.dbPath, "db", "", "satellite database path (default $SATELLITE_DB_PATH or satellite.db)")
	cmd.Flags().StringVar(&opts.target, "target", string(satellite.TargetAll), "recipients: all or vip")
	cmd.Flags().StringVar(&opts.text, "text", "", "message text, HTML allowed")
	cmd.Flags().StringVar(&opts.photo, "photo", "", "Telegram file id of a photo to send with the text as caption")

	return cmd
}
