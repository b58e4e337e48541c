package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/storefront-core/internal/catalog"
	"github.com/joao-fontenele/storefront-core/internal/domain"
	"github.com/joao-fontenele/storefront-core/internal/profile"
	"github.com/joao-fontenele/storefront-core/internal/satellite"
)

var tracer = otel.Tracer("reconcile")

const (
	dutyCatalog    = "catalog"
	dutyIdentities = "identities"
	dutyProfiles   = "profiles"
	dutyRefresh    = "refresh"
)

// Upstream is the authoritative storefront as seen from the satellite.
type Upstream interface {
	ListProducts(ctx context.Context, afterID int64, limit int) (catalog.Page, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ProvisionUser(ctx context.Context, identity profile.ExternalIdentity) (profile.Provisioned, error)
	ListUsers(ctx context.Context, offset, limit int) (profile.UserPage, error)
}

// Cache is the satellite side of reconciliation. It has no way to change
// stock other than copying the authoritative product.
type Cache interface {
	UpsertProduct(ctx context.Context, p domain.Product, syncedAt time.Time) error
	MarkMissingInactive(ctx context.Context, seen []int64) (int64, error)
	PendingIdentities(ctx context.Context, limit int) ([]satellite.ChatUser, error)
	SetCanonicalID(ctx context.Context, telegramID, canonicalID int64) error
	ApplyProfile(ctx context.Context, u satellite.ProfileUpdate) (bool, error)
}

// Locker keeps replicas from running overlapping cycles. TryLock returns a
// nil release func when someone else holds the lease.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (func(), error)
}

type Config struct {
	Name         string
	SyncInterval time.Duration
	PullTimeout  time.Duration
	PushTimeout  time.Duration
	PageSize     int
	PushBatch    int
}

func DefaultConfig() Config {
	return Config{
		Name:         "satellite",
		SyncInterval: 300 * time.Second,
		PullTimeout:  30 * time.Second,
		PushTimeout:  10 * time.Second,
		PageSize:     100,
		PushBatch:    100,
	}
}

type PullStats struct {
	Fetched     int   `json:"fetched"`
	Applied     int   `json:"applied"`
	Failed      int   `json:"failed"`
	Deactivated int64 `json:"deactivated"`
}

type PushStats struct {
	Pending int `json:"pending"`
	Pushed  int `json:"pushed"`
	Failed  int `json:"failed"`
}

// CycleReport sums up one pass over every duty.
type CycleReport struct {
	Skipped  bool      `json:"skipped"`
	Catalog  PullStats `json:"catalog"`
	Identity PushStats `json:"identities"`
	Profiles PullStats `json:"profiles"`
}

type Engine struct {
	upstream Upstream
	cache    Cache
	locker   Locker
	cfg      Config
	now      func() time.Time
	metrics  *engineMetrics
	logger   *slog.Logger
}

// NewEngine builds an engine. locker may be nil for a single replica.
func NewEngine(upstream Upstream, cache Cache, locker Locker, cfg Config, logger *slog.Logger) *Engine {
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = def.SyncInterval
	}
	if cfg.PullTimeout <= 0 {
		cfg.PullTimeout = def.PullTimeout
	}
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = def.PushTimeout
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.PushBatch <= 0 {
		cfg.PushBatch = def.PushBatch
	}

	return &Engine{
		upstream: upstream,
		cache:    cache,
		locker:   locker,
		cfg:      cfg,
		now:      time.Now,
		metrics:  newEngineMetrics(),
		logger:   logger,
	}
}

// Run reconciles once immediately and then every SyncInterval until ctx is
// done. A failing or panicking cycle is logged and the loop carries on.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("reconciliation loop started", "interval", e.cfg.SyncInterval)

	ticker := time.NewTicker(e.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		e.safeCycle(ctx)

		select {
		case <-ctx.Done():
			e.logger.Info("reconciliation loop stopped")
			return
		case <-ticker.C:
		}
	}
}

func (e *Engine) safeCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.fail(ctx, "panic")
			e.logger.Error("reconciliation cycle panicked", "panic", fmt.Sprint(r))
		}
	}()

	if _, err := e.RunCycle(ctx); err != nil && ctx.Err() == nil {
		e.logger.Error("reconciliation cycle failed", "error", err)
	}
}

// RunCycle runs every duty once. Duties are independent: one failing does not
// keep the others from running. The returned error joins their failures.
func (e *Engine) RunCycle(ctx context.Context) (CycleReport, error) {
	var report CycleReport

	if e.locker != nil {
		release, err := e.locker.TryLock(ctx, "reconcile:"+e.cfg.Name, e.cfg.SyncInterval)
		if err != nil {
			return report, fmt.Errorf("acquire cycle lock: %w", err)
		}
		if release == nil {
			e.logger.Info("reconciliation cycle skipped, lock held elsewhere")
			report.Skipped = true
			return report, nil
		}
		defer release()
	}

	ctx, span := tracer.Start(ctx, "reconcile.cycle")
	defer span.End()

	e.metrics.cycles.Add(ctx, 1)

	var errs []error

	catalogStats, err := e.PullCatalog(ctx)
	report.Catalog = catalogStats
	if err != nil {
		errs = append(errs, fmt.Errorf("pull catalog: %w", err))
	}

	pushStats, err := e.PushIdentities(ctx)
	report.Identity = pushStats
	if err != nil {
		errs = append(errs, fmt.Errorf("push identities: %w", err))
	}

	profileStats, err := e.PullProfiles(ctx)
	report.Profiles = profileStats
	if err != nil {
		errs = append(errs, fmt.Errorf("pull profiles: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconciliation cycle failed")
		return report, err
	}

	e.logger.Info("reconciliation cycle complete",
		"products", catalogStats.Applied,
		"deactivated", catalogStats.Deactivated,
		"identities_pushed", pushStats.Pushed,
		"profiles", profileStats.Applied,
	)
	return report, nil
}

// PullCatalog copies every active storefront product into the cache. The
// whole catalog is fetched before anything is written, so a failed fetch
// leaves the cache as it was. Products the storefront no longer lists are
// deactivated only after a complete fetch.
func (e *Engine) PullCatalog(ctx context.Context) (PullStats, error) {
	var stats PullStats

	ctx, cancel := context.WithTimeout(ctx, e.cfg.PullTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "reconcile.pull_catalog")
	defer span.End()

	products, err := e.fetchCatalog(ctx)
	if err != nil {
		e.metrics.fail(ctx, dutyCatalog)
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog fetch failed")
		return stats, err
	}
	stats.Fetched = len(products)

	syncedAt := e.now()
	seen := make([]int64, 0, len(products))
	for _, p := range products {
		seen = append(seen, p.ID)
		if err := e.cache.UpsertProduct(ctx, p, syncedAt); err != nil {
			stats.Failed++
			e.logger.Warn("failed to cache product", "error", err, "product_id", p.ID)
			continue
		}
		stats.Applied++
	}

	deactivated, err := e.cache.MarkMissingInactive(ctx, seen)
	if err != nil {
		e.metrics.fail(ctx, dutyCatalog)
		return stats, fmt.Errorf("deactivate missing products: %w", err)
	}
	stats.Deactivated = deactivated

	e.metrics.synced.Add(ctx, int64(stats.Applied))
	span.SetAttributes(
		attribute.Int("reconcile.fetched", stats.Fetched),
		attribute.Int("reconcile.applied", stats.Applied),
	)

	if stats.Failed > 0 {
		e.metrics.fail(ctx, dutyCatalog)
	}
	return stats, nil
}

// fetchCatalog walks the active catalog by id. A short page ends the walk.
func (e *Engine) fetchCatalog(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product

	for afterID := int64(0); ; {
		page, err := e.upstream.ListProducts(ctx, afterID, e.cfg.PageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch products after id %d: %w", afterID, err)
		}

		products = append(products, page.Products...)
		if len(page.Products) == 0 || len(page.Products) < page.Limit {
			return products, nil
		}
		afterID = page.Products[len(page.Products)-1].ID
	}
}

// PushIdentities asks the storefront for a canonical id for every chat user
// that has none yet. A user that fails is retried next cycle.
func (e *Engine) PushIdentities(ctx context.Context) (PushStats, error) {
	var stats PushStats

	ctx, span := tracer.Start(ctx, "reconcile.push_identities")
	defer span.End()

	pending, err := e.cache.PendingIdentities(ctx, e.cfg.PushBatch)
	if err != nil {
		e.metrics.fail(ctx, dutyIdentities)
		span.RecordError(err)
		return stats, fmt.Errorf("list pending identities: %w", err)
	}
	stats.Pending = len(pending)

	for _, u := range pending {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if err := e.pushIdentity(ctx, u); err != nil {
			stats.Failed++
			e.metrics.fail(ctx, dutyIdentities)
			e.logger.Warn("failed to push identity", "error", err, "telegram_id", u.TelegramID)
			continue
		}
		stats.Pushed++
	}

	e.metrics.pushed.Add(ctx, int64(stats.Pushed))
	span.SetAttributes(attribute.Int("reconcile.pushed", stats.Pushed))

	if stats.Pending > 0 {
		e.logger.Info("identities pushed", "pending", stats.Pending, "pushed", stats.Pushed, "failed", stats.Failed)
	}
	return stats, nil
}

func (e *Engine) pushIdentity(ctx context.Context, u satellite.ChatUser) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.PushTimeout)
	defer cancel()

	p, err := e.upstream.ProvisionUser(ctx, profile.ExternalIdentity{
		ExternalID: u.TelegramID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
	})
	if err != nil {
		return err
	}

	return e.cache.SetCanonicalID(ctx, u.TelegramID, p.UserID)
}

// PullProfiles copies tier and order stats from the storefront onto matching
// chat users. The satellite never computes those fields itself.
func (e *Engine) PullProfiles(ctx context.Context) (PullStats, error) {
	var stats PullStats

	ctx, cancel := context.WithTimeout(ctx, e.cfg.PullTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "reconcile.pull_profiles")
	defer span.End()

	for offset := 0; ; {
		page, err := e.upstream.ListUsers(ctx, offset, e.cfg.PageSize)
		if err != nil {
			e.metrics.fail(ctx, dutyProfiles)
			span.RecordError(err)
			return stats, fmt.Errorf("fetch users at offset %d: %w", offset, err)
		}

		for _, u := range page.Users {
			stats.Fetched++
			if u.ExternalID == nil {
				continue
			}
			ok, err := e.cache.ApplyProfile(ctx, satellite.ProfileUpdate{
				TelegramID:  *u.ExternalID,
				CanonicalID: u.ID,
				IsVIP:       u.IsVIP,
				TotalOrders: u.TotalOrders,
				TotalSpent:  u.TotalSpent,
			})
			if err != nil {
				stats.Failed++
				e.logger.Warn("failed to apply profile", "error", err, "user_id", u.ID)
				continue
			}
			if ok {
				stats.Applied++
			}
		}

		offset += len(page.Users)
		if len(page.Users) == 0 || offset >= page.Total {
			break
		}
	}

	if stats.Failed > 0 {
		e.metrics.fail(ctx, dutyProfiles)
	}
	return stats, nil
}

// RefreshProducts re-reads the given products from the storefront. Products
// the storefront no longer knows are left for the next catalog pull.
func (e *Engine) RefreshProducts(ctx context.Context, ids []int64) error {
	ctx, span := tracer.Start(ctx, "reconcile.refresh_products",
		trace.WithAttributes(attribute.Int("reconcile.products", len(ids))))
	defer span.End()

	var errs []error
	syncedAt := e.now()
	for _, id := range ids {
		p, err := e.upstream.GetProduct(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("fetch product %d: %w", id, err))
			continue
		}
		if p == nil {
			e.logger.Warn("refreshed product not found upstream", "product_id", id)
			continue
		}
		if err := e.cache.UpsertProduct(ctx, *p, syncedAt); err != nil {
			errs = append(errs, fmt.Errorf("cache product %d: %w", id, err))
			continue
		}
		e.metrics.synced.Add(ctx, 1)
	}

	if err := errors.Join(errs...); err != nil {
		e.metrics.fail(ctx, dutyRefresh)
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		return err
	}
	return nil
}
