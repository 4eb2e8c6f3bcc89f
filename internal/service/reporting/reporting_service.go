package reporting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/sitecost/internal/domain/models"
	"github.com/mamadbah2/sitecost/internal/repository"
	"github.com/mamadbah2/sitecost/internal/repository/cache"
	"github.com/mamadbah2/sitecost/internal/repository/mongodb"
	sheetsrepo "github.com/mamadbah2/sitecost/internal/repository/sheets"
	"github.com/mamadbah2/sitecost/pkg/clients/notify"
)

const (
	dateLayout       = "2006-01-02"
	entriesSheetCell = "Entries!A1"
	topSupplierCount = 5
	snapshotLookback = 14
)

// Cache is the subset of the JSON cache used for the dashboard.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Dependencies are the optional backends of the reporting service. Nil members
// disable the matching feature.
type Dependencies struct {
	Cache     Cache
	CacheTTL  time.Duration
	Snapshots mongodb.Repository
	Sheets    sheetsrepo.Repository
	Notifier  notify.Client
	Location  *time.Location
}

// Service builds dashboards, exports and summaries over the ledger.
type Service struct {
	store     repository.Queries
	cache     Cache
	cacheTTL  time.Duration
	snapshots mongodb.Repository
	sheets    sheetsrepo.Repository
	notifier  notify.Client
	location  *time.Location
	now       func() time.Time
	logger    *zap.Logger
}

// NewService wires a new reporting service instance.
func NewService(store repository.Queries, deps Dependencies, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Cache == nil {
		deps.Cache = cache.Noop{}
	}
	if deps.CacheTTL <= 0 {
		deps.CacheTTL = 5 * time.Minute
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &Service{
		store:     store,
		cache:     deps.Cache,
		cacheTTL:  deps.CacheTTL,
		snapshots: deps.Snapshots,
		sheets:    deps.Sheets,
		notifier:  deps.Notifier,
		location:  deps.Location,
		now:       time.Now,
		logger:    logger,
	}
}

// Dashboard returns the ledger aggregates, served from cache when possible. Cache
// failures degrade to a direct computation.
func (s *Service) Dashboard(ctx context.Context) (models.Dashboard, error) {
	var cached models.Dashboard
	hit, err := s.cache.GetJSON(ctx, cache.DashboardKey, &cached)
	if err != nil {
		s.logger.Warn("dashboard cache read failed", zap.Error(err))
	}
	if hit {
		return cached, nil
	}

	dashboard, err := s.store.Dashboard(ctx)
	if err != nil {
		return models.Dashboard{}, err
	}
	if err := s.cache.SetJSON(ctx, cache.DashboardKey, dashboard, s.cacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.Error(err))
	}
	return dashboard, nil
}

// Invalidate drops the cached dashboard. It is registered as a post-commit listener.
func (s *Service) Invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, cache.DashboardKey); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

// Snapshot archives today's dashboard totals. It is a no-op without a snapshot store.
func (s *Service) Snapshot(ctx context.Context) (models.DashboardSnapshot, error) {
	if s.snapshots == nil {
		s.logger.Debug("snapshot skipped, no archive configured")
		return models.DashboardSnapshot{}, nil
	}

	dashboard, err := s.store.Dashboard(ctx)
	if err != nil {
		return models.DashboardSnapshot{}, fmt.Errorf("compute dashboard: %w", err)
	}

	now := s.now().In(s.location)
	snapshot := models.DashboardSnapshot{
		Date:           time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		TotalEntries:   dashboard.TotalEntries,
		TotalCost:      dashboard.TotalCost.StringFixed(models.MoneyPlaces),
		TotalTransfers: dashboard.TotalTransfers.StringFixed(models.MoneyPlaces),
		TotalSuppliers: dashboard.TotalSuppliers,
		TopSuppliers:   topSuppliers(dashboard.BySupplier, topSupplierCount),
		CreatedAt:      now.UTC(),
	}
	if err := s.snapshots.SaveSnapshot(ctx, snapshot); err != nil {
		return models.DashboardSnapshot{}, err
	}

	s.logger.Info("Dashboard snapshot saved", zap.String("date", snapshot.Date.Format(dateLayout)), zap.Int64("entries", snapshot.TotalEntries))
	return snapshot, nil
}

// ExportToSheet replaces the configured spreadsheet's entry sheet with every entry.
func (s *Service) ExportToSheet(ctx context.Context) (int, error) {
	if s.sheets == nil {
		s.logger.Debug("sheet export skipped, no spreadsheet configured")
		return 0, nil
	}

	entries, err := s.store.AllEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("load entries: %w", err)
	}

	rows := make([][]interface{}, 0, len(entries)+1)
	rows = append(rows, headerRow())
	for _, e := range entries {
		rows = append(rows, entryRow(e, textAmount))
	}
	if err := s.sheets.ReplaceRange(ctx, entriesSheetCell, rows); err != nil {
		return 0, fmt.Errorf("export entries: %w", err)
	}

	s.logger.Info("Entries exported to sheet", zap.Int("entries", len(entries)))
	return len(entries), nil
}

// WeeklySummary renders the text posted at the end of each week.
func (s *Service) WeeklySummary(ctx context.Context) (string, error) {
	now := s.now().In(s.location)
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -6)

	week, err := s.store.ListEntries(ctx, models.EntryFilter{
		DateFrom: models.NewDate(start.Year(), start.Month(), start.Day()),
		DateTo:   models.NewDate(end.Year(), end.Month(), end.Day()),
		PageSize: 1,
	})
	if err != nil {
		return "", fmt.Errorf("load week entries: %w", err)
	}
	dashboard, err := s.store.Dashboard(ctx)
	if err != nil {
		return "", fmt.Errorf("compute dashboard: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Ledger summary (%s-%s): ", start.Format(dateLayout), end.Format(dateLayout))
	if week.TotalCount == 0 {
		b.WriteString("no entries this week.")
	} else {
		fmt.Fprintf(&b, "%d entries totalling %s.", week.TotalCount, week.TotalCost.StringFixed(models.MoneyPlaces))
	}
	fmt.Fprintf(&b, " Overall cost %s, transfers %s across %d suppliers.",
		dashboard.TotalCost.StringFixed(models.MoneyPlaces),
		dashboard.TotalTransfers.StringFixed(models.MoneyPlaces),
		dashboard.TotalSuppliers)

	if baseline, ok := s.baseline(ctx, start); ok {
		if prior, err := decimal.NewFromString(baseline.TotalCost); err == nil {
			delta := dashboard.TotalCost.Sub(prior)
			sign := ""
			if delta.Sign() >= 0 {
				sign = "+"
			}
			fmt.Fprintf(&b, " Change since %s: %s%s.", baseline.Date.Format(dateLayout), sign, delta.StringFixed(models.MoneyPlaces))
		}
	}

	if top := topSuppliers(dashboard.BySupplier, 3); len(top) > 0 {
		fmt.Fprintf(&b, " Top suppliers: %s.", strings.Join(top, ", "))
	}
	return b.String(), nil
}

// SendWeeklySummary posts WeeklySummary to the notifier when one is configured.
func (s *Service) SendWeeklySummary(ctx context.Context) error {
	if s.notifier == nil {
		s.logger.Debug("weekly summary skipped, no webhook configured")
		return nil
	}
	text, err := s.WeeklySummary(ctx)
	if err != nil {
		return err
	}
	if err := s.notifier.Send(ctx, text); err != nil {
		return fmt.Errorf("send weekly summary: %w", err)
	}
	s.logger.Info("Weekly summary sent")
	return nil
}

// baseline finds the newest archived snapshot taken on or before day.
func (s *Service) baseline(ctx context.Context, day time.Time) (models.DashboardSnapshot, bool) {
	if s.snapshots == nil {
		return models.DashboardSnapshot{}, false
	}
	recent, err := s.snapshots.RecentSnapshots(ctx, snapshotLookback)
	if err != nil {
		s.logger.Warn("load snapshots for summary failed", zap.Error(err))
		return models.DashboardSnapshot{}, false
	}
	for _, snap := range recent {
		if !snap.Date.After(day) {
			return snap, true
		}
	}
	return models.DashboardSnapshot{}, false
}

func topSuppliers(bySupplier []models.Breakdown, limit int) []string {
	out := make([]string, 0, limit)
	for _, b := range bySupplier {
		if len(out) == limit {
			break
		}
		out = append(out, fmt.Sprintf("%s (%s)", b.Label, b.Total.StringFixed(models.MoneyPlaces)))
	}
	return out
}
