// Package settings serves per-account accounting defaults.
package settings

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/invoicedesk/internal/invoice"
	"github.com/odyssey-erp/invoicedesk/internal/platform/cache"
)

// DefaultTaxRate applies to accounts without a settings row.
var DefaultTaxRate = decimal.NewFromInt(5)

// ErrInvalidRate is returned for rates outside 0..100.
var ErrInvalidRate = errors.New("default tax rate must be between 0 and 100")

// Repository is the settings storage.
type Repository interface {
	Get(ctx context.Context, accountID int64) (invoice.Settings, error)
	Upsert(ctx context.Context, s invoice.Settings) error
}

// Service caches settings in Redis and collapses concurrent loads.
type Service struct {
	repo   Repository
	cache  *cache.Versioned
	group  singleflight.Group
	logger *slog.Logger
}

func NewService(repo Repository, c *cache.Versioned, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: c, logger: logger}
}

// Settings returns the account settings, falling back to DefaultTaxRate.
func (s *Service) Settings(ctx context.Context, accountID int64) (invoice.Settings, error) {
	id := strconv.FormatInt(accountID, 10)
	v, err, _ := s.group.Do(id, func() (interface{}, error) {
		key, err := s.cache.Key(ctx, "account", id)
		if err != nil {
			return nil, err
		}
		var out invoice.Settings
		err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
			return s.load(ctx, accountID)
		})
		return out, err
	})
	if err != nil {
		return invoice.Settings{}, err
	}
	return v.(invoice.Settings), nil
}

func (s *Service) load(ctx context.Context, accountID int64) (invoice.Settings, error) {
	got, err := s.repo.Get(ctx, accountID)
	if errors.Is(err, ErrSettingsNotFound) {
		s.logger.Debug("settings default applied", slog.Int64("account_id", accountID))
		return invoice.Settings{AccountID: accountID, DefaultTaxRate: DefaultTaxRate}, nil
	}
	return got, err
}

// Update stores new settings and invalidates the cache.
func (s *Service) Update(ctx context.Context, in invoice.Settings) error {
	if in.DefaultTaxRate.IsNegative() || in.DefaultTaxRate.GreaterThan(decimal.NewFromInt(100)) {
		return ErrInvalidRate
	}
	if err := s.repo.Upsert(ctx, in); err != nil {
		return err
	}
	return s.cache.Bump(ctx)
}
