// Package counterparty provides counterparty autocomplete for the editors.
package counterparty

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/invoicedesk/internal/invoice"
	"github.com/odyssey-erp/invoicedesk/internal/platform/cache"
)

const (
	minQueryLen  = 2
	defaultLimit = 10
)

// ErrQueryTooShort is returned for queries under two characters.
var ErrQueryTooShort = errors.New("counterparty query too short")

type Repository interface {
	Search(ctx context.Context, accountID int64, query string, limit int) ([]invoice.Counterparty, error)
}

// Service answers lookups from cache when it can.
type Service struct {
	repo  Repository
	cache *cache.Versioned
	group singleflight.Group
}

func NewService(repo Repository, c *cache.Versioned) *Service {
	return &Service{repo: repo, cache: c}
}

// Lookup returns counterparties matching query.
func (s *Service) Lookup(ctx context.Context, accountID int64, query string) ([]invoice.Counterparty, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if len([]rune(query)) < minQueryLen {
		return nil, ErrQueryTooShort
	}
	account := strconv.FormatInt(accountID, 10)
	ch := s.group.DoChan(account+":"+query, func() (interface{}, error) {
		key, err := s.cache.Key(ctx, account, query)
		if err != nil {
			return nil, err
		}
		var out []invoice.Counterparty
		err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
			found, err := s.repo.Search(ctx, accountID, query, defaultLimit)
			if found == nil {
				found = []invoice.Counterparty{}
			}
			return found, err
		})
		return out, err
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]invoice.Counterparty), nil
	}
}

// Invalidate drops cached lookups after the directory changes.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
