package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/igor322/account-service/internal/core/domain"
	"github.com/igor322/account-service/internal/core/ports"
	"github.com/igor322/account-service/internal/pkg/metrics"
)

const (
	defaultCacheTTL = 5 * time.Minute

	// tombstone marks an id written recently. It must outlive any store read
	// that started before the write, so a late fill finds the key taken.
	tombstone    = "-"
	tombstoneTTL = 30 * time.Second
)

// CachedAccountRepository is a read-through cache in front of another
// ports.AccountRepository. Only lookups by id are cached. Writes go to the
// underlying store first and then replace the entry with a tombstone. Fills use
// SET NX, so a read that raced a write cannot put the old row back.
//
// Cache failures never fail a request; they are logged and the call falls
// through to the store.
type CachedAccountRepository struct {
	next   ports.AccountRepository
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedAccountRepository wraps next with a Redis cache. A non-positive ttl
// selects the default of five minutes.
func NewCachedAccountRepository(next ports.AccountRepository, client *redis.Client, ttl time.Duration, logger zerolog.Logger) *CachedAccountRepository {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedAccountRepository{next: next, client: client, ttl: ttl, logger: logger}
}

// cachedAccount is the wire form kept in Redis. It carries the hash, which
// domain.Account hides from JSON.
type cachedAccount struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *CachedAccountRepository) key(id int64) string {
	return "account:" + strconv.FormatInt(id, 10)
}

func (c *CachedAccountRepository) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	switch {
	case err == nil && string(raw) == tombstone:
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	case err == nil:
		var ca cachedAccount
		if jerr := json.Unmarshal(raw, &ca); jerr == nil {
			metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
			return &domain.Account{ID: ca.ID, Name: ca.Name, Email: ca.Email, PasswordHash: ca.Password}, nil
		}
		c.logger.Warn().Int64("account_id", id).Msg("discarding undecodable cache entry")
		c.invalidate(ctx, id)
	case errors.Is(err, redis.Nil):
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	default:
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		c.logger.Warn().Err(err).Int64("account_id", id).Msg("cache lookup failed")
	}

	account, err := c.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, account)
	return account, nil
}

func (c *CachedAccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return c.next.FindByEmail(ctx, email)
}

func (c *CachedAccountRepository) FindAll(ctx context.Context) ([]*domain.Account, error) {
	return c.next.FindAll(ctx)
}

func (c *CachedAccountRepository) Insert(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	return c.next.Insert(ctx, account)
}

func (c *CachedAccountRepository) Update(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	updated, err := c.next.Update(ctx, account)
	c.markWritten(ctx, account.ID)
	return updated, err
}

func (c *CachedAccountRepository) Remove(ctx context.Context, id int64) (*domain.Account, error) {
	removed, err := c.next.Remove(ctx, id)
	c.markWritten(ctx, id)
	return removed, err
}

// Ping reports the health of the underlying store only.
func (c *CachedAccountRepository) Ping(ctx context.Context) error {
	return c.next.Ping(ctx)
}

func (c *CachedAccountRepository) store(ctx context.Context, a *domain.Account) {
	raw, err := json.Marshal(cachedAccount{ID: a.ID, Name: a.Name, Email: a.Email, Password: a.PasswordHash})
	if err != nil {
		return
	}
	if err := c.client.SetNX(ctx, c.key(a.ID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Int64("account_id", a.ID).Msg("cache store failed")
	}
}

func (c *CachedAccountRepository) markWritten(ctx context.Context, id int64) {
	if err := c.client.Set(ctx, c.key(id), tombstone, tombstoneTTL).Err(); err != nil {
		c.logger.Warn().Err(err).Int64("account_id", id).Msg("cache invalidation failed")
	}
}

func (c *CachedAccountRepository) invalidate(ctx context.Context, id int64) {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		c.logger.Warn().Err(err).Int64("account_id", id).Msg("cache invalidation failed")
	}
}
