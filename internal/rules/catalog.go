package rules

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	redisclient "hospitality-server/internal/clients/redis"
	"hospitality-server/internal/observability"
	"hospitality-server/internal/store"

	"github.com/google/uuid"
)

// versionKey is the redis counter the admin surface bumps after editing
// rules. A changed value invalidates the in-memory catalog immediately;
// without redis the catalog falls back to TTL-only refresh.
const versionKey = "hospitality:rules:version"

// RuleSource is the store surface the catalog reads from
type RuleSource interface {
	ListActiveRules(ctx context.Context) ([]store.EngagementRule, error)
}

// LoadError records one rule excluded from matching at load time
type LoadError struct {
	RuleID uuid.UUID `json:"rule_id"`
	Slug   string    `json:"slug"`
	Reason string    `json:"reason"`
}

// Catalog holds the parsed active rule set, ordered by priority. Reads are
// served from memory; the set reloads when the refresh interval elapses or
// the redis version counter moves.
type Catalog struct {
	source          RuleSource
	redis           *redisclient.Client
	logger          *observability.Logger
	refreshInterval time.Duration

	mu         sync.RWMutex
	rules      []Rule
	loadErrors []LoadError
	version    string
	loadedAt   time.Time
}

// NewCatalog creates an empty catalog. The first ActiveRules call loads it.
func NewCatalog(source RuleSource, redis *redisclient.Client, logger *observability.Logger, refreshInterval time.Duration) *Catalog {
	return &Catalog{
		source:          source,
		redis:           redis,
		logger:          logger,
		refreshInterval: refreshInterval,
	}
}

// ActiveRules returns the current rule set in evaluation order, refreshing
// first if the cached copy is stale.
func (c *Catalog) ActiveRules(ctx context.Context) ([]Rule, error) {
	c.mu.RLock()
	fresh := !c.loadedAt.IsZero() && time.Since(c.loadedAt) < c.refreshInterval
	rules := c.rules
	cachedVersion := c.version
	c.mu.RUnlock()

	if fresh && c.currentVersion(ctx) == cachedVersion {
		return rules, nil
	}

	if err := c.Refresh(ctx); err != nil {
		// Serve the stale copy rather than failing the decision path,
		// but only if one was ever loaded.
		if rules != nil {
			c.logger.Warn(ctx, "rule catalog refresh failed, serving stale rules", err)
			return rules, nil
		}
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rules, nil
}

// LoadErrors returns the rules excluded during the last refresh
func (c *Catalog) LoadErrors() []LoadError {
	c.mu.RLock()
	defer c.mu.RUnlock()
	errs := make([]LoadError, len(c.loadErrors))
	copy(errs, c.loadErrors)
	return errs
}

// Refresh reloads and reparses the active rule set from the store.
// Rules with malformed documents are excluded and logged, never allowed to
// break evaluation of the rest.
func (c *Catalog) Refresh(ctx context.Context) error {
	raw, err := c.source.ListActiveRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rule catalog: %w", err)
	}

	rules := make([]Rule, 0, len(raw))
	var loadErrors []LoadError
	for _, entry := range raw {
		rule, err := Parse(entry)
		if err != nil {
			c.logger.Warn(ctx, "excluding malformed rule from catalog", err)
			loadErrors = append(loadErrors, LoadError{
				RuleID: entry.ID,
				Slug:   entry.Slug,
				Reason: err.Error(),
			})
			continue
		}
		rules = append(rules, rule)
	}

	version := c.currentVersion(ctx)

	c.mu.Lock()
	c.rules = rules
	c.loadErrors = loadErrors
	c.version = version
	c.loadedAt = time.Now()
	c.mu.Unlock()

	c.logger.Info(ctx, "rule catalog refreshed",
		observability.Field{Key: "active_rules", Value: len(rules)},
		observability.Field{Key: "excluded_rules", Value: len(loadErrors)},
	)
	return nil
}

// BumpVersion advances the shared version counter so every process reloads
// its catalog on the next decision. The admin surface calls this through
// the refresh endpoint after editing rules.
func (c *Catalog) BumpVersion(ctx context.Context) error {
	if !c.redis.IsEnabled() {
		// No shared counter to bump; reload this process directly.
		return c.Refresh(ctx)
	}
	if _, err := c.redis.Incr(ctx, versionKey); err != nil {
		return fmt.Errorf("failed to bump rule catalog version: %w", err)
	}
	return c.Refresh(ctx)
}

// currentVersion reads the shared counter, returning the cached value on
// any failure so a redis outage never stalls decisions.
func (c *Catalog) currentVersion(ctx context.Context) string {
	if !c.redis.IsEnabled() {
		return ""
	}
	version, err := c.redis.Get(ctx, versionKey)
	if err != nil {
		if !errors.Is(err, redisclient.ErrCacheMiss) {
			c.logger.Warn(ctx, "failed to read rule catalog version", err)
			c.mu.RLock()
			defer c.mu.RUnlock()
			return c.version
		}
		return ""
	}
	return version
}
