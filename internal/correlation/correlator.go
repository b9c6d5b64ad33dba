package correlation

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fawkes-platform/smart-alerting/internal/models"
	"github.com/fawkes-platform/smart-alerting/pkg/cache"
	"github.com/fawkes-platform/smart-alerting/pkg/logger"
)

const (
	groupKeyPrefix  = "alert_group:"
	alertKeyPrefix  = "alert:"
	recentGroupsKey = "alert_groups:recent"
)

// Correlator folds normalized alerts into time-windowed groups keyed by
// service, alertname and severity. Group state lives in the KV store with a
// TTL of twice the window, so closed groups age out on their own.
//
// Correlate is not safe for concurrent use; the processor is its only caller
// and runs it from a single goroutine.
type Correlator struct {
	kv     cache.KVStore
	logger logger.Logger

	window      time.Duration
	recentLimit int

	now func() time.Time
}

func New(kv cache.KVStore, log logger.Logger, window time.Duration, recentLimit int) *Correlator {
	return &Correlator{
		kv:          kv,
		logger:      log,
		window:      window,
		recentLimit: recentLimit,
		now:         time.Now,
	}
}

// WithClock overrides the time source. Tests only.
func (c *Correlator) WithClock(now func() time.Time) *Correlator {
	c.now = now
	return c
}

// GroupingKey derives the correlation key for an alert. Missing labels fall
// back to stable placeholders so the key is always well-formed.
func GroupingKey(a *models.Alert) string {
	service := a.Service()
	if service == "" {
		service = "unknown"
	}
	alertname := a.Alertname()
	if alertname == "" {
		alertname = "unknown"
	}
	return fmt.Sprintf("%s:%s:%s", service, alertname, a.SeverityLabel())
}

// GroupID derives the deterministic group id: the first 8 hex characters of
// MD5 over the grouping key. Stable across time, so a later burst of the same
// key reattaches to the same id.
func GroupID(groupingKey string) string {
	sum := md5.Sum([]byte(groupingKey))
	return hex.EncodeToString(sum[:])[:8]
}

// Correlate merges a batch of alerts into existing live groups or creates new
// ones, deduplicates by fingerprint, recomputes priority and persists every
// touched group. It returns the touched groups in first-appearance order.
func (c *Correlator) Correlate(ctx context.Context, alerts []models.Alert) ([]*models.AlertGroup, error) {
	now := c.now()

	// Bucket the batch by grouping key, preserving first-appearance order.
	byKey := make(map[string][]models.Alert)
	var order []string
	for i := range alerts {
		key := GroupingKey(&alerts[i])
		if _, ok := byKey[key]; !ok {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], alerts[i])
	}

	groups := make([]*models.AlertGroup, 0, len(order))
	for _, key := range order {
		group, err := c.mergeOrCreate(ctx, key, byKey[key], now)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}

	// Persist individual alerts so they stay addressable by id for
	// acknowledge/resolve while their group is live.
	for i := range alerts {
		if err := c.SaveAlert(ctx, &alerts[i]); err != nil {
			c.logger.Warn("Failed to persist alert", "alert_id", alerts[i].ID, "error", err)
		}
	}

	return groups, nil
}

func (c *Correlator) mergeOrCreate(ctx context.Context, key string, batch []models.Alert, now time.Time) (*models.AlertGroup, error) {
	existing, err := c.liveGroup(ctx, key, now)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		existing.Alerts = dedupeAlerts(append(existing.Alerts, batch...))
		existing.Count = len(existing.Alerts)
		existing.LastSeen = now
		existing.PriorityScore = PriorityScore(existing.Alerts)
		if err := c.SaveGroup(ctx, existing); err != nil {
			return nil, err
		}
		c.logger.Debug("Merged alerts into group",
			"group_id", existing.ID, "count", existing.Count, "priority", existing.PriorityScore)
		return existing, nil
	}

	group := &models.AlertGroup{
		ID:          GroupID(key),
		GroupingKey: key,
		Alerts:      dedupeAlerts(batch),
		FirstSeen:   now,
		LastSeen:    now,
	}
	group.Count = len(group.Alerts)
	group.PriorityScore = PriorityScore(group.Alerts)

	if err := c.SaveGroup(ctx, group); err != nil {
		return nil, err
	}
	if err := c.kv.LPush(ctx, recentGroupsKey, group.ID); err != nil {
		c.logger.Warn("Failed to record recent group", "group_id", group.ID, "error", err)
	} else if err := c.kv.LTrim(ctx, recentGroupsKey, 0, int64(c.recentLimit)-1); err != nil {
		c.logger.Warn("Failed to trim recent groups", "error", err)
	}

	c.logger.Info("Created alert group",
		"group_id", group.ID, "grouping_key", key, "count", group.Count, "priority", group.PriorityScore)
	return group, nil
}

// liveGroup returns the stored group for a key if it is still inside the
// correlation window, nil otherwise.
func (c *Correlator) liveGroup(ctx context.Context, key string, now time.Time) (*models.AlertGroup, error) {
	group, err := c.GetGroup(ctx, GroupID(key))
	if err == cache.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if now.Sub(group.LastSeen) >= c.window {
		return nil, nil
	}
	return group, nil
}

// GetGroup loads a group by id.
func (c *Correlator) GetGroup(ctx context.Context, id string) (*models.AlertGroup, error) {
	data, err := c.kv.Get(ctx, groupKeyPrefix+id)
	if err != nil {
		return nil, err
	}
	var group models.AlertGroup
	if err := json.Unmarshal(data, &group); err != nil {
		return nil, fmt.Errorf("decode group %s: %w", id, err)
	}
	return &group, nil
}

// SaveGroup persists a group with the standard store TTL. Called by the
// correlator itself and by the processor after suppression and routing
// annotate the group.
func (c *Correlator) SaveGroup(ctx context.Context, group *models.AlertGroup) error {
	if err := c.kv.SetEx(ctx, groupKeyPrefix+group.ID, group, 2*c.window); err != nil {
		return fmt.Errorf("persist group %s: %w", group.ID, err)
	}
	return nil
}

// RecentGroups returns up to limit of the most recently created groups,
// newest first. Ids whose groups already expired are skipped.
func (c *Correlator) RecentGroups(ctx context.Context, limit int) ([]*models.AlertGroup, error) {
	if limit < 1 {
		limit = 1
	}
	ids, err := c.kv.LRange(ctx, recentGroupsKey, 0, int64(limit)-1)
	if err != nil {
		return nil, err
	}
	groups := make([]*models.AlertGroup, 0, len(ids))
	for _, id := range ids {
		group, err := c.GetGroup(ctx, id)
		if err == cache.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// GetAlert loads a single alert by id.
func (c *Correlator) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	data, err := c.kv.Get(ctx, alertKeyPrefix+id)
	if err != nil {
		return nil, err
	}
	var alert models.Alert
	if err := json.Unmarshal(data, &alert); err != nil {
		return nil, fmt.Errorf("decode alert %s: %w", id, err)
	}
	return &alert, nil
}

// SaveAlert persists a single alert with the standard store TTL.
func (c *Correlator) SaveAlert(ctx context.Context, alert *models.Alert) error {
	return c.kv.SetEx(ctx, alertKeyPrefix+alert.ID, alert, 2*c.window)
}

// dedupeAlerts drops duplicate fingerprints, keeping the first occurrence and
// the original order.
func dedupeAlerts(alerts []models.Alert) []models.Alert {
	seen := make(map[string]struct{}, len(alerts))
	out := make([]models.Alert, 0, len(alerts))
	for i := range alerts {
		fp := alerts[i].EffectiveFingerprint()
		if _, ok := seen[fp]; ok {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, alerts[i])
	}
	return out
}
