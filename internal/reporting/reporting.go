// Package reporting implements the cross-tenant usage scanner. Scans prefer a
// single wildcard pass over the whole store and silently fall back to
// tenant-by-tenant enumeration when the backend lacks the capability; both
// paths yield the same logical result set so bucketing is backend-agnostic.
package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/liorcore/star-journey-sub000/internal/docstore"
	"github.com/liorcore/star-journey-sub000/internal/model"
)

// Period selects the bucket granularity for usage stats.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodHour  Period = "hour"
	PeriodMonth Period = "month"
)

// Scanner walks every tenant's groups and events read-only.
type Scanner struct {
	docs   docstore.Store
	logger *slog.Logger
}

func NewScanner(docs docstore.Store, logger *slog.Logger) *Scanner {
	return &Scanner{docs: docs, logger: logger.With("component", "reporting")}
}

// ScanAllUsers returns every tenant record in the store.
func (s *Scanner) ScanAllUsers(ctx context.Context) ([]model.Tenant, error) {
	docs, err := s.scanKind(ctx, docstore.KindTenant)
	if err != nil {
		return nil, err
	}

	tenants := make([]model.Tenant, 0, len(docs))
	for _, d := range docs {
		var t model.Tenant
		if err := json.Unmarshal(d.Data, &t); err != nil {
			return nil, fmt.Errorf("decode tenant %s: %w", d.Path, err)
		}
		tenants = append(tenants, t)
	}
	return tenants, nil
}

// ScanAllGroups returns every group across every tenant.
func (s *Scanner) ScanAllGroups(ctx context.Context) ([]model.Group, error) {
	docs, err := s.scanKind(ctx, docstore.KindGroup)
	if err != nil {
		return nil, err
	}

	groups := make([]model.Group, 0, len(docs))
	for _, d := range docs {
		var g model.Group
		if err := json.Unmarshal(d.Data, &g); err != nil {
			return nil, fmt.Errorf("decode group %s: %w", d.Path, err)
		}
		g.Normalize()
		groups = append(groups, g)
	}
	return groups, nil
}

// ScanAllEvents returns every event across every tenant.
func (s *Scanner) ScanAllEvents(ctx context.Context) ([]model.Event, error) {
	docs, err := s.scanKind(ctx, docstore.KindEvent)
	if err != nil {
		return nil, err
	}

	events := make([]model.Event, 0, len(docs))
	for _, d := range docs {
		var e model.Event
		if err := json.Unmarshal(d.Data, &e); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", d.Path, err)
		}
		e.Normalize()
		events = append(events, e)
	}
	return events, nil
}

// scanKind tries the one-pass wildcard scan first. When the backend reports it
// unsupported, it enumerates level by level instead; any other error
// propagates.
func (s *Scanner) scanKind(ctx context.Context, kind string) ([]docstore.Document, error) {
	docs, err := s.docs.ListKind(ctx, kind)
	if err == nil {
		return docs, nil
	}
	if !errors.Is(err, docstore.ErrScanUnsupported) {
		return nil, fmt.Errorf("scan %s: %w", kind, err)
	}

	s.logger.Debug("wildcard scan unsupported, enumerating per tenant", "kind", kind)
	return s.enumerateKind(ctx, kind)
}

func (s *Scanner) enumerateKind(ctx context.Context, kind string) ([]docstore.Document, error) {
	tenants, err := s.docs.ListChildren(ctx, "", docstore.KindTenant)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	if kind == docstore.KindTenant {
		return tenants, nil
	}

	var out []docstore.Document
	for _, t := range tenants {
		groups, err := s.docs.ListChildren(ctx, t.Path, docstore.KindGroup)
		if err != nil {
			return nil, fmt.Errorf("list groups for %s: %w", t.Path, err)
		}
		if kind == docstore.KindGroup {
			out = append(out, groups...)
			continue
		}

		for _, g := range groups {
			events, err := s.docs.ListChildren(ctx, g.Path, docstore.KindEvent)
			if err != nil {
				return nil, fmt.Errorf("list events for %s: %w", g.Path, err)
			}
			out = append(out, events...)
		}
	}
	return out, nil
}

// ComputeUsageStats buckets tenants by account-creation time and events by end
// date at the given granularity, counting distinct user ids per bucket. Only
// observed buckets are returned, sorted ascending by key. Group creation is
// not timestamped in the schema, so the group count stays zero per bucket.
func (s *Scanner) ComputeUsageStats(ctx context.Context, period Period) ([]model.UsageBucket, error) {
	tenants, err := s.ScanAllUsers(ctx)
	if err != nil {
		return nil, err
	}
	events, err := s.ScanAllEvents(ctx)
	if err != nil {
		return nil, err
	}

	users := make(map[string]map[string]struct{})
	eventCounts := make(map[string]int)

	for _, t := range tenants {
		key := bucketKey(t.CreatedAt, period)
		if users[key] == nil {
			users[key] = make(map[string]struct{})
		}
		users[key][t.ID] = struct{}{}
	}
	for _, e := range events {
		eventCounts[bucketKey(e.EndDate, period)]++
	}

	keys := make(map[string]struct{})
	for k := range users {
		keys[k] = struct{}{}
	}
	for k := range eventCounts {
		keys[k] = struct{}{}
	}

	buckets := make([]model.UsageBucket, 0, len(keys))
	for k := range keys {
		buckets = append(buckets, model.UsageBucket{
			Date:   k,
			Users:  len(users[k]),
			Events: eventCounts[k],
		})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Date < buckets[j].Date })
	return buckets, nil
}

func bucketKey(t time.Time, period Period) string {
	t = t.UTC()
	switch period {
	case PeriodHour:
		return t.Format("2006-01-02 15:00")
	case PeriodMonth:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}
