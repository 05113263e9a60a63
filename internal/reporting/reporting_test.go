package reporting

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/liorcore/star-journey-sub000/internal/docstore"
	"github.com/liorcore/star-journey-sub000/internal/model"
)

func setupScanner(t *testing.T) (*Scanner, *docstore.SQLiteStore) {
	t.Helper()
	docs, err := docstore.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open docstore: %v", err)
	}
	t.Cleanup(func() { docs.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewScanner(docs, logger), docs
}

// seedTenants writes n tenants with groupsPer groups and eventsPer events per
// group, all created/ending at base.
func seedTenants(t *testing.T, docs docstore.Store, n, groupsPer, eventsPer int, base time.Time) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		tenantID := fmt.Sprintf("user-%d", i)
		tenant := model.Tenant{ID: tenantID, CreatedAt: base}
		if err := docs.Set(ctx, docstore.TenantPath(tenantID), tenant, false); err != nil {
			t.Fatalf("seed tenant: %v", err)
		}
		for j := 0; j < groupsPer; j++ {
			groupID := fmt.Sprintf("group-%d-%d", i, j)
			g := model.Group{ID: groupID, Name: "Group", OwnerID: tenantID}
			if err := docs.Set(ctx, docstore.GroupPath(tenantID, groupID), g, false); err != nil {
				t.Fatalf("seed group: %v", err)
			}
			for k := 0; k < eventsPer; k++ {
				eventID := fmt.Sprintf("event-%d-%d-%d", i, j, k)
				e := model.Event{ID: eventID, Name: "Event", OwnerID: tenantID, EndDate: base}
				if err := docs.Set(ctx, docstore.EventPath(tenantID, groupID, eventID), e, false); err != nil {
					t.Fatalf("seed event: %v", err)
				}
			}
		}
	}
}

func TestScanAllEventsWildcard(t *testing.T) {
	s, docs := setupScanner(t)
	seedTenants(t, docs, 3, 2, 2, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	events, err := s.ScanAllEvents(context.Background())
	if err != nil {
		t.Fatalf("scan events: %v", err)
	}
	if len(events) != 12 {
		t.Errorf("events = %d, want 12", len(events))
	}
}

func TestScanFallsBackToEnumeration(t *testing.T) {
	s, docs := setupScanner(t)
	seedTenants(t, docs, 3, 2, 2, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	wildcard, err := s.ScanAllEvents(ctx)
	if err != nil {
		t.Fatalf("wildcard scan: %v", err)
	}

	docs.SetWildcardScans(false)
	enumerated, err := s.ScanAllEvents(ctx)
	if err != nil {
		t.Fatalf("enumerated scan: %v", err)
	}

	if len(enumerated) != len(wildcard) {
		t.Errorf("enumerated = %d events, wildcard = %d; paths must converge", len(enumerated), len(wildcard))
	}

	groups, err := s.ScanAllGroups(ctx)
	if err != nil {
		t.Fatalf("enumerated group scan: %v", err)
	}
	if len(groups) != 6 {
		t.Errorf("groups = %d, want 6", len(groups))
	}

	users, err := s.ScanAllUsers(ctx)
	if err != nil {
		t.Fatalf("enumerated user scan: %v", err)
	}
	if len(users) != 3 {
		t.Errorf("users = %d, want 3", len(users))
	}
}

func TestComputeUsageStatsDay(t *testing.T) {
	s, docs := setupScanner(t)
	ctx := context.Background()

	day1 := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	day2 := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)

	docs.Set(ctx, docstore.TenantPath("u1"), model.Tenant{ID: "u1", CreatedAt: day1}, false)
	docs.Set(ctx, docstore.TenantPath("u2"), model.Tenant{ID: "u2", CreatedAt: day1}, false)
	docs.Set(ctx, docstore.TenantPath("u3"), model.Tenant{ID: "u3", CreatedAt: day2}, false)

	docs.Set(ctx, docstore.GroupPath("u1", "g1"), model.Group{ID: "g1", OwnerID: "u1"}, false)
	docs.Set(ctx, docstore.EventPath("u1", "g1", "e1"), model.Event{ID: "e1", EndDate: day2}, false)
	docs.Set(ctx, docstore.EventPath("u1", "g1", "e2"), model.Event{ID: "e2", EndDate: day2}, false)

	buckets, err := s.ComputeUsageStats(ctx, PeriodDay)
	if err != nil {
		t.Fatalf("compute usage stats: %v", err)
	}

	want := []model.UsageBucket{
		{Date: "2025-06-01", Users: 2, Groups: 0, Events: 0},
		{Date: "2025-06-02", Users: 1, Groups: 0, Events: 2},
	}
	if len(buckets) != len(want) {
		t.Fatalf("buckets = %d, want %d", len(buckets), len(want))
	}
	for i, b := range buckets {
		if b != want[i] {
			t.Errorf("bucket %d = %+v, want %+v", i, b, want[i])
		}
	}
}

func TestComputeUsageStatsDistinctUsers(t *testing.T) {
	s, docs := setupScanner(t)
	ctx := context.Background()

	ts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	// Writing the same tenant twice must not double-count it.
	docs.Set(ctx, docstore.TenantPath("u1"), model.Tenant{ID: "u1", CreatedAt: ts}, false)
	docs.Set(ctx, docstore.TenantPath("u1"), model.Tenant{ID: "u1", CreatedAt: ts}, false)

	buckets, err := s.ComputeUsageStats(ctx, PeriodDay)
	if err != nil {
		t.Fatalf("compute usage stats: %v", err)
	}
	if len(buckets) != 1 || buckets[0].Users != 1 {
		t.Fatalf("buckets = %+v, want one bucket with 1 user", buckets)
	}
}

func TestBucketKeyGranularity(t *testing.T) {
	ts := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		period Period
		want   string
	}{
		{PeriodDay, "2025-06-01"},
		{PeriodHour, "2025-06-01 09:00"},
		{PeriodMonth, "2025-06"},
	}
	for _, tt := range tests {
		if got := bucketKey(ts, tt.period); got != tt.want {
			t.Errorf("bucketKey(%s) = %q, want %q", tt.period, got, tt.want)
		}
	}
}

func TestComputeUsageStatsSorted(t *testing.T) {
	s, docs := setupScanner(t)
	ctx := context.Background()

	// Insert out of chronological order.
	docs.Set(ctx, docstore.TenantPath("u1"), model.Tenant{ID: "u1", CreatedAt: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)}, false)
	docs.Set(ctx, docstore.TenantPath("u2"), model.Tenant{ID: "u2", CreatedAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)}, false)
	docs.Set(ctx, docstore.TenantPath("u3"), model.Tenant{ID: "u3", CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}, false)

	buckets, err := s.ComputeUsageStats(ctx, PeriodMonth)
	if err != nil {
		t.Fatalf("compute usage stats: %v", err)
	}
	for i := 1; i < len(buckets); i++ {
		if buckets[i-1].Date >= buckets[i].Date {
			t.Fatalf("buckets not ascending: %q then %q", buckets[i-1].Date, buckets[i].Date)
		}
	}
}
