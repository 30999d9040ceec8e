package app

import (
	"context"
	"errors"
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func TestRecordScanNormalisesDevice(t *testing.T) {
	env := newTestEnv(t, nil)
	m := env.merchant(t, "m@example.com")
	it := env.item(t, m.ID, "Cup")

	ev, err := env.app.RecordScan(context.Background(), RecordScanInput{ItemID: it.ID, DeviceType: " iOS ", SessionID: "s1", UserAgent: "Mozilla/5.0"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if ev.ID == "" || ev.DeviceType != "ios" || ev.Duration != 0 || !ev.CreatedAt.Equal(env.now) {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestRecordScanErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	if _, err := env.app.RecordScan(ctx, RecordScanInput{ItemID: "missing", DeviceType: "ios", SessionID: "s"}); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	_, err := env.app.RecordScan(ctx, RecordScanInput{})
	fields := fieldErrors(t, err)
	if _, ok := fields["itemId"]; !ok {
		t.Fatalf("expected itemId error, got %v", fields)
	}
	if _, ok := fields["sessionId"]; !ok {
		t.Fatalf("expected sessionId error, got %v", fields)
	}
}

func TestUpdateScanDurationOverwrites(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	m := env.merchant(t, "m@example.com")
	it := env.item(t, m.ID, "Hat")
	ev, err := env.app.RecordScan(ctx, RecordScanInput{ItemID: it.ID, DeviceType: "android", SessionID: "s"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	for _, d := range []int{12, 45} {
		if _, err := env.app.UpdateScanDuration(ctx, UpdateDurationInput{ScanEventID: ev.ID, Duration: intPtr(d)}); err != nil {
			t.Fatalf("update %d: %v", d, err)
		}
	}
	events, _ := env.store.ListScanEventsByItem(it.ID)
	if len(events) != 1 || events[0].Duration != 45 {
		t.Fatalf("expected duration 45, got %+v", events)
	}

	if _, err := env.app.UpdateScanDuration(ctx, UpdateDurationInput{ScanEventID: "missing", Duration: intPtr(1)}); !errors.Is(err, ErrScanEventNotFound) {
		t.Fatalf("expected ErrScanEventNotFound, got %v", err)
	}
	_, err = env.app.UpdateScanDuration(ctx, UpdateDurationInput{ScanEventID: ev.ID, Duration: intPtr(-1)})
	if _, ok := fieldErrors(t, err)["duration"]; !ok {
		t.Fatalf("expected duration error")
	}
	_, err = env.app.UpdateScanDuration(ctx, UpdateDurationInput{ScanEventID: ev.ID})
	if _, ok := fieldErrors(t, err)["duration"]; !ok {
		t.Fatalf("expected missing duration error")
	}
}

func TestItemAnalyticsEmpty(t *testing.T) {
	env := newTestEnv(t, nil)
	m := env.merchant(t, "m@example.com")
	it := env.item(t, m.ID, "Empty")

	got, err := env.app.ItemAnalytics(context.Background(), it.ID, m.ID)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if got.TotalScans != 0 || got.UniqueScans != 0 || got.AvgDuration != 0 || len(got.DeviceBreakdown) != 0 {
		t.Fatalf("unexpected analytics: %+v", got)
	}
	if len(got.DailyScans) != 30 {
		t.Fatalf("daily scans = %d entries", len(got.DailyScans))
	}
	for _, d := range got.DailyScans {
		if d.Count != 0 {
			t.Fatalf("expected zero counts, got %+v", d)
		}
	}
	if got.DailyScans[29].Date != "2026-03-15" || got.DailyScans[0].Date != "2026-02-14" {
		t.Fatalf("unexpected window: %s..%s", got.DailyScans[0].Date, got.DailyScans[29].Date)
	}
}

func TestItemAnalyticsAggregates(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	m := env.merchant(t, "m@example.com")
	it := env.item(t, m.ID, "Bike")

	scans := []struct {
		device, session string
		duration        int
	}{
		{"iOS", "a", 0},
		{"android", "a", 10},
		{"", "b", 20},
		{"ios", "c", 0},
	}
	for _, s := range scans {
		ev, err := env.app.RecordScan(ctx, RecordScanInput{ItemID: it.ID, DeviceType: s.device, SessionID: s.session})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		if s.duration > 0 {
			if _, err := env.app.UpdateScanDuration(ctx, UpdateDurationInput{ScanEventID: ev.ID, Duration: intPtr(s.duration)}); err != nil {
				t.Fatalf("duration: %v", err)
			}
		}
	}

	got, err := env.app.ItemAnalytics(ctx, it.ID, m.ID)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if got.TotalScans != 4 || got.UniqueScans != 3 || got.AvgDuration != 15 {
		t.Fatalf("unexpected totals: %+v", got)
	}
	if got.DeviceBreakdown["ios"] != 2 || got.DeviceBreakdown["android"] != 1 || got.DeviceBreakdown["unknown"] != 1 {
		t.Fatalf("unexpected breakdown: %v", got.DeviceBreakdown)
	}
	if got.DailyScans[29].Count != 4 {
		t.Fatalf("expected today's bucket to hold 4, got %+v", got.DailyScans[29])
	}
}

func TestItemAnalyticsMasksForeignItems(t *testing.T) {
	env := newTestEnv(t, nil)
	m := env.merchant(t, "m@example.com")
	other := env.merchant(t, "o@example.com")
	it := env.item(t, m.ID, "Private")

	if _, err := env.app.ItemAnalytics(context.Background(), it.ID, other.ID); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestMerchantOverview(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	m := env.merchant(t, "m@example.com")

	counts := []int{10, 3, 7, 1, 9, 2}
	for i, n := range counts {
		env.advance(time.Second)
		it := env.item(t, m.ID, "Item "+string(rune('A'+i)))
		for j := 0; j < n; j++ {
			if _, err := env.app.RecordScan(ctx, RecordScanInput{ItemID: it.ID, DeviceType: "ios", SessionID: "s"}); err != nil {
				t.Fatalf("record: %v", err)
			}
		}
	}

	ov, err := env.app.MerchantOverview(ctx, m.ID)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if ov.TotalItems != 6 || ov.TotalScans != 32 || ov.RecentScans != 32 {
		t.Fatalf("unexpected overview: %+v", ov)
	}
	want := []int{10, 9, 7, 3, 2}
	if len(ov.TopItems) != len(want) {
		t.Fatalf("top items = %d", len(ov.TopItems))
	}
	for i, w := range want {
		if ov.TopItems[i].Scans != w {
			t.Fatalf("top[%d] = %d, want %d", i, ov.TopItems[i].Scans, w)
		}
	}
	if ov.TopItems[0].Slug != "item-a" {
		t.Fatalf("top item slug = %q", ov.TopItems[0].Slug)
	}

	env.advance(8 * 24 * time.Hour)
	ov, err = env.app.MerchantOverview(ctx, m.ID)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if ov.RecentScans != 0 || ov.TotalScans != 32 {
		t.Fatalf("expected old scans outside recent window: %+v", ov)
	}
}

func TestMerchantOverviewEmpty(t *testing.T) {
	env := newTestEnv(t, nil)
	m := env.merchant(t, "m@example.com")
	ov, err := env.app.MerchantOverview(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if ov.TotalItems != 0 || ov.TotalScans != 0 || ov.RecentScans != 0 || len(ov.TopItems) != 0 {
		t.Fatalf("unexpected overview: %+v", ov)
	}
}
