// Package analytics reduces raw scan events into dashboard summaries.
package analytics

import (
	"math"
	"sort"
	"strings"
	"time"

	"arview/pkg/domain"
)

const (
	// DailyWindow is the number of calendar days reported in DailyScans.
	DailyWindow = 30
	// RecentWindow bounds the merchant overview's recent scan count.
	RecentWindow = 7 * 24 * time.Hour
	// TopItemsLimit is the number of items reported in the overview.
	TopItemsLimit = 5

	unknownDevice = "unknown"
	dayLayout     = "2006-01-02"
)

// ItemSummary computes the per-item analytics shape for events at time now.
func ItemSummary(itemID string, events []domain.ScanEvent, now time.Time) domain.ItemAnalytics {
	return domain.ItemAnalytics{
		ItemID:          itemID,
		TotalScans:      len(events),
		UniqueScans:     UniqueSessions(events),
		AvgDuration:     AverageDuration(events),
		DeviceBreakdown: DeviceBreakdown(events),
		DailyScans:      DailyScans(events, now, DailyWindow),
	}
}

// UniqueSessions counts distinct session identifiers.
func UniqueSessions(events []domain.ScanEvent) int {
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		seen[e.SessionID] = struct{}{}
	}
	return len(seen)
}

// AverageDuration is the rounded mean of positive durations, or 0.
func AverageDuration(events []domain.ScanEvent) int {
	sum, n := 0, 0
	for _, e := range events {
		if e.Duration > 0 {
			sum += e.Duration
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return int(math.Floor(float64(sum)/float64(n) + 0.5))
}

// DeviceBreakdown counts events per device type.
func DeviceBreakdown(events []domain.ScanEvent) map[string]int {
	out := make(map[string]int)
	for _, e := range events {
		device := strings.TrimSpace(e.DeviceType)
		if device == "" {
			device = unknownDevice
		}
		out[device]++
	}
	return out
}

// DailyScans returns one entry per UTC calendar day for the last days days,
// ending today, in ascending order.
func DailyScans(events []domain.ScanEvent, now time.Time, days int) []domain.DailyCount {
	if days <= 0 {
		return []domain.DailyCount{}
	}
	today := truncateDay(now)
	start := today.AddDate(0, 0, -(days - 1))

	out := make([]domain.DailyCount, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format(dayLayout)
		out[i] = domain.DailyCount{Date: date}
		index[date] = i
	}
	for _, e := range events {
		if i, ok := index[e.CreatedAt.UTC().Format(dayLayout)]; ok {
			out[i].Count++
		}
	}
	return out
}

// CountSince counts events created at or after since.
func CountSince(events []domain.ScanEvent, since time.Time) int {
	n := 0
	for _, e := range events {
		if !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n
}

// Overview builds the merchant overview from items (in listing order) and the
// merchant's recent scan count.
func Overview(items []domain.ItemWithScans, recentScans int) domain.MerchantOverview {
	total := 0
	for _, it := range items {
		total += it.TotalScans
	}
	return domain.MerchantOverview{
		TotalItems:  len(items),
		TotalScans:  total,
		RecentScans: recentScans,
		TopItems:    TopItems(items, TopItemsLimit),
	}
}

// TopItems returns up to limit items by descending scan count. Ties keep
// listing order.
func TopItems(items []domain.ItemWithScans, limit int) []domain.TopItem {
	sorted := make([]domain.ItemWithScans, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TotalScans > sorted[j].TotalScans
	})
	if limit >= 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]domain.TopItem, 0, len(sorted))
	for _, it := range sorted {
		out = append(out, domain.TopItem{
			ID:    it.ID,
			Name:  it.Name,
			Slug:  it.Slug,
			Scans: it.TotalScans,
		})
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
