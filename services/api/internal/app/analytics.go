package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"arview/pkg/analytics"
	"arview/pkg/domain"
)

type RecordScanInput struct {
	ItemID     string `json:"itemId"`
	DeviceType string `json:"deviceType"`
	SessionID  string `json:"sessionId"`
	UserAgent  string `json:"userAgent,omitempty"`
}

func (in RecordScanInput) Validate() ValidationResult {
	var r ValidationResult
	r.required("itemId", in.ItemID)
	r.length("deviceType", in.DeviceType, 0, 50)
	if r.required("sessionId", in.SessionID) {
		r.length("sessionId", in.SessionID, 1, 100)
	}
	r.length("userAgent", in.UserAgent, 0, 500)
	return r
}

type UpdateDurationInput struct {
	ScanEventID string `json:"scanEventId"`
	Duration    *int   `json:"duration"`
}

func (in UpdateDurationInput) Validate() ValidationResult {
	var r ValidationResult
	r.required("scanEventId", in.ScanEventID)
	switch {
	case in.Duration == nil:
		r.Add("duration", "is required")
	case *in.Duration < 0:
		r.Add("duration", "must not be less than 0")
	}
	return r
}

// RecordScan stores one anonymous AR view with zero duration.
func (a *App) RecordScan(ctx context.Context, in RecordScanInput) (domain.ScanEvent, error) {
	if err := in.Validate().Err(); err != nil {
		return domain.ScanEvent{}, err
	}
	item, ok, err := a.store.GetItem(strings.TrimSpace(in.ItemID))
	if err != nil {
		return domain.ScanEvent{}, fmt.Errorf("get item: %w", err)
	}
	if !ok {
		return domain.ScanEvent{}, ErrItemNotFound
	}
	event := domain.ScanEvent{
		ID:         uuid.NewString(),
		ItemID:     item.ID,
		DeviceType: strings.ToLower(strings.TrimSpace(in.DeviceType)),
		SessionID:  in.SessionID,
		UserAgent:  in.UserAgent,
		CreatedAt:  a.clock(),
	}
	if err := a.store.CreateScanEvent(event); err != nil {
		return domain.ScanEvent{}, fmt.Errorf("create scan event: %w", err)
	}
	return event, nil
}

// UpdateScanDuration overwrites the stored duration. Viewers re-send the
// growing total, so the last write wins.
func (a *App) UpdateScanDuration(ctx context.Context, in UpdateDurationInput) (domain.ScanEvent, error) {
	if err := in.Validate().Err(); err != nil {
		return domain.ScanEvent{}, err
	}
	event, ok, err := a.store.SetScanDuration(strings.TrimSpace(in.ScanEventID), *in.Duration)
	if err != nil {
		return domain.ScanEvent{}, fmt.Errorf("update scan duration: %w", err)
	}
	if !ok {
		return domain.ScanEvent{}, ErrScanEventNotFound
	}
	return event, nil
}

// ItemAnalytics summarises an owned item's scans. Items of other merchants
// are reported as not found.
func (a *App) ItemAnalytics(ctx context.Context, itemID, merchantID string) (domain.ItemAnalytics, error) {
	item, ok, err := a.store.GetItem(strings.TrimSpace(itemID))
	if err != nil {
		return domain.ItemAnalytics{}, fmt.Errorf("get item: %w", err)
	}
	if !ok || item.MerchantID != merchantID {
		return domain.ItemAnalytics{}, ErrItemNotFound
	}
	events, err := a.store.ListScanEventsByItem(item.ID)
	if err != nil {
		return domain.ItemAnalytics{}, fmt.Errorf("list scan events: %w", err)
	}
	return analytics.ItemSummary(item.ID, events, a.clock()), nil
}

// MerchantOverview summarises every item the merchant owns.
func (a *App) MerchantOverview(ctx context.Context, merchantID string) (domain.MerchantOverview, error) {
	items, err := a.ListItems(ctx, merchantID)
	if err != nil {
		return domain.MerchantOverview{}, err
	}
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	recent, err := a.store.CountScansSince(ids, a.clock().Add(-analytics.RecentWindow))
	if err != nil {
		return domain.MerchantOverview{}, fmt.Errorf("count recent scans: %w", err)
	}
	return analytics.Overview(items, recent), nil
}
