package domain

import "time"

type UserRole string

const (
	RoleUser  UserRole = "USER"
	RoleAdmin UserRole = "ADMIN"
)

type PlanType string

const (
	PlanFree PlanType = "FREE"
	PlanPro  PlanType = "PRO"
)

// AuthProvider records how an account was created.
type AuthProvider string

const (
	ProviderEmail  AuthProvider = "email"
	ProviderGoogle AuthProvider = "google"
	ProviderApple  AuthProvider = "apple"
)

type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	FullName     string       `json:"fullName"`
	Role         UserRole     `json:"role"`
	PlanType     PlanType     `json:"planType"`
	Avatar       string       `json:"avatar,omitempty"`
	Provider     AuthProvider `json:"provider"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Item is a merchant-owned product with its 3D assets.
type Item struct {
	ID           string    `json:"id"`
	MerchantID   string    `json:"merchantId"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Description  string    `json:"description,omitempty"`
	ModelURL     string    `json:"modelUrl"`
	USDZURL      string    `json:"usdzUrl,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ItemWithScans is an item annotated with its scan count.
type ItemWithScans struct {
	Item
	TotalScans int `json:"totalScans"`
}

// ItemWithStats is an item annotated with total and unique scan counts.
type ItemWithStats struct {
	Item
	TotalScans  int `json:"totalScans"`
	UniqueScans int `json:"uniqueScans"`
}

// ScanEvent is one AR view of an item.
type ScanEvent struct {
	ID         string    `json:"id"`
	ItemID     string    `json:"itemId"`
	DeviceType string    `json:"deviceType"`
	SessionID  string    `json:"sessionId"`
	UserAgent  string    `json:"userAgent,omitempty"`
	Duration   int       `json:"duration"`
	CreatedAt  time.Time `json:"createdAt"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type ItemAnalytics struct {
	ItemID          string         `json:"itemId"`
	TotalScans      int            `json:"totalScans"`
	UniqueScans     int            `json:"uniqueScans"`
	AvgDuration     int            `json:"avgDuration"`
	DeviceBreakdown map[string]int `json:"deviceBreakdown"`
	DailyScans      []DailyCount   `json:"dailyScans"`
}

type TopItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Scans int    `json:"scans"`
}

type MerchantOverview struct {
	TotalItems  int       `json:"totalItems"`
	TotalScans  int       `json:"totalScans"`
	RecentScans int       `json:"recentScans"`
	TopItems    []TopItem `json:"topItems"`
}
