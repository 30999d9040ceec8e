package store

import (
	"context"
	"errors"
	"time"

	"arview/pkg/domain"
)

// ErrDuplicateKey is returned when a write violates a unique constraint
// (user email or item slug).
var ErrDuplicateKey = errors.New("duplicate key")

// Store defines persistence operations for users, items, and scan events.
type Store interface {
	// users
	CreateUser(domain.User) error
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	UserCount() (int, error)

	// items
	CreateItem(domain.Item) error
	UpdateItem(domain.Item) error
	GetItem(id string) (domain.Item, bool, error)
	GetItemBySlug(slug string) (domain.Item, bool, error)
	SlugExists(slug, excludeID string) (bool, error)
	ListItemsByMerchant(merchantID string) ([]domain.Item, error)
	DeleteItem(id string) error

	// scan events
	CreateScanEvent(domain.ScanEvent) error
	SetScanDuration(id string, duration int) (domain.ScanEvent, bool, error)
	ListScanEventsByItem(itemID string) ([]domain.ScanEvent, error)
	CountScansByItem(itemIDs []string) (map[string]int, error)
	CountScansSince(itemIDs []string, since time.Time) (int, error)
}

// SessionStore issues and validates session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(ctx context.Context, token string) (string, bool, error)
	DeleteSession(ctx context.Context, token string) error
	TTL() time.Duration
}
