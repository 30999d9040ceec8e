// Package app holds the API's business rules: accounts, items and their
// slugs, scan recording, analytics, QR codes and uploads.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"arview/pkg/queue"
	"arview/pkg/storage"
	"arview/pkg/store"
)

// JobDeleteObject removes one object key from storage.
const JobDeleteObject = "delete_object"

// CleanupQueue schedules background object deletions.
type CleanupQueue interface {
	Enqueue(ctx context.Context, kind, target string) (queue.Job, error)
}

// Config wires the application's collaborators.
type Config struct {
	Store    store.Store
	Sessions store.SessionStore
	Objects  storage.ObjectStore
	// Cleanup is optional; without it asset deletion runs inline.
	Cleanup CleanupQueue

	FrontendURL    string
	PublicAssetURL string
	PresignExpiry  time.Duration

	// Now is overridable for tests.
	Now func() time.Time
}

// App is the core application service.
type App struct {
	store    store.Store
	sessions store.SessionStore
	objects  storage.ObjectStore
	cleanup  CleanupQueue

	frontendURL    string
	publicAssetURL string
	presignExpiry  time.Duration
	now            func() time.Time
}

// New validates cfg and constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Objects == nil {
		return nil, errors.New("object store is required")
	}
	if strings.TrimSpace(cfg.PublicAssetURL) == "" {
		return nil, fmt.Errorf("public asset URL is required")
	}
	if cfg.FrontendURL == "" {
		cfg.FrontendURL = "http://localhost:3000"
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &App{
		store:          cfg.Store,
		sessions:       cfg.Sessions,
		objects:        cfg.Objects,
		cleanup:        cfg.Cleanup,
		frontendURL:    strings.TrimRight(cfg.FrontendURL, "/"),
		publicAssetURL: strings.TrimRight(cfg.PublicAssetURL, "/"),
		presignExpiry:  cfg.PresignExpiry,
		now:            cfg.Now,
	}, nil
}

// SessionTTL is how long issued session tokens stay valid.
func (a *App) SessionTTL() time.Duration {
	return a.sessions.TTL()
}

func (a *App) clock() time.Time {
	return a.now().UTC()
}
