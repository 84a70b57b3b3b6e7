package app

import (
	"context"
	"fmt"
	"time"

	"gauge/internal/metrics"
	"gauge/pkg/ai"
	"gauge/pkg/storage"
	"gauge/pkg/store"
	"gauge/services/stylist/internal/records"
)

const (
	DefaultHistoryLimit        = 100
	DefaultSessionActiveWindow = 24 * time.Hour
	DefaultMaxImageBytes       = 8 << 20
	defaultImageURLExpiry      = time.Hour
	// maxContextMessages bounds how many prior turns are sent to the model.
	maxContextMessages = 20
)

// Config holds runtime configuration for the stylist application.
type Config struct {
	Store     store.Store
	Objects   storage.ObjectStore
	Generator ai.ChatGenerator
	Metrics   metrics.Recorder

	FreeChecks          int
	FreeChatMessages    int
	HistoryLimit        int
	SessionActiveWindow time.Duration
	MaxImageBytes       int
	ImageURLExpiry      time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// App holds the stylist domain services for all installations.
type App struct {
	records   *records.Records
	store     store.Store
	objects   storage.ObjectStore
	generator ai.ChatGenerator
	metrics   metrics.Recorder

	freeChecks       int
	freeChatMessages int
	historyLimit     int
	activeWindow     time.Duration
	maxImageBytes    int
	imageURLExpiry   time.Duration
	now              func() time.Time
}

// New validates cfg and builds the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator required")
	}
	if cfg.FreeChecks < 0 || cfg.FreeChatMessages < 0 {
		return nil, fmt.Errorf("free quotas must be non-negative")
	}
	objects := cfg.Objects
	if objects == nil {
		objects = storage.NewMemoryStore("")
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	activeWindow := cfg.SessionActiveWindow
	if activeWindow <= 0 {
		activeWindow = DefaultSessionActiveWindow
	}
	maxImageBytes := cfg.MaxImageBytes
	if maxImageBytes <= 0 {
		maxImageBytes = DefaultMaxImageBytes
	}
	imageURLExpiry := cfg.ImageURLExpiry
	if imageURLExpiry <= 0 {
		imageURLExpiry = defaultImageURLExpiry
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &App{
		records:          records.New(cfg.Store),
		store:            cfg.Store,
		objects:          objects,
		generator:        cfg.Generator,
		metrics:          recorder,
		freeChecks:       cfg.FreeChecks,
		freeChatMessages: cfg.FreeChatMessages,
		historyLimit:     historyLimit,
		activeWindow:     activeWindow,
		maxImageBytes:    maxImageBytes,
		imageURLExpiry:   imageURLExpiry,
		now:              now,
	}, nil
}

// Ping checks the record backend when it supports health checks.
func (a *App) Ping(ctx context.Context) error {
	if p, ok := a.store.(store.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// ResetInstallation deletes every record of an installation and the photos
// of its closet items.
func (a *App) ResetInstallation(ctx context.Context, installationID string) error {
	items, err := a.records.LoadCloset(ctx, installationID)
	if err != nil {
		return fmt.Errorf("load closet: %w", err)
	}
	if err := a.records.ClearAll(ctx, installationID); err != nil {
		return err
	}
	for _, item := range items {
		a.deleteImage(ctx, installationID, item.ImageKey)
	}
	return nil
}

func (a *App) clock() time.Time {
	return a.now().UTC()
}
