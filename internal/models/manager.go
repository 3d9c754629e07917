// Package models manages on-device model readiness per locale: supported-set
// validation, installed-set checks, and bounded install requests.
package models

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"sttbridge/internal/domain"
	"sttbridge/internal/ports"
)

// Manager fronts a provider's ModelCatalog with caching and install
// timeouts. The supported set is fetched once per process; installed state
// is cached after a successful install.
type Manager struct {
	catalog        ports.ModelCatalog
	installTimeout time.Duration
	overlay        []domain.LocaleDescriptor
	log            *slog.Logger

	mu        sync.Mutex
	supported []domain.LocaleDescriptor
	installed map[string]struct{}
}

func NewManager(catalog ports.ModelCatalog, installTimeout time.Duration, overlay []domain.LocaleDescriptor) *Manager {
	if installTimeout <= 0 {
		installTimeout = 120 * time.Second
	}
	return &Manager{
		catalog:        catalog,
		installTimeout: installTimeout,
		overlay:        overlay,
		log:            slog.Default(),
		installed:      make(map[string]struct{}),
	}
}

// EnsureReady validates the locale against the supported set and installs
// its model when missing. The install is bounded by the configured timeout
// so a hung download cannot block a listen call indefinitely.
func (m *Manager) EnsureReady(ctx context.Context, localeID string) error {
	supported, err := m.supportedSet(ctx)
	if err != nil {
		return fmt.Errorf("fetch supported locales: %w", err)
	}
	if _, ok := supported[localeID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrLocaleNotSupported, localeID)
	}

	m.mu.Lock()
	_, done := m.installed[localeID]
	m.mu.Unlock()
	if done {
		return nil
	}

	installedIDs, err := m.catalog.InstalledLocales(ctx)
	if err != nil {
		return fmt.Errorf("fetch installed locales: %w", err)
	}
	for _, id := range installedIDs {
		if id == localeID {
			m.markInstalled(localeID)
			return nil
		}
	}

	installCtx, cancel := context.WithTimeout(ctx, m.installTimeout)
	defer cancel()

	m.log.Info("installing transcription model", "locale", localeID)
	progress := func(percent int) {
		m.log.Debug("model install progress", "locale", localeID, "percent", percent)
	}
	if err := m.catalog.Install(installCtx, localeID, progress); err != nil {
		return fmt.Errorf("install model for %s: %w", localeID, err)
	}

	m.markInstalled(localeID)
	m.log.Info("transcription model installed", "locale", localeID)
	return nil
}

// Locales returns descriptors for every supported locale, independent of
// installation state, with any overlay entries merged in.
func (m *Manager) Locales(ctx context.Context) ([]domain.LocaleDescriptor, error) {
	if _, err := m.supportedSet(ctx); err != nil {
		return nil, fmt.Errorf("fetch supported locales: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.LocaleDescriptor, len(m.supported))
	copy(out, m.supported)
	return out, nil
}

func (m *Manager) supportedSet(ctx context.Context) (map[string]struct{}, error) {
	m.mu.Lock()
	cached := m.supported
	m.mu.Unlock()

	if cached == nil {
		fetched, err := m.catalog.SupportedLocales(ctx)
		if err != nil {
			return nil, err
		}
		cached = mergeOverlay(fetched, m.overlay)
		m.mu.Lock()
		m.supported = cached
		m.mu.Unlock()
	}

	set := make(map[string]struct{}, len(cached))
	for _, d := range cached {
		set[d.ID] = struct{}{}
	}
	return set, nil
}

func (m *Manager) markInstalled(localeID string) {
	m.mu.Lock()
	m.installed[localeID] = struct{}{}
	m.mu.Unlock()
}

func mergeOverlay(base, overlay []domain.LocaleDescriptor) []domain.LocaleDescriptor {
	if len(overlay) == 0 {
		return base
	}

	merged := make([]domain.LocaleDescriptor, 0, len(base)+len(overlay))
	index := make(map[string]int, len(base))
	for _, d := range base {
		index[d.ID] = len(merged)
		merged = append(merged, d)
	}
	for _, d := range overlay {
		if i, ok := index[d.ID]; ok {
			merged[i] = d
			continue
		}
		index[d.ID] = len(merged)
		merged = append(merged, d)
	}
	return merged
}

type overlayFile struct {
	Locales []domain.LocaleDescriptor `yaml:"locales"`
}

// LoadOverlay reads an optional yaml file extending or renaming the
// advertised locale catalog. An empty path yields no overlay.
func LoadOverlay(path string) ([]domain.LocaleDescriptor, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locales file: %w", err)
	}
	var parsed overlayFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse locales file: %w", err)
	}
	for _, d := range parsed.Locales {
		if d.ID == "" {
			return nil, fmt.Errorf("locales file entry missing id")
		}
	}
	return parsed.Locales, nil
}
