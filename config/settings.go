package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Settings is the typed view of the keys the tracker core consumes. The
// settings document may carry additional presentation keys (sounds, theme,
// volumes) owned by the UI; those are preserved verbatim across saves.
type Settings struct {
	ChannelName      string `json:"channelName"`
	BitThreshold     int    `json:"bitThreshold"`
	GiftSubThreshold int    `json:"giftSubThreshold"`
}

// Manager owns the config.json document. Snapshot re-reads the file on every
// call so a threshold update from chat is visible to the next computation
// with no staleness window. Saves are merge-writes: only the provided keys
// change, everything else in the document is kept.
type Manager struct {
	path string
	mu   sync.Mutex
}

// NewManager binds a Manager to the given settings file, creating the file
// with defaults when it does not exist yet.
func NewManager(path string) (*Manager, error) {
	m := &Manager{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := m.Save(defaultDocument()); err != nil {
			return nil, fmt.Errorf("initialize settings: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat settings: %w", err)
	}
	return m, nil
}

// defaultDocument holds the first-run settings document, including the
// presentation keys the dashboard expects to find.
func defaultDocument() map[string]any {
	return map[string]any{
		"channelName":        "",
		"bitThreshold":       DefaultBitThreshold,
		"giftSubThreshold":   DefaultGiftSubThreshold,
		"enableSounds":       true,
		"notificationVolume": 50,
		"theme":              "dark",
	}
}

// Snapshot returns the current typed settings, freshly read from disk.
// Missing or non-positive thresholds fall back to the defaults.
func (m *Manager) Snapshot() (Settings, error) {
	doc, err := m.load()
	if err != nil {
		return Settings{}, err
	}
	s := Settings{
		BitThreshold:     DefaultBitThreshold,
		GiftSubThreshold: DefaultGiftSubThreshold,
	}
	if v, ok := doc["channelName"].(string); ok {
		s.ChannelName = v
	}
	if n, ok := intValue(doc["bitThreshold"]); ok && n > 0 {
		s.BitThreshold = n
	}
	if n, ok := intValue(doc["giftSubThreshold"]); ok && n > 0 {
		s.GiftSubThreshold = n
	}
	return s, nil
}

// Document returns the full settings document, presentation keys included.
func (m *Manager) Document() (map[string]any, error) {
	return m.load()
}

// Save merges the provided keys onto the stored document and writes it back
// atomically (temp file + rename), so a crash mid-save never leaves a
// half-written document.
func (m *Manager) Save(partial map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.loadLocked()
	if err != nil {
		return err
	}
	for k, v := range partial {
		doc[k] = v
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// SetThresholds validates and persists the two moderator-mutable fields.
func (m *Manager) SetThresholds(bitThreshold, giftSubThreshold int) error {
	if bitThreshold <= 0 || giftSubThreshold <= 0 {
		return fmt.Errorf("thresholds must be positive: bits=%d subs=%d", bitThreshold, giftSubThreshold)
	}
	return m.Save(map[string]any{
		"bitThreshold":     bitThreshold,
		"giftSubThreshold": giftSubThreshold,
	})
}

// Path returns the settings file location.
func (m *Manager) Path() string { return m.path }

func (m *Manager) load() (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked()
}

func (m *Manager) loadLocked() (map[string]any, error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	doc := map[string]any{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse settings %s: %w", filepath.Base(m.path), err)
		}
	}
	return doc, nil
}

// intValue coerces the JSON number representations we can encounter.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}
