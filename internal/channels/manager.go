// Package channels manages YouTube channel subscriptions: a YAML-backed
// subscription list, RSS feed polling for new uploads and handle-to-id
// resolution via yt-dlp.
package channels

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Channel is one subscription. The map key in channels.yaml is the channel
// id, so ID is not serialized into the value.
type Channel struct {
	ID          string    `yaml:"-" json:"id"`
	Name        string    `yaml:"name" json:"name"`
	Enabled     bool      `yaml:"enabled" json:"enabled"`
	LastChecked time.Time `yaml:"last_checked,omitempty" json:"last_checked,omitempty"`
}

type subscriptionsFile struct {
	Channels map[string]Channel `yaml:"channels"`
}

// Manager owns channels.yaml. All mutations rewrite the file under a lock.
type Manager struct {
	path string

	mu       sync.Mutex
	channels map[string]Channel
}

// NewManager loads the subscription file from dataPath/config/channels.yaml,
// starting empty when it does not exist yet.
func NewManager(dataPath string) (*Manager, error) {
	dir := filepath.Join(dataPath, "config")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	m := &Manager{
		path:     filepath.Join(dir, "channels.yaml"),
		channels: make(map[string]Channel),
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("read channels file: %w", err)
	}

	var file subscriptionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse channels file: %w", err)
	}
	if file.Channels != nil {
		m.channels = file.Channels
	}
	log.Info().Int("count", len(m.channels)).Msg("Loaded channel subscriptions")
	return m, nil
}

// save writes the file. Caller must hold the lock.
func (m *Manager) save() error {
	data, err := yaml.Marshal(subscriptionsFile{Channels: m.channels})
	if err != nil {
		return fmt.Errorf("marshal channels file: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		return fmt.Errorf("write channels file: %w", err)
	}
	return nil
}

// List returns all subscriptions sorted by channel id.
func (m *Manager) List() []Channel {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Channel, 0, len(m.channels))
	for id, ch := range m.channels {
		ch.ID = id
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Add subscribes a channel, enabled by default. Adding an existing id
// updates its name but keeps its state.
func (m *Manager) Add(id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, exists := m.channels[id]
	if !exists {
		ch = Channel{Enabled: true}
	}
	ch.Name = name
	m.channels[id] = ch
	return m.save()
}

// Remove unsubscribes a channel, reporting whether it existed.
func (m *Manager) Remove(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.channels[id]; !exists {
		return false, nil
	}
	delete(m.channels, id)
	return true, m.save()
}

// SetEnabled toggles feed polling for a channel.
func (m *Manager) SetEnabled(id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, exists := m.channels[id]
	if !exists {
		return nil
	}
	ch.Enabled = enabled
	m.channels[id] = ch
	return m.save()
}

// MarkChecked stamps the channel's last feed poll time.
func (m *Manager) MarkChecked(id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, exists := m.channels[id]
	if !exists {
		return nil
	}
	ch.LastChecked = at
	m.channels[id] = ch
	return m.save()
}

// Migrate rewrites subscriptions whose key is not a channel id (legacy
// handle-keyed entries) using resolve. Returns the ids that were rewritten.
func (m *Manager) Migrate(resolve func(input string) (id, name string, err error)) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var migrated []string
	for key, ch := range m.channels {
		if IsChannelID(key) {
			continue
		}
		id, name, err := resolve(key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to migrate channel entry")
			continue
		}
		delete(m.channels, key)
		if ch.Name == "" {
			ch.Name = name
		}
		m.channels[id] = ch
		migrated = append(migrated, id)
	}

	if len(migrated) == 0 {
		return nil, nil
	}
	return migrated, m.save()
}
