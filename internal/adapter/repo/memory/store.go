// Package memory is an in-process store for tests and local runs without a
// database. Every repository shares one Store.
package memory

import (
	"sync"
	"time"

	"autokami/internal/app/ports"
	"autokami/internal/domain/kami"
)

type Store struct {
	mu          sync.RWMutex
	txMu        sync.Mutex
	profiles    map[string]kami.AgentProfile
	settings    map[string]kami.CraftingSetting
	events      []kami.AuditEvent
	credentials map[string]ports.SealedCredential
	recipients  map[string]string
	now         func() time.Time
}

func NewStore() *Store {
	return &Store{
		profiles:    make(map[string]kami.AgentProfile),
		settings:    make(map[string]kami.CraftingSetting),
		credentials: make(map[string]ports.SealedCredential),
		recipients:  make(map[string]string),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) SeedProfile(profile kami.AgentProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.AgentID] = profile
}

func (s *Store) SeedSetting(setting kami.CraftingSetting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[setting.OperatorIdentity] = setting
}
