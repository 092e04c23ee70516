// Package profile tracks the user profiles a session can see and their
// locked (quiet mode) state.
package profile

import (
	"fmt"
	"sort"
	"sync"

	"github.com/fruitsalade/docnav/pkg/models"
)

// Kind describes what a profile is used for.
type Kind string

const (
	KindPersonal Kind = "personal"
	KindWork     Kind = "work"
	KindPrivate  Kind = "private"
)

// Profile is a user profile known to the session.
type Profile struct {
	ID    models.ProfileID
	Kind  Kind
	Label string
	Quiet bool
}

// QuietModeChecker is the capability the loader needs from the profile layer.
type QuietModeChecker interface {
	IsQuietMode(id models.ProfileID) bool
}

// Manager is an in-process registry of profiles. It is safe for concurrent
// use: the loader reads quiet mode from its worker goroutine while the
// front end may toggle it.
type Manager struct {
	mu       sync.RWMutex
	self     models.ProfileID
	profiles map[models.ProfileID]*Profile
}

// NewManager creates a manager whose own profile is self.
func NewManager(self models.ProfileID) *Manager {
	m := &Manager{
		self:     self,
		profiles: make(map[models.ProfileID]*Profile),
	}
	m.profiles[self] = &Profile{ID: self, Kind: KindPersonal, Label: string(self)}
	return m
}

// Self returns the session's own profile.
func (m *Manager) Self() models.ProfileID {
	return m.self
}

// Add registers or replaces a profile.
func (m *Manager) Add(p Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p
	m.profiles[p.ID] = &cp
}

// Get returns a copy of the profile with the given id.
func (m *Manager) Get(id models.ProfileID) (Profile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return Profile{}, false
	}
	return *p, true
}

// List returns all profiles, own profile first, then by id.
func (m *Manager) List() []Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if (out[i].ID == m.self) != (out[j].ID == m.self) {
			return out[i].ID == m.self
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SetQuietMode turns quiet mode on or off for a profile.
// The own profile can never be put in quiet mode.
func (m *Manager) SetQuietMode(id models.ProfileID, quiet bool) error {
	if id == m.self && quiet {
		return fmt.Errorf("cannot enable quiet mode on own profile %s", id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return fmt.Errorf("unknown profile %s", id)
	}
	p.Quiet = quiet
	return nil
}

// IsQuietMode reports whether a profile is locked. Unknown profiles are not.
func (m *Manager) IsQuietMode(id models.ProfileID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	return ok && p.Quiet
}
