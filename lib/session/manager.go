package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ValentinKolb/dShop/lib/platform"
	"github.com/ValentinKolb/dShop/lib/store"
	"github.com/ValentinKolb/dShop/lib/util"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("session")

const (
	KeySessionID       = "session_id"
	KeySessionIDBackup = "session_id_backup"

	idPrefix = "session_"
)

// Manager hands out the canonical session identity.
type Manager struct {
	mu      sync.Mutex
	page    store.IStore
	durable store.IStore
	clock   platform.Clock
	current string

	onChange func(id string)
}

// NewManager creates a manager on top of a page-lifetime and a durable store.
// Either store may be nil, in which case that tier is skipped.
func NewManager(page, durable store.IStore, clock platform.Clock) *Manager {
	if clock == nil {
		clock = platform.SystemClock{}
	}
	return &Manager{
		page:    page,
		durable: durable,
		clock:   clock,
	}
}

// --------------------------------------------------------------------------
// Public Methods
// --------------------------------------------------------------------------

// ID returns the canonical session identity, reconciling the storage tiers
// and creating a new identity if none exists.
//
// Thread-safety: This method is thread-safe.
func (m *Manager) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.read()
	if id == "" {
		id = m.current
	}
	if id == "" {
		id = m.generate()
		Logger.Infof("created new session %s", id)
	}

	m.setCurrent(id)
	m.writeAll(id)
	return id
}

// Refresh replaces the identity with a newly generated one.
func (m *Manager) Refresh() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.generate()
	m.setCurrent(id)
	m.writeAll(id)
	Logger.Infof("refreshed session to %s", id)
	return id
}

// Clear removes the identity from every location. The next ID call creates a new one.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setCurrent("")
	m.deleteAll()
	Logger.Infof("cleared session")
}

// Adopt makes id canonical, e.g. when the server assigned a session. Empty
// ids are ignored.
func (m *Manager) Adopt(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if id == m.current {
		return
	}
	Logger.Infof("adopting server session %s", id)
	m.setCurrent(id)
	m.writeAll(id)
}

// OnChange registers fn to be called whenever the canonical identity changes.
// fn receives the new identity, which is empty after Clear. It runs with the
// manager locked and must not call back into it.
func (m *Manager) OnChange(fn func(id string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Current returns the in-memory identity without touching storage. It is
// empty before the first ID call.
func (m *Manager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// setCurrent replaces the in-memory identity, the caller holds mu
func (m *Manager) setCurrent(id string) {
	if id == m.current {
		return
	}
	m.current = id
	if m.onChange != nil {
		m.onChange(id)
	}
}

// read returns the stored identity, preferring the durable tier
func (m *Manager) read() string {
	for _, loc := range []struct {
		s   store.IStore
		key string
	}{
		{m.durable, KeySessionID},
		{m.durable, KeySessionIDBackup},
		{m.page, KeySessionID},
	} {
		if loc.s == nil {
			continue
		}
		val, ok, err := loc.s.Get(loc.key)
		if err != nil {
			Logger.Warningf("reading %s failed, continuing in memory: %v", loc.key, err)
			continue
		}
		if ok && len(val) > 0 {
			return string(val)
		}
	}
	return ""
}

func (m *Manager) writeAll(id string) {
	if m.page != nil {
		m.set(m.page, KeySessionID, id)
	}
	if m.durable != nil {
		m.set(m.durable, KeySessionID, id)
		m.set(m.durable, KeySessionIDBackup, id)
	}
}

func (m *Manager) set(s store.IStore, key, id string) {
	cur, ok, err := s.Get(key)
	if err == nil && ok && string(cur) == id {
		return
	}
	if err := s.Set(key, []byte(id)); err != nil {
		Logger.Warningf("persisting %s failed, continuing in memory: %v", key, err)
	}
}

func (m *Manager) deleteAll() {
	for _, loc := range []struct {
		s   store.IStore
		key string
	}{
		{m.page, KeySessionID},
		{m.durable, KeySessionID},
		{m.durable, KeySessionIDBackup},
	} {
		if loc.s == nil {
			continue
		}
		if err := loc.s.Delete(loc.key); err != nil {
			Logger.Warningf("deleting %s failed: %v", loc.key, err)
		}
	}
}

// generate creates a new identity from the current time and random bits. It
// never fails: GenerateSeed falls back to the clock if uuid cannot read randomness.
func (m *Manager) generate() string {
	var suffix string
	if u, err := uuid.NewRandom(); err == nil {
		suffix = strings.ReplaceAll(u.String(), "-", "")[:16]
	} else {
		suffix = fmt.Sprintf("%016x", util.GenerateSeed())
	}
	return fmt.Sprintf("%s%d_%s", idPrefix, m.clock.Now().UnixMilli(), suffix)
}
