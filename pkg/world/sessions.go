package world

import (
	"sort"
	"sync"
	"time"

	"github.com/crystal-mush/gomuck/pkg/events"
	"github.com/crystal-mush/gomuck/pkg/gamedb"
)

// Session is one connection of a player. The network layer that owns the
// socket lives elsewhere; the world only tracks identity and idle time.
type Session struct {
	ID       int
	Player   gamedb.DBRef
	ConnTime time.Time
	LastCmd  time.Time
}

// Sessions tracks open sessions by ID and by player.
type Sessions struct {
	mu       sync.RWMutex
	byID     map[int]*Session
	byPlayer map[gamedb.DBRef][]*Session
	nextID   int
	bus      *events.Bus
}

// NewSessions returns an empty table that announces connects and
// disconnects on bus.
func NewSessions(bus *events.Bus) *Sessions {
	return &Sessions{
		byID:     make(map[int]*Session),
		byPlayer: make(map[gamedb.DBRef][]*Session),
		nextID:   1,
		bus:      bus,
	}
}

// Connect opens a session for player.
func (s *Sessions) Connect(player gamedb.DBRef) *Session {
	now := time.Now()
	s.mu.Lock()
	sess := &Session{ID: s.nextID, Player: player, ConnTime: now, LastCmd: now}
	s.nextID++
	s.byID[sess.ID] = sess
	s.byPlayer[player] = append(s.byPlayer[player], sess)
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.EmitToPlayer(player, events.Event{Type: events.EvConnect, Source: player, Room: gamedb.Nothing})
	}
	return sess
}

// Disconnect closes a session; unknown IDs are ignored.
func (s *Sessions) Disconnect(id int) {
	s.mu.Lock()
	sess, ok := s.byID[id]
	if ok {
		delete(s.byID, id)
		list := s.byPlayer[sess.Player]
		for i, x := range list {
			if x.ID == id {
				s.byPlayer[sess.Player] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(s.byPlayer[sess.Player]) == 0 {
			delete(s.byPlayer, sess.Player)
		}
	}
	s.mu.Unlock()

	if ok && s.bus != nil {
		s.bus.EmitToPlayer(sess.Player, events.Event{Type: events.EvDisconnect, Source: sess.Player, Room: gamedb.Nothing})
	}
}

// Touch records activity on a session.
func (s *Sessions) Touch(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byID[id]; ok {
		sess.LastCmd = time.Now()
	}
}

// SetIdle backdates a session's last activity. Used by tools and tests.
func (s *Sessions) SetIdle(id int, idle time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byID[id]; ok {
		sess.LastCmd = time.Now().Add(-idle)
	}
}

// Get returns a copy of one session.
func (s *Sessions) Get(id int) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byID[id]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// ByPlayer returns copies of player's sessions ordered by ID.
func (s *Sessions) ByPlayer(player gamedb.DBRef) []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Session, 0, len(s.byPlayer[player]))
	for _, sess := range s.byPlayer[player] {
		out = append(out, *sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count is the number of open sessions.
func (s *Sessions) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
