package store

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/npezzotti/go-cliproom/internal/clock"
	"github.com/npezzotti/go-cliproom/internal/idgen"
	"github.com/npezzotti/go-cliproom/internal/stats"
	"github.com/npezzotti/go-cliproom/internal/types"
	"github.com/sirupsen/logrus"
)

const DefaultTTL = time.Hour

const (
	metricRoomsActive  = "rooms_active"
	metricRoomsCreated = "rooms_created"
	metricRoomsExpired = "rooms_expired"
	metricItemsAdded   = "items_added"
	metricChatMessages = "chat_messages"
)

// Notifier receives an event after every successful change to a room.
type Notifier interface {
	Notify(ev types.RoomEvent)
}

type Option func(*Store)

func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

func WithIdGenerator(g *idgen.Generator) Option {
	return func(s *Store) { s.ids = g }
}

func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// Store owns every live room, keyed by its uppercase code. Lock order is
// always Store.mu before Room.mu.
type Store struct {
	log      logrus.FieldLogger
	stats    stats.StatsProvider
	clock    clock.Clock
	ids      *idgen.Generator
	notifier Notifier
	ttl      time.Duration

	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewStore(logger logrus.FieldLogger, su stats.StatsProvider, ttl time.Duration, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s := &Store{
		log:   logger,
		stats: su,
		clock: clock.Real(),
		ids:   idgen.New(),
		ttl:   ttl,
		rooms: make(map[string]*Room),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.stats.RegisterMetric(metricRoomsActive)
	for _, name := range []string{
		metricRoomsCreated,
		metricRoomsExpired,
		metricItemsAdded,
		metricChatMessages,
	} {
		s.stats.RegisterCounter(name)
	}

	return s
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *Store) now() time.Time {
	return s.clock.Now().UTC()
}

// Create allocates an empty room under code. A live room with the same
// code (case-insensitively) is a conflict; an expired one is replaced.
func (s *Store) Create(code string) (types.RoomState, error) {
	code = normalizeCode(code)
	if code == "" {
		return types.RoomState{}, required("room code")
	}

	now := s.now()

	var replaced bool
	s.mu.Lock()
	if existing, ok := s.rooms[code]; ok {
		if !existing.expired(now) {
			s.mu.Unlock()
			return types.RoomState{}, ErrAlreadyExists
		}
		replaced = s.evictLocked(code, existing)
	}

	room := newRoom(code, now, s.ttl)
	state := room.state()
	s.rooms[code] = room
	s.mu.Unlock()

	// the old room's expiry goes out before the new room's creation
	if replaced {
		s.notify(code, types.EventRoomExpired, "")
	}

	s.stats.Incr(metricRoomsCreated)
	s.stats.Incr(metricRoomsActive)
	s.log.WithFields(logrus.Fields{
		"room_code":  code,
		"expires_at": room.expiresAt.Format(time.RFC3339),
	}).Info("room created")
	s.notify(code, types.EventRoomCreated, "")

	return state, nil
}

// lookup resolves code to a live room, evicting it if it has expired.
func (s *Store) lookup(code string) (*Room, bool) {
	code = normalizeCode(code)

	s.mu.RLock()
	room, ok := s.rooms[code]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if room.expired(s.now()) {
		s.evict(code, room)
		return nil, false
	}

	return room, true
}

// Get returns a consistent copy of the room's current state.
func (s *Store) Get(code string) (types.RoomState, error) {
	var state types.RoomState
	err := s.read(code, func(r *Room) {
		state = r.state()
	})
	return state, err
}

// Delete removes the room unconditionally.
func (s *Store) Delete(code string) {
	code = normalizeCode(code)

	var expired bool
	s.mu.Lock()
	if room, ok := s.rooms[code]; ok {
		expired = s.evictLocked(code, room)
	}
	s.mu.Unlock()

	if expired {
		s.notify(code, types.EventRoomExpired, "")
	}
}

// Len reports how many rooms are held in memory, including expired rooms
// that have not been reclaimed yet.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Sweep deletes every expired room and returns how many were removed. A
// room that fails to evict is logged and skipped.
func (s *Store) Sweep() int {
	now := s.now()

	var reclaimed []string
	s.mu.Lock()
	for code, room := range s.rooms {
		if s.sweepRoom(code, room, now) {
			reclaimed = append(reclaimed, code)
		}
	}
	s.mu.Unlock()

	for _, code := range reclaimed {
		s.notify(code, types.EventRoomExpired, "")
	}

	return len(reclaimed)
}

// sweepRoom requires s.mu to be held.
func (s *Store) sweepRoom(code string, room *Room, now time.Time) (reclaimed bool) {
	defer func() {
		if err := recover(); err != nil {
			s.log.WithFields(logrus.Fields{
				"room_code": code,
				"panic":     fmt.Sprint(err),
			}).Error("room eviction failed")
			reclaimed = false
		}
	}()

	if !room.expired(now) {
		return false
	}
	s.evictLocked(code, room)
	return true
}

// evict removes room from the map only if code still points at it, so a
// room recreated under the same code is left alone.
func (s *Store) evict(code string, room *Room) {
	var expired bool
	s.mu.Lock()
	if current, ok := s.rooms[code]; ok && current == room {
		expired = s.evictLocked(code, room)
	}
	s.mu.Unlock()

	if expired {
		s.notify(code, types.EventRoomExpired, "")
	}
}

// evictLocked requires s.mu to be held. It reports whether the room had
// expired; the caller sends the expiry event once s.mu is released.
func (s *Store) evictLocked(code string, room *Room) bool {
	delete(s.rooms, code)
	room.markEvicted()

	s.stats.Decr(metricRoomsActive)
	if room.expired(s.now()) {
		s.stats.Incr(metricRoomsExpired)
		s.log.WithField("room_code", code).Debug("room expired")
		return true
	}

	s.log.WithField("room_code", code).Info("room deleted")
	return false
}

// read runs fn under the room's read lock.
func (s *Store) read(code string, fn func(r *Room)) error {
	room, ok := s.lookup(code)
	if !ok {
		return ErrRoomNotFound
	}

	room.mu.RLock()
	if !room.live(s.now()) {
		room.mu.RUnlock()
		s.evict(room.code, room)
		return ErrRoomNotFound
	}
	fn(room)
	room.mu.RUnlock()

	return nil
}

// mutate resolves code and applies fn to the room.
func (s *Store) mutate(code string, fn func(r *Room, now time.Time) error) error {
	room, ok := s.lookup(code)
	if !ok {
		return ErrRoomNotFound
	}

	return s.mutateRoom(room, fn)
}

// mutateRoom runs fn under the room's write lock. The room may have been
// evicted or may have expired since it was looked up; either way fn is
// not run. When fn succeeds the room's last activity is bumped as the
// final step.
func (s *Store) mutateRoom(room *Room, fn func(r *Room, now time.Time) error) error {
	room.mu.Lock()
	now := s.now()
	if !room.live(now) {
		room.mu.Unlock()
		s.evict(room.code, room)
		return ErrRoomNotFound
	}

	if err := fn(room, now); err != nil {
		room.mu.Unlock()
		return err
	}
	room.lastActivity = now
	room.mu.Unlock()

	return nil
}

func (s *Store) notify(code string, kind types.EventKind, subjectId string) {
	if s.notifier == nil {
		return
	}

	s.notifier.Notify(types.RoomEvent{
		RoomCode:  code,
		Kind:      kind,
		SubjectId: subjectId,
		Timestamp: s.now(),
	})
}
