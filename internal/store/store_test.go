package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/npezzotti/go-cliproom/internal/clock"
	"github.com/npezzotti/go-cliproom/internal/stats"
	"github.com/npezzotti/go-cliproom/internal/testutil"
	"github.com/npezzotti/go-cliproom/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ev types.RoomEvent) {
	m.Called(ev)
}

// eventLog records the kinds of events it receives, in order.
type eventLog struct {
	mu    sync.Mutex
	kinds []types.EventKind
}

func (l *eventLog) Notify(ev types.RoomEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.kinds = append(l.kinds, ev.Kind)
}

func (l *eventLog) events() []types.EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]types.EventKind{}, l.kinds...)
}

func newMockStats() *stats.MockStatsUpdater {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Return()
	su.On("RegisterCounter", mock.Anything).Return()
	su.On("Incr", mock.Anything).Return().Maybe()
	su.On("Decr", mock.Anything).Return().Maybe()
	return su
}

// newTestStore creates a store with a one hour TTL driven by a fake clock.
func newTestStore(t *testing.T, opts ...Option) (*Store, *clock.FakeClock) {
	fc := clock.Fake(testStart)
	opts = append([]Option{WithClock(fc)}, opts...)
	s := NewStore(testutil.TestLogger(t), newMockStats(), time.Hour, opts...)
	return s, fc
}

func TestNewStore(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("RegisterMetric", metricRoomsActive).Return().Once()
	su.On("RegisterCounter", mock.Anything).Return().Times(4)

	s := NewStore(testutil.TestLogger(t), su, 0)
	assert.NotNil(t, s.rooms, "expected rooms map to be initialized")
	assert.Equal(t, DefaultTTL, s.ttl, "expected default TTL when none given")
	assert.NotNil(t, s.ids, "expected id generator to be set")
	assert.NotNil(t, s.clock, "expected clock to be set")
}

func TestStore_Create(t *testing.T) {
	t.Run("creates room with defaults", func(t *testing.T) {
		s, _ := newTestStore(t)

		state, err := s.Create("abc123")
		require.NoError(t, err)
		assert.Equal(t, "ABC123", state.Code, "expected code to be uppercased")
		assert.Equal(t, testStart, state.CreatedAt)
		assert.Equal(t, testStart.Add(time.Hour), state.ExpiresAt)
		assert.Equal(t, types.ThemeDark, state.Theme, "expected dark theme by default")
		assert.Empty(t, state.Items)
		assert.Empty(t, state.Folders)
		assert.Empty(t, state.ChatMessages)
		assert.Zero(t, state.ParticipantCount)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("rejects empty code", func(t *testing.T) {
		s, _ := newTestStore(t)

		_, err := s.Create("  ")
		assert.ErrorIs(t, err, ErrValidationFailed)
	})

	t.Run("collides case-insensitively with live room", func(t *testing.T) {
		s, _ := newTestStore(t)

		_, err := s.Create("ABC123")
		require.NoError(t, err)

		_, err = s.Create("abc123")
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("replaces expired room", func(t *testing.T) {
		s, fc := newTestStore(t)

		_, err := s.Create("ABC123")
		require.NoError(t, err)
		_, err = s.AddItem("ABC123", NewItem{Type: types.ItemText, Content: "old", UserId: "u1"})
		require.NoError(t, err)

		fc.Advance(time.Hour + time.Second)

		state, err := s.Create("abc123")
		require.NoError(t, err, "expected create to succeed once the previous room expired")
		assert.Empty(t, state.Items, "expected a fresh room")
		assert.Equal(t, 1, s.Len())
	})
}

func TestStore_Get(t *testing.T) {
	s, fc := newTestStore(t)

	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = s.Create("ABC123")
	require.NoError(t, err)

	state, err := s.Get("abc123")
	require.NoError(t, err, "expected case-insensitive lookup")
	assert.Equal(t, "ABC123", state.Code)

	// exactly at expiry the room is still live
	fc.Advance(time.Hour)
	_, err = s.Get("ABC123")
	assert.NoError(t, err, "expected room to be live at its expiry instant")

	fc.Advance(time.Millisecond)
	_, err = s.Get("ABC123")
	assert.ErrorIs(t, err, ErrRoomNotFound, "expected expired room to be absent")
	assert.Equal(t, 0, s.Len(), "expected lazy lookup to evict the expired room")
}

func TestStore_Delete(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Create("ABC123")
	require.NoError(t, err)

	s.Delete("abc123")
	_, err = s.Get("ABC123")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	// deleting a missing room is a no-op
	assert.NotPanics(t, func() { s.Delete("ABC123") })
}

func TestStore_Sweep(t *testing.T) {
	s, fc := newTestStore(t)

	_, err := s.Create("OLD001")
	require.NoError(t, err)
	_, err = s.Create("OLD002")
	require.NoError(t, err)

	fc.Advance(30 * time.Minute)
	_, err = s.Create("NEW001")
	require.NoError(t, err)

	fc.Advance(31 * time.Minute)
	assert.Equal(t, 2, s.Sweep(), "expected both old rooms to be reclaimed")
	assert.Equal(t, 1, s.Len())

	_, err = s.Get("NEW001")
	assert.NoError(t, err, "expected newer room to survive the sweep")
	assert.Equal(t, 0, s.Sweep(), "expected nothing left to reclaim")
}

func TestStore_Sweep_SkipsFailingRoom(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Return()
	su.On("RegisterCounter", mock.Anything).Return()
	su.On("Incr", mock.Anything).Return()
	su.On("Decr", metricRoomsActive).Run(func(mock.Arguments) {
		panic("gauge unavailable")
	}).Once()
	su.On("Decr", metricRoomsActive).Return()

	fc := clock.Fake(testStart)
	s := NewStore(testutil.TestLogger(t), su, time.Hour, WithClock(fc))

	for _, code := range []string{"OLD001", "OLD002", "OLD003"} {
		_, err := s.Create(code)
		require.NoError(t, err)
	}

	fc.Advance(2 * time.Hour)
	var reclaimed int
	require.NotPanics(t, func() { reclaimed = s.Sweep() })
	assert.Equal(t, 2, reclaimed, "expected the other rooms to be reclaimed")
	assert.Equal(t, 0, s.Len(), "expected every expired room to be removed")
}

func TestStore_ExpiryEventOrdering(t *testing.T) {
	t.Run("recreate after expiry", func(t *testing.T) {
		events := &eventLog{}
		s, fc := newTestStore(t, WithNotifier(events))

		_, err := s.Create("ABC123")
		require.NoError(t, err)
		fc.Advance(2 * time.Hour)
		_, err = s.Create("abc123")
		require.NoError(t, err)

		assert.Equal(t, []types.EventKind{
			types.EventRoomCreated,
			types.EventRoomExpired,
			types.EventRoomCreated,
		}, events.events())
	})

	t.Run("sweep then recreate", func(t *testing.T) {
		events := &eventLog{}
		s, fc := newTestStore(t, WithNotifier(events))

		_, err := s.Create("ABC123")
		require.NoError(t, err)
		fc.Advance(2 * time.Hour)
		assert.Equal(t, 1, s.Sweep())
		_, err = s.Create("ABC123")
		require.NoError(t, err)

		assert.Equal(t, []types.EventKind{
			types.EventRoomCreated,
			types.EventRoomExpired,
			types.EventRoomCreated,
		}, events.events())
	})

	t.Run("lazy lookup", func(t *testing.T) {
		events := &eventLog{}
		s, fc := newTestStore(t, WithNotifier(events))

		_, err := s.Create("ABC123")
		require.NoError(t, err)
		fc.Advance(2 * time.Hour)
		_, err = s.Get("ABC123")
		require.ErrorIs(t, err, ErrRoomNotFound)

		assert.Equal(t, []types.EventKind{
			types.EventRoomCreated,
			types.EventRoomExpired,
		}, events.events(), "expected the expiry event before Get returns")
	})
}

func TestStore_ExpiredRoomRejectsMutations(t *testing.T) {
	s, fc := newTestStore(t)

	_, err := s.Create("ABC123")
	require.NoError(t, err)
	item, err := s.AddItem("ABC123", NewItem{Type: types.ItemText, Content: "hello", UserId: "u1"})
	require.NoError(t, err)

	fc.Advance(2 * time.Hour)

	tcases := []struct {
		name string
		call func() error
	}{
		{"join", func() error { _, err := s.Join("ABC123", "u1", "Ann"); return err }},
		{"add item", func() error {
			_, err := s.AddItem("ABC123", NewItem{Type: types.ItemText, Content: "x", UserId: "u1"})
			return err
		}},
		{"add chat", func() error { _, err := s.AddChat("ABC123", "u1", "Ann", "hi"); return err }},
		{"toggle pin", func() error { _, err := s.TogglePin("ABC123", item.Id); return err }},
		{"add reaction", func() error { _, err := s.AddReaction("ABC123", item.Id, "👍", "u1"); return err }},
		{"set theme", func() error { return s.SetTheme("ABC123", types.ThemeLight) }},
		{"create folder", func() error { _, err := s.CreateFolder("ABC123", "Notes"); return err }},
		{"folders", func() error { _, err := s.Folders("ABC123"); return err }},
		{"items in folder", func() error { _, err := s.ItemsInFolder("ABC123", ""); return err }},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.call(), ErrRoomNotFound)
		})
	}
}

func TestStore_EvictedRoomRejectsInFlightMutation(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Create("ABC123")
	require.NoError(t, err)

	room, ok := s.lookup("ABC123")
	require.True(t, ok)

	// simulate eviction winning the race after lookup
	s.Delete("ABC123")

	err = s.mutateRoom(room, func(r *Room, _ time.Time) error {
		t.Fatal("mutation must not run against an evicted room")
		return nil
	})
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.True(t, room.evicted, "expected room to be marked evicted")
}

func TestStore_ConcurrentReactionsDoNotLoseUpdates(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Create("ABC123")
	require.NoError(t, err)
	item, err := s.AddItem("ABC123", NewItem{Type: types.ItemText, Content: "hello", UserId: "u1"})
	require.NoError(t, err)

	const users = 50
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.AddReaction("ABC123", item.Id, "👍", fmt.Sprintf("user-%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	state, err := s.Get("ABC123")
	require.NoError(t, err)
	assert.Len(t, state.Items[0].Reactions["👍"], users, "expected every reaction to be recorded")

	// an even number of toggles by the same user leaves no trace
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AddReaction("ABC123", item.Id, "🔥", "u1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err = s.Get("ABC123")
	require.NoError(t, err)
	assert.NotContains(t, state.Items[0].Reactions, "🔥")
}

func TestStore_ConcurrentRooms(t *testing.T) {
	s, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code := fmt.Sprintf("ROOM%02d", i)
			_, err := s.Create(code)
			assert.NoError(t, err)
			for j := 0; j < 10; j++ {
				_, err := s.AddItem(code, NewItem{Type: types.ItemText, Content: fmt.Sprint(j), UserId: "u"})
				assert.NoError(t, err)
				_, err = s.Get(code)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, s.Len())
	for i := 0; i < 20; i++ {
		state, err := s.Get(fmt.Sprintf("ROOM%02d", i))
		require.NoError(t, err)
		assert.Len(t, state.Items, 10)
		for j, it := range state.Items {
			assert.Equal(t, fmt.Sprint(j), it.Content, "expected insertion order to be preserved")
		}
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Create("ABC123")
	require.NoError(t, err)
	item, err := s.AddItem("ABC123", NewItem{Type: types.ItemText, Content: "hello", UserId: "u1"})
	require.NoError(t, err)
	_, err = s.AddReaction("ABC123", item.Id, "👍", "u1")
	require.NoError(t, err)

	state, err := s.Get("ABC123")
	require.NoError(t, err)
	state.Items[0].Reactions["👍"][0] = "mallory"
	state.Items[0].IsPinned = true
	state.Participants[0].UserName = "mallory"

	fresh, err := s.Get("ABC123")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, fresh.Items[0].Reactions["👍"])
	assert.False(t, fresh.Items[0].IsPinned)
	assert.Empty(t, fresh.Participants[0].UserName)
}

func TestStore_Notifications(t *testing.T) {
	n := &mockNotifier{}
	defer n.AssertExpectations(t)

	s, _ := newTestStore(t, WithNotifier(n))

	n.On("Notify", mock.MatchedBy(func(ev types.RoomEvent) bool {
		return ev.RoomCode == "ABC123" && ev.Kind == types.EventRoomCreated
	})).Return().Once()
	n.On("Notify", mock.MatchedBy(func(ev types.RoomEvent) bool {
		return ev.RoomCode == "ABC123" && ev.Kind == types.EventChatAdded && ev.SubjectId != ""
	})).Return().Once()

	_, err := s.Create("abc123")
	require.NoError(t, err)
	_, err = s.AddChat("abc123", "u1", "Ann", "hello")
	require.NoError(t, err)

	// failed mutations do not notify
	_, err = s.AddChat("abc123", "u1", "Ann", "")
	assert.ErrorIs(t, err, ErrValidationFailed)
}
