package store

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/npezzotti/go-cliproom/internal/types"
)

// reactions maps an emoji to the set of users that reacted with it.
// An emoji is removed as soon as its set becomes empty.
type reactions map[string]map[string]struct{}

// toggle adds userId under emoji, or removes it if already present.
// It reports whether the user now has the reaction.
func (r reactions) toggle(emoji, userId string) bool {
	users, ok := r[emoji]
	if ok {
		if _, reacted := users[userId]; reacted {
			delete(users, userId)
			if len(users) == 0 {
				delete(r, emoji)
			}
			return false
		}
	} else {
		users = make(map[string]struct{})
		r[emoji] = users
	}

	users[userId] = struct{}{}
	return true
}

func (r reactions) view() map[string][]string {
	out := make(map[string][]string, len(r))
	for emoji, users := range r {
		out[emoji] = slices.Sorted(maps.Keys(users))
	}
	return out
}

type item struct {
	id        string
	kind      types.ItemType
	content   string
	createdAt time.Time
	userId    string
	folderId  string
	isPinned  bool
	reactions reactions
	fileName  string
	fileSize  int64
	fileType  string
}

func (it *item) view() types.Item {
	return types.Item{
		Id:        it.id,
		Type:      it.kind,
		Content:   it.content,
		CreatedAt: it.createdAt,
		UserId:    it.userId,
		FolderId:  it.folderId,
		IsPinned:  it.isPinned,
		Reactions: it.reactions.view(),
		FileName:  it.fileName,
		FileSize:  it.fileSize,
		FileType:  it.fileType,
	}
}

// Room is the aggregate stored under a room code. All fields below mu
// are guarded by it.
type Room struct {
	code      string
	createdAt time.Time
	expiresAt time.Time

	mu               sync.RWMutex
	lastActivity     time.Time
	theme            types.Theme
	items            []*item
	itemIndex        map[string]*item
	folders          []types.Folder
	folderIndex      map[string]struct{}
	chatMessages     []types.ChatMessage
	participants     []types.Participant
	participantIndex map[string]int
	// evicted is set once the room has been removed from the store. A
	// mutation that acquires the lock afterwards must not apply.
	evicted bool
}

func newRoom(code string, now time.Time, ttl time.Duration) *Room {
	return &Room{
		code:             code,
		createdAt:        now,
		expiresAt:        now.Add(ttl),
		lastActivity:     now,
		theme:            types.ThemeDark,
		itemIndex:        make(map[string]*item),
		folderIndex:      make(map[string]struct{}),
		participantIndex: make(map[string]int),
	}
}

func (r *Room) expired(now time.Time) bool {
	return now.After(r.expiresAt)
}

// live reports whether the room can still be read or mutated. Callers
// must hold r.mu.
func (r *Room) live(now time.Time) bool {
	return !r.evicted && !r.expired(now)
}

func (r *Room) markEvicted() {
	r.mu.Lock()
	r.evicted = true
	r.mu.Unlock()
}

// upsertParticipant records activity for userId. A non-empty userName
// replaces the stored one; an empty one keeps whatever was known.
func (r *Room) upsertParticipant(userId, userName string, now time.Time) types.Participant {
	if i, ok := r.participantIndex[userId]; ok {
		p := &r.participants[i]
		if userName != "" {
			p.UserName = userName
		}
		p.LastActivity = now
		return *p
	}

	p := types.Participant{
		UserId:       userId,
		UserName:     userName,
		LastActivity: now,
	}
	r.participantIndex[userId] = len(r.participants)
	r.participants = append(r.participants, p)
	return p
}

func (r *Room) hasFolder(id string) bool {
	_, ok := r.folderIndex[id]
	return ok
}

// state deep-copies the room. Callers must hold at least a read lock.
func (r *Room) state() types.RoomState {
	items := make([]types.Item, len(r.items))
	for i, it := range r.items {
		items[i] = it.view()
	}

	return types.RoomState{
		Code:             r.code,
		CreatedAt:        r.createdAt,
		ExpiresAt:        r.expiresAt,
		LastActivity:     r.lastActivity,
		Theme:            r.theme,
		Items:            items,
		Folders:          append([]types.Folder{}, r.folders...),
		ChatMessages:     append([]types.ChatMessage{}, r.chatMessages...),
		Participants:     append([]types.Participant{}, r.participants...),
		ParticipantCount: len(r.participants),
	}
}
