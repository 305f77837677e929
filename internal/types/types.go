package types

import (
	"time"
)

type ItemType string

const (
	ItemText  ItemType = "text"
	ItemLink  ItemType = "link"
	ItemImage ItemType = "image"
	ItemVideo ItemType = "video"
	ItemFile  ItemType = "file"
)

func (t ItemType) Valid() bool {
	switch t {
	case ItemText, ItemLink, ItemImage, ItemVideo, ItemFile:
		return true
	}
	return false
}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

type Item struct {
	Id        string              `json:"id" yaml:"id"`
	Type      ItemType            `json:"type" yaml:"type"`
	Content   string              `json:"content" yaml:"content"`
	CreatedAt time.Time           `json:"created_at" yaml:"created_at"`
	UserId    string              `json:"user_id" yaml:"user_id"`
	FolderId  string              `json:"folder_id,omitempty" yaml:"folder_id,omitempty"`
	IsPinned  bool                `json:"is_pinned" yaml:"is_pinned"`
	Reactions map[string][]string `json:"reactions" yaml:"reactions"`
	FileName  string              `json:"file_name,omitempty" yaml:"file_name,omitempty"`
	FileSize  int64               `json:"file_size,omitempty" yaml:"file_size,omitempty"`
	FileType  string              `json:"file_type,omitempty" yaml:"file_type,omitempty"`
}

type Folder struct {
	Id        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

type ChatMessage struct {
	Id        string    `json:"id" yaml:"id"`
	UserId    string    `json:"user_id" yaml:"user_id"`
	UserName  string    `json:"user_name" yaml:"user_name"`
	Message   string    `json:"message" yaml:"message"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

type Participant struct {
	UserId       string    `json:"user_id" yaml:"user_id"`
	UserName     string    `json:"user_name,omitempty" yaml:"user_name,omitempty"`
	LastActivity time.Time `json:"last_activity" yaml:"last_activity"`
}

// RoomState is a point-in-time copy of a room. It shares no memory with
// the live room it was taken from.
type RoomState struct {
	Code             string        `json:"room_code"`
	CreatedAt        time.Time     `json:"created_at"`
	ExpiresAt        time.Time     `json:"expires_at"`
	LastActivity     time.Time     `json:"last_activity"`
	Theme            Theme         `json:"theme"`
	Items            []Item        `json:"items"`
	Folders          []Folder      `json:"folders"`
	ChatMessages     []ChatMessage `json:"chat_messages"`
	Participants     []Participant `json:"participants"`
	ParticipantCount int           `json:"participant_count"`
}

type EventKind string

const (
	EventRoomCreated       EventKind = "room_created"
	EventRoomExpired       EventKind = "room_expired"
	EventParticipantJoined EventKind = "participant_joined"
	EventItemAdded         EventKind = "item_added"
	EventChatAdded         EventKind = "chat_added"
	EventItemPinned        EventKind = "item_pinned"
	EventReactionToggled   EventKind = "reaction_toggled"
	EventThemeChanged      EventKind = "theme_changed"
	EventFolderCreated     EventKind = "folder_created"
)

type RoomEvent struct {
	RoomCode  string    `json:"room_code"`
	Kind      EventKind `json:"kind"`
	SubjectId string    `json:"subject_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Upload describes a completed upload to the blob host.
type Upload struct {
	URL          string `json:"url"`
	ResourceKind string `json:"resource_kind"`
	Bytes        int64  `json:"bytes"`
	MimeType     string `json:"mime_type"`
	FileName     string `json:"file_name"`
}
