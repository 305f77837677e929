package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/npezzotti/go-cliproom/internal/types"
	"github.com/sirupsen/logrus"
)

// NewItem holds the caller supplied fields of an item. The file fields
// are either all set or all empty.
type NewItem struct {
	Type     types.ItemType
	Content  string
	UserId   string
	FolderId string
	FileName string
	FileSize int64
	FileType string
}

func (n NewItem) hasFile() bool {
	return n.FileName != "" || n.FileType != "" || n.FileSize != 0
}

func (n NewItem) validate() error {
	if n.Type == "" {
		return required("type")
	}
	if !n.Type.Valid() {
		return validationError("unknown item type %q", n.Type)
	}
	if strings.TrimSpace(n.Content) == "" {
		return required("content")
	}
	if n.UserId == "" {
		return required("user id")
	}
	if n.hasFile() {
		if n.FileName == "" || n.FileType == "" {
			return validationError("file name and file type must be set together")
		}
		if n.FileSize < 0 {
			return validationError("file size must not be negative")
		}
	}
	return nil
}

// ItemFromUpload builds the item for a completed upload. Images and videos
// keep their kind; everything else becomes a file.
func ItemFromUpload(u types.Upload, userId, folderId string) NewItem {
	kind := types.ItemFile
	switch {
	case u.ResourceKind == "image" || strings.HasPrefix(u.MimeType, "image/"):
		kind = types.ItemImage
	case u.ResourceKind == "video" || strings.HasPrefix(u.MimeType, "video/"):
		kind = types.ItemVideo
	}

	return NewItem{
		Type:     kind,
		Content:  u.URL,
		UserId:   userId,
		FolderId: folderId,
		FileName: u.FileName,
		FileSize: u.Bytes,
		FileType: u.MimeType,
	}
}

// Join records userId as a participant, replacing the display name of an
// existing record.
func (s *Store) Join(code, userId, userName string) (types.Participant, error) {
	if userId == "" {
		return types.Participant{}, required("user id")
	}

	var p types.Participant
	err := s.mutate(code, func(r *Room, now time.Time) error {
		p = r.upsertParticipant(userId, strings.TrimSpace(userName), now)
		return nil
	})
	if err != nil {
		return types.Participant{}, err
	}

	s.notify(normalizeCode(code), types.EventParticipantJoined, userId)
	return p, nil
}

// AddItem appends an item and marks its author as a participant.
func (s *Store) AddItem(code string, n NewItem) (types.Item, error) {
	if err := n.validate(); err != nil {
		return types.Item{}, err
	}

	id, err := s.ids.ItemId()
	if err != nil {
		return types.Item{}, err
	}

	var created types.Item
	err = s.mutate(code, func(r *Room, now time.Time) error {
		if n.FolderId != "" && !r.hasFolder(n.FolderId) {
			return validationError("folder %q does not exist", n.FolderId)
		}

		it := &item{
			id:        id,
			kind:      n.Type,
			content:   n.Content,
			createdAt: now,
			userId:    n.UserId,
			folderId:  n.FolderId,
			reactions: make(reactions),
		}
		if n.hasFile() {
			it.fileName = n.FileName
			it.fileSize = n.FileSize
			it.fileType = n.FileType
		}

		r.items = append(r.items, it)
		r.itemIndex[it.id] = it
		// authoring an item is an implicit join
		r.upsertParticipant(n.UserId, "", now)

		created = it.view()
		return nil
	})
	if err != nil {
		return types.Item{}, err
	}

	s.stats.Incr(metricItemsAdded)
	s.log.WithFields(logrus.Fields{
		"room_code": normalizeCode(code),
		"item_id":   created.Id,
		"type":      created.Type,
	}).Debug("item added")
	s.notify(normalizeCode(code), types.EventItemAdded, created.Id)

	return created, nil
}

func (s *Store) AddChat(code, userId, userName, message string) (types.ChatMessage, error) {
	switch {
	case userId == "":
		return types.ChatMessage{}, required("user id")
	case strings.TrimSpace(userName) == "":
		return types.ChatMessage{}, required("user name")
	case strings.TrimSpace(message) == "":
		return types.ChatMessage{}, required("message")
	}

	id, err := s.ids.ChatId()
	if err != nil {
		return types.ChatMessage{}, err
	}

	var msg types.ChatMessage
	err = s.mutate(code, func(r *Room, now time.Time) error {
		msg = types.ChatMessage{
			Id:        id,
			UserId:    userId,
			UserName:  userName,
			Message:   message,
			CreatedAt: now,
		}
		r.chatMessages = append(r.chatMessages, msg)
		return nil
	})
	if err != nil {
		return types.ChatMessage{}, err
	}

	s.stats.Incr(metricChatMessages)
	s.notify(normalizeCode(code), types.EventChatAdded, msg.Id)
	return msg, nil
}

// TogglePin flips the pinned flag of an item.
func (s *Store) TogglePin(code, itemId string) (types.Item, error) {
	if itemId == "" {
		return types.Item{}, required("item id")
	}

	var updated types.Item
	err := s.mutate(code, func(r *Room, _ time.Time) error {
		it, ok := r.itemIndex[itemId]
		if !ok {
			return fmt.Errorf("%w: %s", ErrItemNotFound, itemId)
		}

		it.isPinned = !it.isPinned
		updated = it.view()
		return nil
	})
	if err != nil {
		return types.Item{}, err
	}

	s.notify(normalizeCode(code), types.EventItemPinned, itemId)
	return updated, nil
}

// AddReaction toggles userId's emoji reaction on an item: a second
// identical call removes the reaction again.
func (s *Store) AddReaction(code, itemId, emoji, userId string) (types.Item, error) {
	switch {
	case itemId == "":
		return types.Item{}, required("item id")
	case emoji == "":
		return types.Item{}, required("emoji")
	case userId == "":
		return types.Item{}, required("user id")
	}

	var updated types.Item
	err := s.mutate(code, func(r *Room, _ time.Time) error {
		it, ok := r.itemIndex[itemId]
		if !ok {
			return fmt.Errorf("%w: %s", ErrItemNotFound, itemId)
		}

		it.reactions.toggle(emoji, userId)
		updated = it.view()
		return nil
	})
	if err != nil {
		return types.Item{}, err
	}

	s.notify(normalizeCode(code), types.EventReactionToggled, itemId)
	return updated, nil
}

func (s *Store) SetTheme(code string, theme types.Theme) error {
	if !theme.Valid() {
		return validationError("invalid theme %q", theme)
	}

	err := s.mutate(code, func(r *Room, _ time.Time) error {
		r.theme = theme
		return nil
	})
	if err != nil {
		return err
	}

	s.notify(normalizeCode(code), types.EventThemeChanged, string(theme))
	return nil
}

// CreateFolder appends a folder. Folder names need not be unique.
func (s *Store) CreateFolder(code, name string) (types.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Folder{}, required("folder name")
	}

	id, err := s.ids.FolderId()
	if err != nil {
		return types.Folder{}, err
	}

	var folder types.Folder
	err = s.mutate(code, func(r *Room, now time.Time) error {
		folder = types.Folder{
			Id:        id,
			Name:      name,
			CreatedAt: now,
		}
		r.folders = append(r.folders, folder)
		r.folderIndex[id] = struct{}{}
		return nil
	})
	if err != nil {
		return types.Folder{}, err
	}

	s.notify(normalizeCode(code), types.EventFolderCreated, folder.Id)
	return folder, nil
}

func (s *Store) Folders(code string) ([]types.Folder, error) {
	var folders []types.Folder
	err := s.read(code, func(r *Room) {
		folders = append([]types.Folder{}, r.folders...)
	})
	return folders, err
}

// ItemsInFolder returns the items filed under folderId in insertion order.
// An empty folderId selects the unfiled items.
func (s *Store) ItemsInFolder(code, folderId string) ([]types.Item, error) {
	items := []types.Item{}
	err := s.read(code, func(r *Room) {
		for _, it := range r.items {
			if it.folderId == folderId {
				items = append(items, it.view())
			}
		}
	})
	return items, err
}
