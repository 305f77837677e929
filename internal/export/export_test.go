package export

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/npezzotti/go-cliproom/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var (
	created    = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	exportedAt = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
)

func emptyState() types.RoomState {
	return types.RoomState{
		Code:      "ABC123",
		CreatedAt: created,
		ExpiresAt: created.Add(time.Hour),
		Theme:     types.ThemeDark,
	}
}

func populatedState() types.RoomState {
	state := emptyState()
	state.Folders = []types.Folder{{Id: "folder-1", Name: "Notes", CreatedAt: created}}
	state.Items = []types.Item{
		{
			Id:        "item-1",
			Type:      types.ItemText,
			Content:   "hello",
			CreatedAt: created.Add(time.Minute),
			UserId:    "u1",
			Reactions: map[string][]string{"👍": {"u1", "u2"}, "🎉": {"u2"}},
		},
		{
			Id:        "item-2",
			Type:      types.ItemLink,
			Content:   "https://example.com",
			CreatedAt: created.Add(2 * time.Minute),
			UserId:    "u2",
			FolderId:  "folder-1",
			IsPinned:  true,
			Reactions: map[string][]string{},
		},
		{
			Id:        "item-3",
			Type:      types.ItemFile,
			Content:   "/media/report.pdf",
			CreatedAt: created.Add(3 * time.Minute),
			UserId:    "u2",
			Reactions: map[string][]string{},
			FileName:  "report.pdf",
			FileSize:  2048,
			FileType:  "application/pdf",
		},
	}
	state.ChatMessages = []types.ChatMessage{
		{Id: "chat-1", UserId: "u1", UserName: "Ann", Message: "first", CreatedAt: created.Add(time.Minute)},
		{Id: "chat-2", UserId: "u2", UserName: "Bob", Message: "second", CreatedAt: created.Add(2 * time.Minute)},
	}
	state.Participants = []types.Participant{{UserId: "u1", UserName: "Ann"}, {UserId: "u2", UserName: "Bob"}}
	state.ParticipantCount = 2
	return state
}

func TestParseFormat(t *testing.T) {
	tcases := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatMarkdown},
		{in: "markdown", want: FormatMarkdown},
		{in: "MD", want: FormatMarkdown},
		{in: "json", want: FormatJSON},
		{in: "yml", want: FormatYAML},
		{in: "yaml", want: FormatYAML},
		{in: "html", want: FormatHTML},
		{in: "pdf", wantErr: true},
	}

	for _, tc := range tcases {
		t.Run(tc.in, func(t *testing.T) {
			f, err := ParseFormat(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, f)
		})
	}
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "room-ABC123.md", Filename("ABC123", FormatMarkdown))
	assert.Equal(t, "room-ABC123.json", Filename("ABC123", FormatJSON))
	assert.Equal(t, "room-ABC123.yaml", Filename("ABC123", FormatYAML))
	assert.Equal(t, "room-ABC123.html", Filename("ABC123", FormatHTML))
}

func TestMarkdown_Empty(t *testing.T) {
	md := Markdown(emptyState(), exportedAt)

	assert.Contains(t, md, "# Room ABC123")
	assert.Contains(t, md, "**Created:** 2024-05-01 09:00:00 UTC")
	assert.Contains(t, md, "**Participants:** 0")
	assert.Contains(t, md, "## Pinned Items\nNo pinned items\n")
	assert.Contains(t, md, "## All Items\nNo items\n")
	assert.Contains(t, md, "## Chat Messages\nNo chat messages\n")
	assert.True(t, strings.HasSuffix(md, "*Exported on 2024-05-01 09:30:00 UTC*\n"))
}

func TestMarkdown_Populated(t *testing.T) {
	md := Markdown(populatedState(), exportedAt)

	assert.Contains(t, md, "**Participants:** 2")
	assert.Contains(t, md, "## Pinned Items\n- **LINK** (2024-05-01 09:02:00 UTC): https://example.com\n")
	assert.Contains(t, md, "- **TEXT** (2024-05-01 09:01:00 UTC): hello | Reactions: 🎉1 👍2\n")
	assert.Contains(t, md, "- 📌 **LINK** (2024-05-01 09:02:00 UTC): https://example.com\n")
	assert.NotContains(t, md, "No pinned items")
	assert.NotContains(t, md, "No items")
	assert.NotContains(t, md, "No chat messages")

	// insertion order is kept for items and chat
	allItems := md[strings.Index(md, "## All Items"):]
	assert.Less(t, strings.Index(allItems, "hello"), strings.Index(allItems, "https://example.com"))
	assert.Less(t, strings.Index(allItems, "https://example.com"), strings.Index(allItems, "/media/report.pdf"))
	assert.Less(t, strings.Index(md, "**Ann**"), strings.Index(md, "**Bob**"))
}

func TestMarkdown_Deterministic(t *testing.T) {
	state := populatedState()
	assert.Equal(t, Markdown(state, exportedAt), Markdown(state, exportedAt))
}

func TestNewSnapshot(t *testing.T) {
	snap := NewSnapshot(emptyState(), exportedAt)
	assert.Equal(t, "ABC123", snap.RoomCode)
	assert.Equal(t, exportedAt, snap.ExportedAt)
	assert.NotNil(t, snap.Items, "expected empty items to encode as a list")
	assert.NotNil(t, snap.Folders)
	assert.NotNil(t, snap.ChatMessages)

	state := populatedState()
	snap = NewSnapshot(state, exportedAt)
	assert.Equal(t, state.Items, snap.Items)
	assert.Equal(t, state.ChatMessages, snap.ChatMessages)
	assert.Equal(t, 2, snap.ParticipantCount)
}

func TestRender(t *testing.T) {
	state := populatedState()

	t.Run("markdown", func(t *testing.T) {
		out, err := Render(state, FormatMarkdown, exportedAt)
		require.NoError(t, err)
		assert.Equal(t, Markdown(state, exportedAt), string(out))
	})

	t.Run("json", func(t *testing.T) {
		out, err := Render(state, FormatJSON, exportedAt)
		require.NoError(t, err)

		var snap Snapshot
		require.NoError(t, json.Unmarshal(out, &snap))
		assert.Equal(t, "ABC123", snap.RoomCode)
		require.Len(t, snap.Items, 3)
		assert.Equal(t, "folder-1", snap.Items[1].FolderId)
		assert.Equal(t, "report.pdf", snap.Items[2].FileName)
		assert.Equal(t, int64(2048), snap.Items[2].FileSize)
		require.Len(t, snap.ChatMessages, 2)
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := Render(state, FormatYAML, exportedAt)
		require.NoError(t, err)
		assert.Contains(t, string(out), "room_code: ABC123")

		var decoded map[string]any
		require.NoError(t, yaml.Unmarshal(out, &decoded))
		assert.Len(t, decoded["items"], 3)
		assert.Len(t, decoded["chat_messages"], 2)
	})

	t.Run("html", func(t *testing.T) {
		out, err := Render(state, FormatHTML, exportedAt)
		require.NoError(t, err)
		assert.Contains(t, string(out), "<h1>Room ABC123</h1>")
		assert.Contains(t, string(out), "<h2>Pinned Items</h2>")
		assert.Contains(t, string(out), "<strong>TEXT</strong>")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := Render(state, Format("pdf"), exportedAt)
		assert.Error(t, err)
	})
}
