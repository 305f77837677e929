// Package export renders a room snapshot for download. Every function here
// is pure: the same state and export time always produce the same output.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/npezzotti/go-cliproom/internal/types"
	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"
)

const timeLayout = "2006-01-02 15:04:05 MST"

type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatHTML     Format = "html"
)

// ParseFormat maps a query value to a Format. An empty value selects
// markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "html":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "text/markdown; charset=utf-8"
	}
}

func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	case FormatHTML:
		return "html"
	default:
		return "md"
	}
}

// Filename is the suggested download name for a room export.
func Filename(code string, f Format) string {
	return fmt.Sprintf("room-%s.%s", code, f.Extension())
}

// Snapshot is the machine readable export of a room.
type Snapshot struct {
	RoomCode         string              `json:"room_code" yaml:"room_code"`
	CreatedAt        time.Time           `json:"created_at" yaml:"created_at"`
	ExpiresAt        time.Time           `json:"expires_at" yaml:"expires_at"`
	ExportedAt       time.Time           `json:"exported_at" yaml:"exported_at"`
	Theme            types.Theme         `json:"theme" yaml:"theme"`
	ParticipantCount int                 `json:"participant_count" yaml:"participant_count"`
	Folders          []types.Folder      `json:"folders" yaml:"folders"`
	Items            []types.Item        `json:"items" yaml:"items"`
	ChatMessages     []types.ChatMessage `json:"chat_messages" yaml:"chat_messages"`
}

func NewSnapshot(state types.RoomState, exportedAt time.Time) Snapshot {
	snap := Snapshot{
		RoomCode:         state.Code,
		CreatedAt:        state.CreatedAt,
		ExpiresAt:        state.ExpiresAt,
		ExportedAt:       exportedAt,
		Theme:            state.Theme,
		ParticipantCount: state.ParticipantCount,
		Folders:          state.Folders,
		Items:            state.Items,
		ChatMessages:     state.ChatMessages,
	}
	if snap.Folders == nil {
		snap.Folders = []types.Folder{}
	}
	if snap.Items == nil {
		snap.Items = []types.Item{}
	}
	if snap.ChatMessages == nil {
		snap.ChatMessages = []types.ChatMessage{}
	}
	return snap
}

// Markdown renders the room as a human readable document.
func Markdown(state types.RoomState, exportedAt time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Room %s\n\n", state.Code)
	fmt.Fprintf(&b, "**Created:** %s\n", formatTime(state.CreatedAt))
	fmt.Fprintf(&b, "**Participants:** %d\n\n", state.ParticipantCount)

	b.WriteString("## Pinned Items\n")
	var pinned int
	for _, it := range state.Items {
		if !it.IsPinned {
			continue
		}
		pinned++
		fmt.Fprintf(&b, "- **%s** (%s): %s\n", strings.ToUpper(string(it.Type)), formatTime(it.CreatedAt), it.Content)
	}
	if pinned == 0 {
		b.WriteString("No pinned items\n")
	}

	b.WriteString("\n## All Items\n")
	for _, it := range state.Items {
		b.WriteString("- ")
		if it.IsPinned {
			b.WriteString("📌 ")
		}
		fmt.Fprintf(&b, "**%s** (%s): %s", strings.ToUpper(string(it.Type)), formatTime(it.CreatedAt), it.Content)
		if len(it.Reactions) > 0 {
			b.WriteString(" | Reactions: ")
			b.WriteString(reactionCounts(it.Reactions))
		}
		b.WriteString("\n")
	}
	if len(state.Items) == 0 {
		b.WriteString("No items\n")
	}

	b.WriteString("\n## Chat Messages\n")
	for _, msg := range state.ChatMessages {
		fmt.Fprintf(&b, "**%s** (%s): %s\n\n", msg.UserName, formatTime(msg.CreatedAt), msg.Message)
	}
	if len(state.ChatMessages) == 0 {
		b.WriteString("No chat messages\n\n")
	}

	fmt.Fprintf(&b, "---\n*Exported on %s*\n", formatTime(exportedAt))
	return b.String()
}

// Render encodes the room in the requested format.
func Render(state types.RoomState, f Format, exportedAt time.Time) ([]byte, error) {
	switch f {
	case FormatMarkdown:
		return []byte(Markdown(state, exportedAt)), nil
	case FormatJSON:
		return json.MarshalIndent(NewSnapshot(state, exportedAt), "", "  ")
	case FormatYAML:
		return yaml.Marshal(NewSnapshot(state, exportedAt))
	case FormatHTML:
		var buf bytes.Buffer
		if err := goldmark.Convert([]byte(Markdown(state, exportedAt)), &buf); err != nil {
			return nil, fmt.Errorf("render html: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unsupported export format %q", f)
}

func reactionCounts(reactions map[string][]string) string {
	emojis := make([]string, 0, len(reactions))
	for emoji := range reactions {
		emojis = append(emojis, emoji)
	}
	slices.Sort(emojis)

	parts := make([]string, len(emojis))
	for i, emoji := range emojis {
		parts[i] = fmt.Sprintf("%s%d", emoji, len(reactions[emoji]))
	}
	return strings.Join(parts, " ")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
