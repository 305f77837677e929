package idgen

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/teris-io/shortid"
)

const (
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	RoomCodeLength   = 6
)

// Generator produces ids for the entities that live inside a room.
type Generator struct {
	generateShortId func() (string, error)
}

func New() *Generator {
	return &Generator{generateShortId: shortid.Generate}
}

// NewWithFunc is used by tests that need predictable ids.
func NewWithFunc(fn func() (string, error)) *Generator {
	return &Generator{generateShortId: fn}
}

func (g *Generator) ItemId() (string, error) {
	return g.prefixed("item")
}

func (g *Generator) FolderId() (string, error) {
	return g.prefixed("folder")
}

func (g *Generator) ChatId() (string, error) {
	return g.prefixed("chat")
}

func (g *Generator) ShortId() (string, error) {
	return g.generateShortId()
}

func (g *Generator) prefixed(prefix string) (string, error) {
	sid, err := g.generateShortId()
	if err != nil {
		return "", fmt.Errorf("generate %s id: %w", prefix, err)
	}

	return prefix + "-" + sid, nil
}

// RoomCode returns a random six character uppercase alphanumeric code.
func RoomCode() string {
	u := uuid.New()
	code := make([]byte, RoomCodeLength)
	for i := range code {
		code[i] = roomCodeAlphabet[int(u[i])%len(roomCodeAlphabet)]
	}

	return string(code)
}
