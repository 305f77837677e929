package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-cliproom/internal/blob"
	"github.com/npezzotti/go-cliproom/internal/config"
	"github.com/npezzotti/go-cliproom/internal/idgen"
	"github.com/npezzotti/go-cliproom/internal/server"
	"github.com/npezzotti/go-cliproom/internal/store"
	"github.com/npezzotti/go-cliproom/internal/types"
	"github.com/sirupsen/logrus"
)

// RoomStore is the part of the room store the HTTP API drives.
type RoomStore interface {
	Create(code string) (types.RoomState, error)
	Get(code string) (types.RoomState, error)
	Len() int
	Join(code, userId, userName string) (types.Participant, error)
	AddItem(code string, n store.NewItem) (types.Item, error)
	AddChat(code, userId, userName, message string) (types.ChatMessage, error)
	TogglePin(code, itemId string) (types.Item, error)
	AddReaction(code, itemId, emoji, userId string) (types.Item, error)
	SetTheme(code string, theme types.Theme) error
	CreateFolder(code, name string) (types.Folder, error)
	Folders(code string) ([]types.Folder, error)
	ItemsInFolder(code, folderId string) ([]types.Item, error)
}

// MediaStore stores uploads and serves them back.
type MediaStore interface {
	blob.Uploader
	Handler() http.Handler
}

type CliproomApp struct {
	log              logrus.FieldLogger
	rooms            RoomStore
	hub              *server.Hub
	media            MediaStore
	srv              *http.Server
	allowedOrigins   []string
	generateRoomCode func() string
	now              func() time.Time
}

func NewCliproomApp(mux *http.ServeMux, logger logrus.FieldLogger, rooms RoomStore, hub *server.Hub, media MediaStore, cfg *config.Config) *CliproomApp {
	s := &CliproomApp{
		log:              logger,
		rooms:            rooms,
		hub:              hub,
		media:            media,
		allowedOrigins:   cfg.AllowedOrigins,
		generateRoomCode: idgen.RoomCode,
		now:              time.Now,
	}

	mediaPrefix := strings.TrimSuffix(cfg.MediaURL, "/")

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/rooms", s.createRoom)
	mux.HandleFunc("GET /api/rooms/{code}", s.getRoom)
	mux.HandleFunc("POST /api/rooms/{code}", s.roomAction)
	mux.HandleFunc("GET /api/rooms/{code}/folders", s.getFolders)
	mux.HandleFunc("GET /api/rooms/{code}/items", s.getItems)
	mux.Handle("GET /api/rooms/{code}/export", handlers.CompressHandler(http.HandlerFunc(s.exportRoom)))
	mux.HandleFunc("POST /api/upload", s.upload)
	mux.Handle("GET "+mediaPrefix+"/", http.StripPrefix(mediaPrefix, media.Handler()))
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
	)(mux)

	h = s.errorHandler(h)
	h = s.accessLog(h)

	s.srv = &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *CliproomApp) Start() error {
	s.log.WithField("addr", s.srv.Addr).Info("starting server")
	return s.srv.ListenAndServe()
}

func (s *CliproomApp) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
