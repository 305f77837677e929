package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-cliproom/internal/export"
	"github.com/npezzotti/go-cliproom/internal/server"
	"github.com/npezzotti/go-cliproom/internal/store"
	"github.com/npezzotti/go-cliproom/internal/types"
)

const (
	maxUploadSize    = 32 << 20
	maxRoomCodeTries = 5
	timeFormat       = time.RFC3339
)

type CreateRoomRequest struct {
	RoomCode string `json:"room_code"`
}

type CreateRoomResponse struct {
	RoomCode  string `json:"room_code"`
	CreatedAt string `json:"created_at"`
	ExpiresAt string `json:"expires_at"`
}

// RoomActionRequest carries the fields of every room action. Which fields
// are read depends on Action; an empty Action adds an item.
type RoomActionRequest struct {
	Action     string `json:"action"`
	UserId     string `json:"user_id"`
	UserName   string `json:"user_name"`
	Type       string `json:"type"`
	Content    string `json:"content"`
	FolderId   string `json:"folder_id"`
	FileName   string `json:"file_name"`
	FileSize   int64  `json:"file_size"`
	FileType   string `json:"file_type"`
	Message    string `json:"message"`
	ItemId     string `json:"item_id"`
	Emoji      string `json:"emoji"`
	Theme      string `json:"theme"`
	FolderName string `json:"folder_name"`
}

type RoomActionResponse struct {
	Success     bool               `json:"success"`
	Participant *types.Participant `json:"participant,omitempty"`
	Item        *types.Item        `json:"item,omitempty"`
	Message     *types.ChatMessage `json:"message,omitempty"`
	Folder      *types.Folder      `json:"folder,omitempty"`
}

type UploadResponse struct {
	types.Upload
	Item *types.Item `json:"item,omitempty"`
}

func (s *CliproomApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("json encode")
	}
}

func (s *CliproomApp) writeError(w http.ResponseWriter, errResp *ApiError) {
	if errResp.StatusCode >= http.StatusInternalServerError {
		s.log.WithError(errResp.Err).Error(errResp.Message)
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

func (s *CliproomApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	s.writeJson(w, http.StatusOK, map[string]any{
		"status": "ok",
		"rooms":  s.rooms.Len(),
	})
}

func (s *CliproomApp) createRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, NewBadRequestError())
			return
		}
	}

	var (
		state types.RoomState
		err   error
	)
	if code := strings.TrimSpace(req.RoomCode); code != "" {
		state, err = s.rooms.Create(code)
	} else {
		// a generated code may collide with a live room, so retry a few times
		for range maxRoomCodeTries {
			state, err = s.rooms.Create(s.generateRoomCode())
			if !errors.Is(err, store.ErrAlreadyExists) {
				break
			}
		}
	}
	if err != nil {
		s.writeError(w, storeError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, CreateRoomResponse{
		RoomCode:  state.Code,
		CreatedAt: state.CreatedAt.Format(timeFormat),
		ExpiresAt: state.ExpiresAt.Format(timeFormat),
	})
}

func (s *CliproomApp) getRoom(w http.ResponseWriter, r *http.Request) {
	state, err := s.rooms.Get(r.PathValue("code"))
	if err != nil {
		s.writeError(w, storeError(err))
		return
	}

	s.writeJson(w, http.StatusOK, state)
}

func (s *CliproomApp) roomAction(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	var req RoomActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	resp := RoomActionResponse{Success: true}
	var err error

	switch req.Action {
	case "join_room":
		var p types.Participant
		if p, err = s.rooms.Join(code, req.UserId, req.UserName); err == nil {
			resp.Participant = &p
		}
	case "add_item", "":
		var it types.Item
		if it, err = s.rooms.AddItem(code, store.NewItem{
			Type:     types.ItemType(req.Type),
			Content:  req.Content,
			UserId:   req.UserId,
			FolderId: req.FolderId,
			FileName: req.FileName,
			FileSize: req.FileSize,
			FileType: req.FileType,
		}); err == nil {
			resp.Item = &it
		}
	case "add_chat":
		var msg types.ChatMessage
		if msg, err = s.rooms.AddChat(code, req.UserId, req.UserName, req.Message); err == nil {
			resp.Message = &msg
		}
	case "toggle_pin":
		var it types.Item
		if it, err = s.rooms.TogglePin(code, req.ItemId); err == nil {
			resp.Item = &it
		}
	case "add_reaction":
		var it types.Item
		if it, err = s.rooms.AddReaction(code, req.ItemId, req.Emoji, req.UserId); err == nil {
			resp.Item = &it
		}
	case "set_theme":
		err = s.rooms.SetTheme(code, types.Theme(req.Theme))
	case "create_folder":
		var f types.Folder
		if f, err = s.rooms.CreateFolder(code, req.FolderName); err == nil {
			resp.Folder = &f
		}
	default:
		s.writeError(w, NewValidationError(fmt.Errorf("unknown action %q", req.Action)))
		return
	}

	if err != nil {
		s.writeError(w, storeError(err))
		return
	}

	s.writeJson(w, http.StatusOK, resp)
}

func (s *CliproomApp) getFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := s.rooms.Folders(r.PathValue("code"))
	if err != nil {
		s.writeError(w, storeError(err))
		return
	}

	s.writeJson(w, http.StatusOK, folders)
}

func (s *CliproomApp) getItems(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	if !r.URL.Query().Has("folder_id") {
		state, err := s.rooms.Get(code)
		if err != nil {
			s.writeError(w, storeError(err))
			return
		}
		s.writeJson(w, http.StatusOK, state.Items)
		return
	}

	items, err := s.rooms.ItemsInFolder(code, r.URL.Query().Get("folder_id"))
	if err != nil {
		s.writeError(w, storeError(err))
		return
	}

	s.writeJson(w, http.StatusOK, items)
}

func (s *CliproomApp) exportRoom(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, NewValidationError(err))
		return
	}

	state, err := s.rooms.Get(r.PathValue("code"))
	if err != nil {
		s.writeError(w, storeError(err))
		return
	}

	body, err := export.Render(state, format, s.now().UTC())
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(state.Code, format)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.log.WithError(err).Warn("write export")
	}
}

// upload stores the multipart "file" field. When room_code and user_id
// are also given the upload is added to that room as an item.
func (s *CliproomApp) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, NewRequestTooLargeError())
			return
		}
		s.writeError(w, NewBadRequestError())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, NewValidationError(errors.New("no file provided")))
		return
	}
	defer file.Close()

	roomCode := r.FormValue("room_code")
	userId := r.FormValue("user_id")
	folderId := r.FormValue("folder_id")
	if roomCode != "" {
		// fail before storing anything the room would reject
		if err := s.checkUploadTarget(roomCode, userId, folderId); err != nil {
			s.writeError(w, storeError(err))
			return
		}
	}

	u, err := s.media.Upload(r.Context(), header.Filename, file)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	resp := UploadResponse{Upload: u}
	if roomCode != "" && userId != "" {
		it, err := s.rooms.AddItem(roomCode, store.ItemFromUpload(u, userId, folderId))
		if err != nil {
			if rerr := s.media.Remove(u); rerr != nil {
				s.log.WithError(rerr).WithField("url", u.URL).Warn("remove orphaned upload")
			}
			s.writeError(w, storeError(err))
			return
		}
		resp.Item = &it
	}

	s.writeJson(w, http.StatusOK, resp)
}

// checkUploadTarget reports whether the room exists and, when the upload
// becomes an item, whether folderId names one of its folders.
func (s *CliproomApp) checkUploadTarget(roomCode, userId, folderId string) error {
	folders, err := s.rooms.Folders(roomCode)
	if err != nil {
		return err
	}
	if userId == "" || folderId == "" {
		return nil
	}

	for _, f := range folders {
		if f.Id == folderId {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown folder %q", store.ErrValidationFailed, folderId)
}

func (s *CliproomApp) serveWs(w http.ResponseWriter, r *http.Request) {
	state, err := s.rooms.Get(r.URL.Query().Get("room_code"))
	if err != nil {
		s.writeError(w, storeError(err))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" || len(s.allowedOrigins) == 0 {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("error upgrading connection")
		return
	}

	client := server.NewClient(state.Code, conn, s.hub, s.log)
	go client.Serve()
}
