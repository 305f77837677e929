package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/npezzotti/go-cliproom/internal/types"
)

type BaseMessage struct {
	Timestamp time.Time `json:"timestamp"`
}

// ServerMessage is the only frame pushed to websocket clients. Clients
// react to an event by refetching the room over HTTP.
type ServerMessage struct {
	BaseMessage
	Response *Response        `json:"response,omitempty"`
	Event    *types.RoomEvent `json:"event,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

func NoErrOK(data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func EventMessage(ev types.RoomEvent) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Event:       &ev,
	}
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
