package server

import (
	"context"
	"sync"

	"github.com/npezzotti/go-cliproom/internal/stats"
	"github.com/npezzotti/go-cliproom/internal/types"
	"github.com/sirupsen/logrus"
)

const (
	eventQueueSize  = 256
	metricWsClients = "ws_clients"
)

// Hub fans room events out to the websocket clients watching each room.
// All client bookkeeping happens on the Run goroutine.
type Hub struct {
	log            logrus.FieldLogger
	stats          stats.StatsProvider
	rooms          map[string]map[*Client]struct{}
	registerChan   chan *Client
	deRegisterChan chan *Client
	eventChan      chan types.RoomEvent
	stopOnce       sync.Once
	stop           chan struct{}
	done           chan struct{}
}

func NewHub(logger logrus.FieldLogger, su stats.StatsProvider) *Hub {
	su.RegisterMetric(metricWsClients)

	return &Hub{
		log:            logger,
		stats:          su,
		rooms:          make(map[string]map[*Client]struct{}),
		registerChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		eventChan:      make(chan types.RoomEvent, eventQueueSize),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

func (h *Hub) Run() {
	h.log.Info("starting websocket hub")
	defer close(h.done)

	for {
		select {
		case c := <-h.registerChan:
			h.addClient(c)
		case c := <-h.deRegisterChan:
			h.removeClient(c)
		case ev := <-h.eventChan:
			h.broadcast(ev)
		case <-h.stop:
			h.log.Info("shutting down websocket hub")
			for code, clients := range h.rooms {
				for c := range clients {
					h.removeClient(c)
				}
				delete(h.rooms, code)
			}
			return
		}
	}
}

// Notify queues ev for delivery without blocking the caller. Events are
// dropped when the queue is full.
func (h *Hub) Notify(ev types.RoomEvent) {
	select {
	case h.eventChan <- ev:
	default:
		h.log.WithFields(logrus.Fields{
			"room_code": ev.RoomCode,
			"kind":      ev.Kind,
		}).Warn("event queue full, dropping event")
	}
}

// Register attaches c to its room. It returns false once the hub has
// stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.registerChan <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) deRegister(c *Client) {
	select {
	case h.deRegisterChan <- c:
	case <-h.done:
	}
}

func (h *Hub) addClient(c *Client) {
	clients, ok := h.rooms[c.roomCode]
	if !ok {
		clients = make(map[*Client]struct{})
		h.rooms[c.roomCode] = clients
	}
	clients[c] = struct{}{}
	h.stats.Incr(metricWsClients)
	c.queueMessage(NoErrOK(map[string]any{"room_code": c.roomCode}))

	h.log.WithFields(logrus.Fields{
		"room_code": c.roomCode,
		"watchers":  len(clients),
	}).Debug("client registered")
}

func (h *Hub) removeClient(c *Client) {
	clients, ok := h.rooms[c.roomCode]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}

	delete(clients, c)
	if len(clients) == 0 {
		delete(h.rooms, c.roomCode)
	}
	h.stats.Decr(metricWsClients)
	close(c.send)

	h.log.WithField("room_code", c.roomCode).Debug("client removed")
}

func (h *Hub) broadcast(ev types.RoomEvent) {
	clients := h.rooms[ev.RoomCode]
	msg := EventMessage(ev)

	for c := range clients {
		if !c.queueMessage(msg) {
			h.removeClient(c)
		}
	}

	// nobody can act on an expired room, so let its watchers go
	if ev.Kind == types.EventRoomExpired {
		for c := range clients {
			h.removeClient(c)
		}
	}
}

// watchers is only safe to call from the Run goroutine or once Run has
// returned.
func (h *Hub) watchers(code string) int {
	return len(h.rooms[code])
}

func (h *Hub) Shutdown(ctx context.Context) error {
	h.stopOnce.Do(func() { close(h.stop) })

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
