// Package sse implements a Server-Sent Events broker for real-time board updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event represents an event to broadcast. BoardID scopes it so clients can
// follow a single board; an empty BoardID reaches every client.
type Event struct {
	Type    string `json:"type"`
	BoardID string `json:"board_id,omitempty"`
	Data    any    `json:"data"`
}

// Message is an encoded event as delivered to subscribers.
type Message struct {
	Type    string
	BoardID string
	Data    json.RawMessage
}

const heartbeatInterval = 25 * time.Second

type boardEventReq struct {
	kind    string
	boardID string
	itemID  string
}

// Broker manages subscriber channels and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + per-board stats throttle timestamps). Public methods communicate
// with this loop through channels, so no mutexes are required.
type Broker struct {
	statsMin time.Duration

	subscribeCh   chan chan Message
	unsubscribeCh chan chan Message
	publishCh     chan Event
	boardEventCh  chan boardEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new broker with the given stats throttle interval.
func NewBroker(statsThrottle time.Duration) *Broker {
	if statsThrottle <= 0 {
		statsThrottle = 2 * time.Second
	}

	b := &Broker{
		statsMin:      statsThrottle,
		subscribeCh:   make(chan chan Message),
		unsubscribeCh: make(chan chan Message),
		publishCh:     make(chan Event, 256),
		boardEventCh:  make(chan boardEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan Message]struct{})
	lastStats := make(map[string]time.Time)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		msg := Message{Type: event.Type, BoardID: event.BoardID, Data: payload}
		for ch := range clients {
			select {
			case ch <- msg:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.boardEventCh:
			data := map[string]string{"board_id": req.boardID}
			if req.itemID != "" {
				data["item_id"] = req.itemID
			}
			broadcast(Event{Type: req.kind, BoardID: req.boardID, Data: data})

			now := time.Now()
			if now.Sub(lastStats[req.boardID]) >= b.statsMin {
				lastStats[req.boardID] = now
				broadcast(Event{Type: "board.stats", BoardID: req.boardID, Data: map[string]string{"board_id": req.boardID}})
			}
			if req.kind == "board.deleted" {
				delete(lastStats, req.boardID)
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan Message {
	ch := make(chan Message, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan Message) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishBoardEvent publishes a board or item change (kind such as
// "item.updated") and a throttled board.stats event for that board.
func (b *Broker) PublishBoardEvent(kind, boardID, itemID string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.boardEventCh <- boardEventReq{kind: kind, boardID: boardID, itemID: itemID}:
	case <-b.stopped:
	}
}

// Matches reports whether a message is visible to a client following boardID.
func (m Message) Matches(boardID string) bool {
	return boardID == "" || m.BoardID == "" || m.BoardID == boardID
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). An optional
// board_id query parameter narrows the stream to one board.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	boardID := r.URL.Query().Get("board_id")
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			// Comment lines keep proxies from closing idle streams.
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if !msg.Matches(boardID) {
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Type, msg.Data)
			flusher.Flush()
		}
	}
}
