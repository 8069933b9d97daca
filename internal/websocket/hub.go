package websocket

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/anipipe/api/internal/model"
)

// JobSource is what the hub polls for snapshots. The pipeline
// orchestrator satisfies it.
type JobSource interface {
	GetStatus(jobID string) (model.Job, error)
	GetAll() []model.Job
}

// Conn is the subset of the websocket connection the hub drives. The
// fiber contrib connection satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
}

// Hub streams job state over WebSocket connections. Each connection
// gets its own snapshot ticker; there is no cross-connection fanout
// because the registry is the single source of truth.
type Hub struct {
	source   JobSource
	interval time.Duration
}

func NewHub(source JobSource) *Hub {
	return &Hub{
		source:   source,
		interval: time.Second,
	}
}

// StreamJob pushes snapshots of one job until the client disconnects.
// After the job reaches a terminal state one final snapshot is sent and
// the stream closes.
func (h *Hub) StreamJob(c Conn, jobID string) {
	done, pings := readLoop(c)

	if _, err := h.source.GetStatus(jobID); err != nil {
		h.writeError(c, "Job not found")
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		job, err := h.source.GetStatus(jobID)
		if err != nil {
			// Deleted mid-stream.
			h.writeError(c, "Job not found")
			return
		}

		msg := model.WSJobSnapshot{Type: model.WSMessageTypeSnapshot, Job: job}
		if !h.write(c, msg) {
			return
		}
		if job.Status.Terminal() {
			c.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if !h.idle(c, ticker, done, pings) {
			return
		}
	}
}

// StreamAll pushes the full job list until the client disconnects.
func (h *Hub) StreamAll(c Conn) {
	done, pings := readLoop(c)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		msg := model.WSJobList{Type: model.WSMessageTypeJobList, Jobs: h.source.GetAll()}
		if !h.write(c, msg) {
			return
		}

		if !h.idle(c, ticker, done, pings) {
			return
		}
	}
}

// idle waits for the next tick while answering application-level pings.
// All writes stay on the stream goroutine; the connection does not
// support concurrent writers.
func (h *Hub) idle(c Conn, ticker *time.Ticker, done <-chan struct{}, pings <-chan struct{}) bool {
	for {
		select {
		case <-ticker.C:
			return true
		case <-done:
			return false
		case <-pings:
			if !h.write(c, model.WSMessage{Type: model.WSMessageTypePong}) {
				return false
			}
		}
	}
}

func (h *Hub) write(c Conn, msg interface{}) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[WebSocket] Failed to marshal message: %v", err)
		return false
	}
	if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
		return false
	}
	return true
}

func (h *Hub) writeError(c Conn, message string) {
	h.write(c, model.WSError{Type: model.WSMessageTypeError, Message: message})
	c.WriteMessage(websocket.CloseMessage, []byte{})
}

// readLoop drains client frames so close handshakes are processed. The
// done channel closes when the peer goes away; pings carries
// application-level ping requests for the stream goroutine to answer.
func readLoop(c Conn) (<-chan struct{}, <-chan struct{}) {
	done := make(chan struct{})
	pings := make(chan struct{}, 1)
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
					log.Printf("[WebSocket] Read error: %v", err)
				}
				return
			}
			var msg model.WSMessage
			if err := json.Unmarshal(message, &msg); err != nil {
				continue
			}
			if msg.Type == model.WSMessageTypePing {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()
	return done, pings
}
