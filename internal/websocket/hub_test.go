package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/anipipe/api/internal/model"
)

type stubSource struct {
	mu   sync.Mutex
	jobs map[string]model.Job
}

func newStubSource(jobs ...model.Job) *stubSource {
	s := &stubSource{jobs: make(map[string]model.Job)}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *stubSource) set(job model.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *stubSource) GetStatus(jobID string) (model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return model.Job{}, errors.New("job not found")
	}
	return job, nil
}

func (s *stubSource) GetAll() []model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	return out
}

// fakeConn records written frames; frames the client sends arrive on
// inbound, and closing inbound acts as the peer disconnecting.
type fakeConn struct {
	mu      sync.Mutex
	frames  [][]byte
	closed  bool
	inbound chan []byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte)}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	msg, ok := <-f.inbound
	if !ok {
		return 0, nil, errors.New("connection reset")
	}
	return websocket.TextMessage, msg, nil
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if messageType == websocket.CloseMessage {
		f.closed = true
		return nil
	}
	f.frames = append(f.frames, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) disconnect() { close(f.inbound) }

func (f *fakeConn) closeSent() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.frames))
	copy(out, f.frames)
	return out
}

func newTestHub(source JobSource) *Hub {
	h := NewHub(source)
	h.interval = 10 * time.Millisecond
	return h
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func waitReturn(t *testing.T, returned <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal(msg)
	}
}

func frameType(t *testing.T, frame []byte) string {
	t.Helper()
	var msg model.WSMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		t.Fatalf("failed to decode frame %q: %v", frame, err)
	}
	return msg.Type
}

func TestStreamJobClosesAfterTerminalSnapshot(t *testing.T) {
	source := newStubSource(model.Job{ID: "job-1", Status: model.JobStatusCompleted, Completed: true})
	conn := newFakeConn()
	defer conn.disconnect()

	newTestHub(source).StreamJob(conn, "job-1")

	frames := conn.written()
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	var snap model.WSJobSnapshot
	if err := json.Unmarshal(frames[0], &snap); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if snap.Type != model.WSMessageTypeSnapshot || snap.Job.ID != "job-1" {
		t.Errorf("got type=%q job=%q, want snapshot of job-1", snap.Type, snap.Job.ID)
	}
	if !conn.closeSent() {
		t.Error("terminal job must close the stream")
	}
}

func TestStreamJobStopsOnDisconnect(t *testing.T) {
	source := newStubSource(model.Job{ID: "job-1", Status: model.JobStatusRunning})
	conn := newFakeConn()

	returned := make(chan struct{})
	go func() {
		newTestHub(source).StreamJob(conn, "job-1")
		close(returned)
	}()

	waitFor(t, func() bool { return len(conn.written()) > 0 }, "no snapshot before disconnect")
	conn.disconnect()
	waitReturn(t, returned, "stream loop did not stop after disconnect")
}

func TestStreamJobEndsWhenJobTurnsTerminal(t *testing.T) {
	source := newStubSource(model.Job{ID: "job-1", Status: model.JobStatusRunning})
	conn := newFakeConn()
	defer conn.disconnect()

	returned := make(chan struct{})
	go func() {
		newTestHub(source).StreamJob(conn, "job-1")
		close(returned)
	}()

	waitFor(t, func() bool { return len(conn.written()) > 0 }, "no snapshot of running job")
	source.set(model.Job{ID: "job-1", Status: model.JobStatusCancelled, Completed: true})
	waitReturn(t, returned, "stream loop did not stop after job turned terminal")

	if !conn.closeSent() {
		t.Error("terminal job must close the stream")
	}
	frames := conn.written()
	var last model.WSJobSnapshot
	if err := json.Unmarshal(frames[len(frames)-1], &last); err != nil {
		t.Fatalf("failed to decode final snapshot: %v", err)
	}
	if last.Job.Status != model.JobStatusCancelled {
		t.Errorf("final snapshot status = %q, want cancelled", last.Job.Status)
	}
}

func TestStreamJobUnknownJob(t *testing.T) {
	conn := newFakeConn()
	defer conn.disconnect()

	newTestHub(newStubSource()).StreamJob(conn, "nope")

	frames := conn.written()
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	var werr model.WSError
	if err := json.Unmarshal(frames[0], &werr); err != nil {
		t.Fatalf("failed to decode error frame: %v", err)
	}
	if werr.Type != model.WSMessageTypeError || werr.Message != "Job not found" {
		t.Errorf("got type=%q message=%q, want error frame", werr.Type, werr.Message)
	}
	if !conn.closeSent() {
		t.Error("unknown job must close the stream")
	}
}

func TestStreamAllStopsOnDisconnect(t *testing.T) {
	source := newStubSource(
		model.Job{ID: "a", Status: model.JobStatusRunning},
		model.Job{ID: "b", Status: model.JobStatusCompleted},
	)
	conn := newFakeConn()

	returned := make(chan struct{})
	go func() {
		newTestHub(source).StreamAll(conn)
		close(returned)
	}()

	waitFor(t, func() bool { return len(conn.written()) > 0 }, "no job list before disconnect")
	var list model.WSJobList
	if err := json.Unmarshal(conn.written()[0], &list); err != nil {
		t.Fatalf("failed to decode job list: %v", err)
	}
	if list.Type != model.WSMessageTypeJobList || len(list.Jobs) != 2 {
		t.Errorf("got type=%q jobs=%d, want list of 2", list.Type, len(list.Jobs))
	}

	conn.disconnect()
	waitReturn(t, returned, "list loop did not stop after disconnect")
}

func TestStreamAnswersPing(t *testing.T) {
	source := newStubSource(model.Job{ID: "job-1", Status: model.JobStatusRunning})
	conn := newFakeConn()

	// Long interval so the only traffic after the first snapshot is the
	// ping/pong exchange.
	h := NewHub(source)
	h.interval = time.Hour

	returned := make(chan struct{})
	go func() {
		h.StreamJob(conn, "job-1")
		close(returned)
	}()

	waitFor(t, func() bool { return len(conn.written()) > 0 }, "no initial snapshot")
	conn.inbound <- []byte(`{"type":"ping"}`)
	waitFor(t, func() bool {
		for _, f := range conn.written() {
			if frameType(t, f) == model.WSMessageTypePong {
				return true
			}
		}
		return false
	}, "ping was never answered")

	conn.disconnect()
	waitReturn(t, returned, "stream loop did not stop after disconnect")
}
