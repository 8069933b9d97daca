package pipeline

import (
	"errors"
	"sync"
)

// ErrCancelled is returned from a checkpoint once Cancel has been observed.
var ErrCancelled = errors.New("job cancelled")

// jobControl is the cooperative pause/cancel signal for one job. It is
// handed to the background task at start; pause and cancel from the API
// side are observed only at checkpoints, never mid-transfer.
type jobControl struct {
	mu        sync.Mutex
	cond      *sync.Cond
	paused    bool
	cancelled bool
}

func newJobControl() *jobControl {
	c := &jobControl{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Checkpoint blocks while the job is paused and returns ErrCancelled once
// the job has been cancelled. The wait is condition-based, not a spin.
func (c *jobControl) Checkpoint() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.paused && !c.cancelled {
		c.cond.Wait()
	}
	if c.cancelled {
		return ErrCancelled
	}
	return nil
}

func (c *jobControl) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

func (c *jobControl) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
	c.cond.Broadcast()
}

// Cancel also wakes a task parked in Checkpoint, so cancelling a paused
// job terminates it instead of leaving it blocked.
func (c *jobControl) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = true
	c.cond.Broadcast()
}
