package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Poller states. Completed and failed are terminal for the poller; failed
// here is a local verdict and does not imply the server-side job failed
// (the poller may simply have given up waiting).
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateGenerating State = "generating"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// ErrTimeout is reported when the polling ceiling elapses while the server
// job is still running. The server keeps working; only observation stops.
var ErrTimeout = errors.New("meal generation is taking longer than expected")

type PollerOptions struct {
	// Interval between status queries. Defaults to 2s.
	Interval time.Duration
	// Timeout is the overall wall-clock ceiling. Defaults to 5m.
	Timeout time.Duration

	OnProgress func(state State, progress int, step string)
	OnComplete func(totalMeals int)
	OnError    func(err error)
}

// Poller repeatedly queries job status until a terminal state, cancellation
// or timeout. One job per Start; Reset returns it to idle for reuse.
// Exactly one of OnComplete/OnError fires per started job.
type Poller struct {
	api  *Client
	opts PollerOptions

	mu       sync.Mutex
	state    State
	progress int
	jobID    uuid.UUID
	stop     chan struct{}
	running  bool
	finished bool
}

func NewPoller(api *Client, opts PollerOptions) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	return &Poller{
		api:   api,
		opts:  opts,
		state: StateIdle,
	}
}

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) Progress() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// Start begins polling for the given job. It fails if the poller is not
// idle; call Reset first to reuse it.
func (p *Poller) Start(jobID uuid.UUID) error {
	if jobID == uuid.Nil {
		return errors.New("job id required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("poller already running")
	}
	if p.state != StateIdle {
		return fmt.Errorf("poller is %s; call Reset before starting again", p.state)
	}
	p.jobID = jobID
	p.state = StateValidating
	p.progress = 0
	p.finished = false
	p.running = true
	p.stop = make(chan struct{})

	go p.loop(jobID, p.stop)
	return nil
}

// Cancel stops polling immediately. Safe to call multiple times and after
// completion; it fires no callbacks. Callers must invoke it on teardown so
// no ticker goroutine outlives the consumer.
func (p *Poller) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelLocked()
}

func (p *Poller) cancelLocked() {
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	p.running = false
}

// Reset cancels any active loop and returns the poller to idle, ready for a
// fresh Start. Used by retry and generate-again flows.
func (p *Poller) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelLocked()
	p.state = StateIdle
	p.progress = 0
	p.jobID = uuid.Nil
	p.finished = false
}

func (p *Poller) loop(jobID uuid.UUID, stop chan struct{}) {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()
	deadline := time.Now().Add(p.opts.Timeout)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		job, _, err := p.api.JobStatus(context.Background(), jobID)
		if err != nil {
			// Transient failure: a missed tick, not a verdict. Only the
			// overall ceiling turns silence into failure.
			if time.Now().After(deadline) {
				p.finishError(stop, ErrTimeout)
				return
			}
			continue
		}

		switch job.Status {
		case "completed":
			p.finishComplete(stop, job.TotalMealsGenerated)
			return
		case "failed":
			msg := job.ErrorMessage
			if msg == "" {
				msg = "meal generation failed"
			}
			p.finishError(stop, errors.New(msg))
			return
		}

		if time.Now().After(deadline) {
			p.finishError(stop, ErrTimeout)
			return
		}

		p.observe(stop, job)
	}
}

// observe folds one non-terminal server snapshot into the local model.
func (p *Poller) observe(stop chan struct{}, job *Job) {
	state := stateForServerProgress(job.Status, job.Progress)
	local := interpolateProgress(job.Progress, len(job.GroupRequests))

	p.mu.Lock()
	if p.stop != stop || p.finished {
		p.mu.Unlock()
		return
	}
	if local < p.progress {
		local = p.progress
	}
	p.state = state
	p.progress = local
	cb := p.opts.OnProgress
	p.mu.Unlock()

	if cb != nil {
		cb(state, local, job.CurrentStep)
	}
}

func (p *Poller) finishComplete(stop chan struct{}, totalMeals int) {
	p.mu.Lock()
	if p.stop != stop || p.finished {
		p.mu.Unlock()
		return
	}
	p.finished = true
	p.running = false
	p.stop = nil
	p.state = StateCompleted
	p.progress = 100
	cb := p.opts.OnComplete
	p.mu.Unlock()

	if cb != nil {
		cb(totalMeals)
	}
}

func (p *Poller) finishError(stop chan struct{}, err error) {
	p.mu.Lock()
	if p.stop != stop || p.finished {
		p.mu.Unlock()
		return
	}
	p.finished = true
	p.running = false
	p.stop = nil
	p.state = StateFailed
	cb := p.opts.OnError
	p.mu.Unlock()

	if cb != nil {
		cb(err)
	}
}

func stateForServerProgress(status string, progress int) State {
	if status == "pending" {
		return StateValidating
	}
	switch {
	case progress < 30:
		return StateValidating
	case progress < 80:
		return StateGenerating
	default:
		return StateProcessing
	}
}

// interpolateProgress smooths the server's coarse progress into a 20–80
// band, quantized by group count so the bar advances in per-group steps
// rather than mirroring the server's jumps.
func interpolateProgress(serverProgress int, groupCount int) int {
	if serverProgress <= 0 {
		return 5
	}
	if serverProgress >= 100 {
		return 100
	}
	if groupCount < 1 {
		groupCount = 1
	}
	if serverProgress < 30 {
		return 10
	}
	frac := float64(serverProgress-30) / 50.0 // generating band 30..80
	if frac > 1 {
		frac = 1
	}
	steps := int(frac * float64(groupCount))
	local := 20 + steps*60/groupCount
	if serverProgress >= 80 {
		local = 85
	}
	if local > 99 {
		local = 99
	}
	return local
}
