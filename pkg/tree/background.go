package tree

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// WorkerState represents the current state of the background parser.
type WorkerState int

const (
	// WorkerIdle means no parse is running.
	WorkerIdle WorkerState = iota
	// WorkerProcessing means a parse is running; new jobs queue behind it.
	WorkerProcessing
	// WorkerStopped means the parser has been stopped.
	WorkerStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerProcessing:
		return "processing"
	case WorkerStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// WorkerError wraps a background failure with phase and retry context.
// It triggers an inline re-parse and is never surfaced to callers.
type WorkerError struct {
	Phase   string    // "parse", "stopped"
	Cause   error     // The underlying error
	Time    time.Time // When the error occurred
	Retries int       // Consecutive failures so far
}

func (e WorkerError) Error() string {
	return fmt.Sprintf("%s failed: %v (retries: %d)", e.Phase, e.Cause, e.Retries)
}

func (e WorkerError) Unwrap() error {
	return e.Cause
}

type parseReply func(f *fragment, perr error, werr *WorkerError)

type parseJob struct {
	req   parseRequest
	reply parseReply
}

// BackgroundParser parses large load payloads off the owner goroutine. One
// worker goroutine runs at a time, guarded by the busy flag; jobs submitted
// while it is busy wait in a FIFO queue, so replies arrive in dispatch order.
type BackgroundParser struct {
	mu    sync.Mutex
	state WorkerState
	busy  bool
	queue []parseJob

	lastError  *WorkerError
	errorCount int
	processed  int

	parse  func(context.Context, parseRequest) (*fragment, error)
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newBackgroundParser(logger *slog.Logger) *BackgroundParser {
	ctx, cancel := context.WithCancel(context.Background())
	return &BackgroundParser{
		state:  WorkerIdle,
		parse:  parsePayload,
		logger: logger.With(slog.String("worker", "parser")),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit queues a parse. It returns false when the parser is stopped, in
// which case the caller parses inline.
func (p *BackgroundParser) Submit(req parseRequest, reply parseReply) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == WorkerStopped {
		return false
	}
	p.queue = append(p.queue, parseJob{req: req, reply: reply})
	if p.busy {
		return true
	}
	p.busy = true
	p.state = WorkerProcessing
	p.wg.Add(1)
	go p.run()
	return true
}

// run drains the queue in FIFO order, then clears the busy flag.
func (p *BackgroundParser) run() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		if len(p.queue) == 0 || p.state == WorkerStopped {
			p.busy = false
			if p.state != WorkerStopped {
				p.state = WorkerIdle
			}
			p.mu.Unlock()
			return
		}
		job := p.queue[0]
		p.queue[0] = parseJob{}
		p.queue = p.queue[1:]
		p.mu.Unlock()

		start := time.Now()
		var frag *fragment
		var perr error
		werr := p.safeCompute("parse", func() error {
			frag, perr = p.parse(p.ctx, job.req)
			return p.ctx.Err()
		})
		backgroundParseDuration.Observe(time.Since(start).Seconds())
		p.recordError(werr)
		if werr == nil {
			p.logger.Debug("background parse done",
				slog.String("node", job.req.target),
				slog.Int("records", job.req.payload.Len()),
				since(start),
			)
		}
		job.reply(frag, perr, werr)
	}
}

// Stop halts the parser. Queued jobs are answered with a WorkerError so
// their owners can fall back. Stop is idempotent.
func (p *BackgroundParser) Stop() {
	p.mu.Lock()
	if p.state == WorkerStopped {
		p.mu.Unlock()
		return
	}
	p.state = WorkerStopped
	queued := p.queue
	p.queue = nil
	p.mu.Unlock()

	p.cancel()
	for _, job := range queued {
		job.reply(nil, nil, &WorkerError{Phase: "stopped", Cause: ErrDestroyed, Time: time.Now()})
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		p.logger.Warn("warning: background parser did not stop in time")
	}
}

// State returns the current worker state.
func (p *BackgroundParser) State() WorkerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Queued returns the number of jobs waiting behind the running one.
func (p *BackgroundParser) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Processed returns how many jobs completed without a worker error.
func (p *BackgroundParser) Processed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processed
}

// LastError returns the most recent worker error (nil if the last job
// succeeded).
func (p *BackgroundParser) LastError() *WorkerError {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastError
}

// safeCompute executes fn and recovers from any panics.
func (p *BackgroundParser) safeCompute(phase string, fn func() error) *WorkerError {
	var result *WorkerError
	func() {
		defer func() {
			if r := recover(); r != nil {
				result = &WorkerError{
					Phase: phase,
					Cause: fmt.Errorf("panic: %v\n%s", r, debug.Stack()),
					Time:  time.Now(),
				}
			}
		}()
		if err := fn(); err != nil {
			result = &WorkerError{
				Phase: phase,
				Cause: err,
				Time:  time.Now(),
			}
		}
	}()
	return result
}

func (p *BackgroundParser) recordError(err *WorkerError) {
	p.mu.Lock()
	p.lastError = err
	if err != nil {
		p.errorCount++
		err.Retries = p.errorCount
	} else {
		p.errorCount = 0
		p.processed++
	}
	p.mu.Unlock()
}
