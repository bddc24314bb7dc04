package interrupt

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ExitInterrupt is the exit code for a forced shutdown (130 = 128 + SIGINT).
const ExitInterrupt = 130

// forceWindow is how close a second signal must follow the first to skip the drain.
const forceWindow = 5 * time.Second

const (
	drainMessage = "Shutting down after the current message. Press Ctrl+C again to force."
	forceMessage = "\nForced shutdown."
)

// Handler turns SIGINT/SIGTERM into a graceful stop for the relay.
// The first signal cancels the context so the poller finishes the message it
// is working on. A second signal within forceWindow exits immediately.
type Handler struct {
	mu          sync.Mutex
	first       time.Time
	interrupted bool
	stopped     bool
	cancel      context.CancelFunc
	done        chan struct{}

	exitFunc func(int)
	nowFunc  func() time.Time
	stderr   io.Writer
}

// Options holds injectable dependencies for testing.
type Options struct {
	SigCh    <-chan os.Signal
	ExitFunc func(int)
	NowFunc  func() time.Time
	// Stderr must be safe for concurrent writes.
	Stderr io.Writer
}

// NewHandler listens for SIGINT and SIGTERM.
// The returned context is canceled on the first signal.
func NewHandler(parent context.Context) (*Handler, context.Context) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return NewHandlerWithOptions(parent, Options{SigCh: sigCh})
}

// NewHandlerWithOptions creates a handler with injectable dependencies.
func NewHandlerWithOptions(parent context.Context, opts Options) (*Handler, context.Context) {
	ctx, cancel := context.WithCancel(parent)

	h := &Handler{
		cancel:   cancel,
		done:     make(chan struct{}),
		exitFunc: opts.ExitFunc,
		nowFunc:  opts.NowFunc,
		stderr:   opts.Stderr,
	}
	if h.exitFunc == nil {
		h.exitFunc = os.Exit
	}
	if h.nowFunc == nil {
		h.nowFunc = time.Now
	}
	if h.stderr == nil {
		h.stderr = os.Stderr
	}

	if opts.SigCh != nil {
		go h.listen(opts.SigCh)
	}
	return h, ctx
}

func (h *Handler) listen(sigCh <-chan os.Signal) {
	for {
		select {
		case <-h.done:
			return
		case _, ok := <-sigCh:
			if !ok {
				return
			}
			if h.handle() {
				return
			}
		}
	}
}

// handle processes one signal and reports whether listening should end.
func (h *Handler) handle() bool {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return true
	}
	now := h.nowFunc()

	if !h.interrupted {
		h.interrupted = true
		h.first = now
		h.mu.Unlock()
		fmt.Fprintln(h.stderr, drainMessage)
		h.cancel()
		return false
	}

	if now.Sub(h.first) > forceWindow {
		// Too late to count as a double press; restart the window.
		h.first = now
		h.mu.Unlock()
		fmt.Fprintln(h.stderr, drainMessage)
		return false
	}
	h.mu.Unlock()

	fmt.Fprintln(h.stderr, forceMessage)
	h.exitFunc(ExitInterrupt)
	return true
}

// WasInterrupted reports whether at least one signal was received.
func (h *Handler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}

// Stop releases the signal handlers. Safe to call more than once.
func (h *Handler) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	signal.Reset(syscall.SIGINT, syscall.SIGTERM)
	close(h.done)
	h.cancel()
}
