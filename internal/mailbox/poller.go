// Package mailbox watches an IMAP inbox for PBX voicemail notifications.
//
// Every poll cycle opens a fresh connection, searches for unseen messages
// whose subject carries the configured keyword, and hands each parsed
// message to a Handler. A message is flagged \Seen only after its handler
// returned, so a crash mid-pipeline leaves it eligible for the next cycle.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vmrelay/vmrelay/internal/ledger"
	"github.com/vmrelay/vmrelay/internal/logger"
)

// Poller defaults.
const (
	DefaultInterval = 60 * time.Second
	MaxInterval     = 60 * time.Second
	DefaultMailbox  = "INBOX"
	DefaultSubject  = "PBX"
)

// Handler runs the relay pipeline for one message. A returned error is
// logged; the message is still flagged \Seen unless the context ended.
type Handler func(ctx context.Context, vm Voicemail) error

// Cycle summarizes one poll cycle.
type Cycle struct {
	Started   time.Time
	Duration  time.Duration
	Found     int // unseen messages matching the filter
	Processed int // handed to the handler
	Skipped   int // already in the ledger
	Failed    int // fetch, parse or handler failures
	Err       error
}

// Result is "ok" for a cycle that reached the search step, "error" otherwise.
func (c Cycle) Result() string {
	if c.Err != nil {
		return "error"
	}
	return "ok"
}

// Poller drives the poll loop.
type Poller struct {
	dialer   Dialer
	handler  Handler
	store    ledger.Store
	mailbox  string
	subject  string
	interval time.Duration
	log      *logger.Logger
	onCycle  func(Cycle)
	now      func() time.Time

	mu   sync.Mutex
	last Cycle
}

// Option configures a Poller.
type Option func(*Poller)

// WithMailbox sets the folder to watch.
func WithMailbox(name string) Option {
	return func(p *Poller) {
		if name != "" {
			p.mailbox = name
		}
	}
}

// WithSubjectFilter sets the subject keyword. Empty matches every unseen message.
func WithSubjectFilter(keyword string) Option {
	return func(p *Poller) { p.subject = keyword }
}

// WithInterval sets the poll interval. Values above MaxInterval are clamped.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = min(d, MaxInterval)
		}
	}
}

// WithLedger sets the processed-message store.
func WithLedger(s ledger.Store) Option {
	return func(p *Poller) {
		if s != nil {
			p.store = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.log = l
		}
	}
}

// WithCycleHook is called after every cycle.
func WithCycleHook(fn func(Cycle)) Option {
	return func(p *Poller) { p.onCycle = fn }
}

// NewPoller creates a Poller. Without WithLedger it keeps an in-memory ledger.
func NewPoller(dialer Dialer, handler Handler, opts ...Option) *Poller {
	p := &Poller{
		dialer:   dialer,
		handler:  handler,
		mailbox:  DefaultMailbox,
		subject:  DefaultSubject,
		interval: DefaultInterval,
		log:      logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.store == nil {
		p.store = ledger.NewMemoryStore(ledger.DefaultTTL)
	}
	return p
}

// Interval returns the effective poll interval.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// LastCycle returns the most recent completed cycle. Safe for concurrent use.
func (p *Poller) LastCycle() Cycle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Run polls until ctx is done. Cycle errors are logged and never end the loop.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("poller started", logger.Fields(
		"mailbox", p.mailbox,
		"subject", p.subject,
		"interval", p.interval.String(),
	))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("poller stopped")
			return nil
		case <-timer.C:
		}

		_, _ = p.RunOnce(ctx)
		timer.Reset(p.interval)
	}
}

// RunOnce performs exactly one cycle. The returned error is the
// connection-level fault that aborted the cycle, if any; per-message
// faults are only counted.
func (p *Poller) RunOnce(ctx context.Context) (Cycle, error) {
	cyc := Cycle{Started: p.now()}
	cyc.Err = p.cycle(ctx, &cyc)
	cyc.Duration = p.now().Sub(cyc.Started)

	fields := logger.Fields(
		"found", cyc.Found,
		"processed", cyc.Processed,
		"skipped", cyc.Skipped,
		"failed", cyc.Failed,
		logger.FieldDuration, cyc.Duration.Milliseconds(),
	)
	if cyc.Err != nil {
		p.log.WithError(cyc.Err).Error("poll cycle aborted", fields)
	} else if cyc.Found > 0 {
		p.log.Info("poll cycle finished", fields)
	} else {
		p.log.Debug("poll cycle finished", fields)
	}

	p.mu.Lock()
	p.last = cyc
	p.mu.Unlock()
	if p.onCycle != nil {
		p.onCycle(cyc)
	}
	return cyc, cyc.Err
}

func (p *Poller) cycle(ctx context.Context, cyc *Cycle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sess, err := p.dialer.Dial(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Logout(); err != nil {
			p.log.Debug("logout failed", logger.Fields(logger.FieldError, err))
		}
	}()

	if err := sess.Select(p.mailbox); err != nil {
		return fmt.Errorf("select %s: %w", p.mailbox, err)
	}
	uids, err := sess.SearchUnseen(p.subject)
	if err != nil {
		return fmt.Errorf("search %s: %w", p.mailbox, err)
	}
	cyc.Found = len(uids)

	for _, uid := range uids {
		if ctx.Err() != nil {
			break
		}
		switch p.process(ctx, sess, uid) {
		case outcomeProcessed:
			cyc.Processed++
		case outcomeSkipped:
			cyc.Skipped++
		case outcomeFailed:
			cyc.Failed++
		}
	}
	return nil
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (p *Poller) process(ctx context.Context, sess Session, uid uint32) outcome {
	log := p.log.WithFields(logger.Fields(logger.FieldUID, uid))

	raw, err := sess.Fetch(uid)
	if err != nil {
		// Left unseen; the next cycle fetches it again.
		log.Error("fetch failed", logger.Fields(logger.FieldError, err))
		return outcomeFailed
	}

	vm, err := Parse(uid, raw)
	if err != nil {
		log.Error("unparseable message, flagging seen", logger.Fields(logger.FieldError, err))
		p.markSeen(sess, uid, log)
		return outcomeFailed
	}
	log = log.WithFields(logger.Fields(logger.FieldMessageID, vm.MessageID))

	seen, err := p.store.Seen(ctx, vm.Key())
	if err != nil {
		log.Warn("ledger lookup failed", logger.Fields(logger.FieldError, err))
	}
	if seen {
		log.Info("already relayed, flagging seen")
		p.markSeen(sess, uid, log)
		return outcomeSkipped
	}

	result := outcomeProcessed
	if err := p.handler(ctx, vm); err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			log.Warn("interrupted, leaving unseen", logger.Fields(logger.FieldError, err))
			return outcomeFailed
		}
		log.Error("pipeline failed", logger.Fields(logger.FieldError, err))
		result = outcomeFailed
	}

	if err := p.store.Mark(ctx, vm.Key()); err != nil {
		log.Warn("ledger mark failed", logger.Fields(logger.FieldError, err))
	}
	p.markSeen(sess, uid, log)
	return result
}

func (p *Poller) markSeen(sess Session, uid uint32, log *logger.Logger) {
	if err := sess.MarkSeen(uid); err != nil {
		log.Error("flag seen failed", logger.Fields(logger.FieldError, err))
	}
}
