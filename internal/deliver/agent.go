// Package deliver sends caption units to a Telegram chat, one message per
// unit, retrying transient faults with capped exponential backoff and
// waiting out rate limits exactly as long as Telegram asks.
package deliver

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vmrelay/vmrelay/internal/caption"
	"github.com/vmrelay/vmrelay/internal/logger"
)

// Default retry parameters.
const (
	DefaultMaxAttempts = 5
	DefaultMaxBackoff  = 60 * time.Second
)

// sender is the part of *tgbotapi.BotAPI the agent needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

var _ sender = (*tgbotapi.BotAPI)(nil)

// Outcome reports how one unit ended.
type Outcome struct {
	Index    int
	State    State
	Attempts int   // Send calls made, including rate-limited ones.
	Err      error // Last error; nil when Delivered.
}

// Agent delivers units to one chat.
type Agent struct {
	bot         sender
	chatID      int64
	parseMode   string
	maxAttempts int
	maxBackoff  time.Duration
	partDelay   time.Duration
	log         *logger.Logger

	sleep     func(ctx context.Context, d time.Duration) error
	jitter    func() float64
	onAttempt func(result string)
}

// Option configures an Agent.
type Option func(*Agent)

// WithParseMode sets the Telegram parse mode for captions. Empty sends plain text.
func WithParseMode(mode string) Option {
	return func(a *Agent) { a.parseMode = mode }
}

// WithMaxAttempts bounds transient-fault attempts per unit.
func WithMaxAttempts(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// WithMaxBackoff caps a single backoff sleep.
func WithMaxBackoff(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.maxBackoff = d
		}
	}
}

// WithPartDelay pauses between consecutive units.
func WithPartDelay(d time.Duration) Option {
	return func(a *Agent) {
		if d >= 0 {
			a.partDelay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.log = l
		}
	}
}

// WithAttemptHook is called after every send with "delivered", "transient",
// "rate_limited" or "permanent".
func WithAttemptHook(fn func(result string)) Option {
	return func(a *Agent) { a.onAttempt = fn }
}

// NewAgent creates an Agent sending to chatID through bot.
func NewAgent(bot sender, chatID int64, opts ...Option) *Agent {
	a := &Agent{
		bot:         bot,
		chatID:      chatID,
		maxAttempts: DefaultMaxAttempts,
		maxBackoff:  DefaultMaxBackoff,
		log:         logger.Nop(),
		sleep:       sleepContext,
		jitter:      rand.Float64,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Deliver sends every unit in order, each with the attachment when src is
// non-nil. A unit that ends Abandoned is logged and the next unit is sent
// anyway; the returned outcomes are in unit order.
func (a *Agent) Deliver(ctx context.Context, units []caption.Unit, src AudioSource) []Outcome {
	outcomes := make([]Outcome, 0, len(units))
	for i, u := range units {
		if i > 0 && a.partDelay > 0 {
			if err := a.sleep(ctx, a.partDelay); err != nil {
				outcomes = append(outcomes, Outcome{Index: u.Index, State: Abandoned, Err: err})
				continue
			}
		}
		outcomes = append(outcomes, a.deliverUnit(ctx, u, src))
	}
	return outcomes
}

// deliverUnit runs the retry state machine for one unit.
func (a *Agent) deliverUnit(ctx context.Context, u caption.Unit, src AudioSource) Outcome {
	log := a.log.WithFields(logger.Fields(logger.FieldPart, fmt.Sprintf("%d/%d", u.Index+1, u.Total)))
	st := attemptState{state: Pending}

	for {
		if err := ctx.Err(); err != nil {
			return a.abandon(log, u, &st, err, "context done")
		}

		st.state = Sending
		st.sends++
		err := a.sendOnce(u, src)
		if err == nil {
			st.state = Delivered
			a.observe("delivered")
			log.Info("part delivered", logger.Fields(logger.FieldAttempt, st.sends))
			return Outcome{Index: u.Index, State: st.state, Attempts: st.sends}
		}

		kind, retryAfter := classify(err)
		a.observe(kind.String())

		switch kind {
		case faultRateLimit:
			st.state = Retrying
			log.Warn("rate limited", logger.Fields(
				logger.FieldAttempt, st.attempt,
				"retry_after", retryAfter.String(),
			))
			if serr := a.sleep(ctx, retryAfter); serr != nil {
				return a.abandon(log, u, &st, serr, "context done")
			}

		case faultTransient:
			st.attempt++
			if st.attempt >= a.maxAttempts {
				return a.abandon(log, u, &st, err, "max attempts reached")
			}
			st.state = Retrying
			delay := a.backoff(st.attempt)
			log.Warn("transient send failure", logger.Fields(
				logger.FieldAttempt, st.attempt,
				logger.FieldError, err,
				"backoff", delay.String(),
			))
			if serr := a.sleep(ctx, delay); serr != nil {
				return a.abandon(log, u, &st, serr, "context done")
			}

		default:
			return a.abandon(log, u, &st, err, "permanent rejection")
		}
	}
}

func (a *Agent) abandon(log *logger.Logger, u caption.Unit, st *attemptState, err error, reason string) Outcome {
	st.state = Abandoned
	log.Error("part abandoned", logger.Fields(
		"reason", reason,
		logger.FieldAttempt, st.attempt,
		logger.FieldError, err,
	))
	return Outcome{Index: u.Index, State: st.state, Attempts: st.sends, Err: err}
}

// backoff returns min(maxBackoff, 2^attempt + jitter*attempt) seconds.
func (a *Agent) backoff(attempt int) time.Duration {
	secs := math.Pow(2, float64(attempt)) + a.jitter()*float64(attempt)
	d := time.Duration(secs * float64(time.Second))
	return min(d, a.maxBackoff)
}

// sendOnce opens the attachment, sends it with the caption and closes it
// before returning, so no reader outlives an attempt.
func (a *Agent) sendOnce(u caption.Unit, src AudioSource) error {
	if src == nil {
		msg := tgbotapi.NewMessage(a.chatID, u.Caption())
		msg.ParseMode = a.parseMode
		_, err := a.bot.Send(msg)
		return err
	}

	rc, err := src.Open()
	if err != nil {
		return fmt.Errorf("open attachment: %w", err)
	}
	defer func() { _ = rc.Close() }()

	file := tgbotapi.FileReader{Name: src.Name(), Reader: rc}

	var msg tgbotapi.Chattable
	if isVoice(src) {
		v := tgbotapi.NewVoice(a.chatID, file)
		v.Caption = u.Caption()
		v.ParseMode = a.parseMode
		msg = v
	} else {
		au := tgbotapi.NewAudio(a.chatID, file)
		au.Caption = u.Caption()
		au.ParseMode = a.parseMode
		msg = au
	}

	_, err = a.bot.Send(msg)
	return err
}

func (a *Agent) observe(result string) {
	if a.onAttempt != nil {
		a.onAttempt(result)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
