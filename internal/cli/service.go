package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/vmrelay/vmrelay/internal/caption"
	"github.com/vmrelay/vmrelay/internal/config"
	"github.com/vmrelay/vmrelay/internal/deliver"
	"github.com/vmrelay/vmrelay/internal/ffmpeg"
	"github.com/vmrelay/vmrelay/internal/logger"
	"github.com/vmrelay/vmrelay/internal/mailbox"
	"github.com/vmrelay/vmrelay/internal/metrics"
	"github.com/vmrelay/vmrelay/internal/relay"
	"github.com/vmrelay/vmrelay/internal/transcribe"
)

// service is one fully wired relay: poller, pipeline, archiver and the
// metrics they report to.
type service struct {
	cfg      config.Config
	log      *logger.Logger
	metrics  *metrics.Metrics
	poller   *mailbox.Poller
	archiver *mailbox.Archiver
	closers  []io.Closer
}

// newService builds every collaborator from cfg. Any failure is wrapped in
// ErrSetup and releases what was already opened.
func newService(ctx context.Context, env *Env, cfg config.Config, log *logger.Logger) (_ *service, err error) {
	s := &service{cfg: cfg, log: log, metrics: metrics.New()}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	tr, err := env.TranscriberFactory.NewTranscriber(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s transcriber: %w", ErrSetup, cfg.Transcription.Backend, err)
	}
	if c, ok := tr.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}

	bot, err := env.BotFactory.NewBot(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("%w: telegram: %w", ErrSetup, err)
	}

	store, err := env.LedgerFactory.NewLedger(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("%w: ledger: %w", ErrSetup, err)
	}
	s.closers = append(s.closers, store)

	agent := deliver.NewAgent(bot, cfg.Telegram.ChatID,
		deliver.WithParseMode(cfg.Telegram.ParseMode),
		deliver.WithMaxAttempts(cfg.Delivery.MaxAttempts),
		deliver.WithMaxBackoff(cfg.Delivery.MaxBackoff),
		deliver.WithPartDelay(cfg.Delivery.PartDelay),
		deliver.WithLogger(log.WithComponent("deliver")),
		deliver.WithAttemptHook(s.metrics.DeliveryAttempt),
	)

	pipeline, err := newPipeline(env, cfg, tr, agent, log,
		relay.WithChunkHook(s.metrics.ObserveChunks),
		relay.WithPartHook(s.metrics.PartFinished),
	)
	if err != nil {
		return nil, err
	}

	dialer := env.DialerFactory.NewDialer(cfg.IMAP)
	s.poller = mailbox.NewPoller(dialer, pipeline.Handle,
		mailbox.WithMailbox(cfg.IMAP.Mailbox),
		mailbox.WithSubjectFilter(cfg.IMAP.SubjectFilter),
		mailbox.WithInterval(cfg.Poll.Interval),
		mailbox.WithLedger(store),
		mailbox.WithLogger(log.WithComponent("mailbox")),
		mailbox.WithCycleHook(func(c mailbox.Cycle) {
			s.metrics.ObserveCycle(c.Result(), c.Duration, c.Processed, c.Skipped, c.Failed)
		}),
	)
	s.archiver = mailbox.NewArchiver(dialer, cfg.IMAP.Mailbox, log.WithComponent("archive"))

	return s, nil
}

// status reports the poller's last cycle for /healthz.
func (s *service) status() metrics.Status {
	last := s.poller.LastCycle()
	st := metrics.Status{
		LastCycle:  last.Started,
		LastResult: last.Result(),
		Interval:   s.poller.Interval().String(),
	}
	if last.Started.IsZero() {
		st.LastResult = ""
	}
	if last.Err != nil {
		st.LastError = last.Err.Error()
	}
	return st
}

// Close releases the transcriber and the ledger.
func (s *service) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// newPipeline builds the relay pipeline around tr. FFmpeg is optional:
// without it, audio the backend cannot take as-is goes out untranscribed.
// A configured ffmpeg.path that does not exist is a setup error.
func newPipeline(env *Env, cfg config.Config, tr transcribe.Transcriber, agent *deliver.Agent, log *logger.Logger, extra ...relay.Option) (*relay.Pipeline, error) {
	policy, err := caption.ParsePolicy(cfg.Caption.Policy)
	if err != nil {
		return nil, err
	}
	chunker := caption.NewChunker(
		caption.WithLimit(cfg.Telegram.CaptionLimit),
		caption.WithMargin(cfg.Caption.Margin),
		caption.WithPolicy(policy),
	)

	opts := []relay.Option{
		relay.WithSegmentCeiling(cfg.Transcription.Segment),
		relay.WithParallel(cfg.Transcription.Parallel),
		relay.WithLogger(log.WithComponent("relay")),
	}

	ffmpegPath, err := env.FFmpegResolver.Resolve(cfg.FFmpeg.Path)
	switch {
	case err == nil:
		opts = append(opts, relay.WithConverter(ffmpeg.NewConverter(ffmpegPath, ffmpeg.NewExecutor())))
	case cfg.FFmpeg.Path != "":
		return nil, fmt.Errorf("%w: %w", ErrSetup, err)
	default:
		log.Warn("ffmpeg not found, audio needing conversion will not be transcribed", logger.Fields(logger.FieldError, err))
	}

	opts = append(opts, extra...)
	if agent == nil {
		return relay.New(tr, chunker, nil, opts...), nil
	}
	return relay.New(tr, chunker, agent, opts...), nil
}
