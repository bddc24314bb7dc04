// Package relay runs one voicemail through the whole pipeline: decode and
// segment the audio, transcribe every chunk, build the caption parts and
// deliver them with the original attachment.
package relay

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/vmrelay/vmrelay/internal/audio"
	"github.com/vmrelay/vmrelay/internal/caption"
	"github.com/vmrelay/vmrelay/internal/deliver"
	"github.com/vmrelay/vmrelay/internal/logger"
	"github.com/vmrelay/vmrelay/internal/mailbox"
	"github.com/vmrelay/vmrelay/internal/transcribe"
)

// converter re-encodes audio the transcriber cannot take as-is.
type converter interface {
	ToLinear16(ctx context.Context, in []byte, sampleRate int) ([]byte, error)
}

// deliverer sends caption units with an optional attachment.
type deliverer interface {
	Deliver(ctx context.Context, units []caption.Unit, src deliver.AudioSource) []deliver.Outcome
}

var _ deliverer = (*deliver.Agent)(nil)

// Result describes one processed voicemail.
type Result struct {
	RunID        string
	Chunks       int
	FailedChunks int
	Transcript   string
	Outcomes     []deliver.Outcome
}

// Delivered returns how many parts reached the chat.
func (r Result) Delivered() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State == deliver.Delivered {
			n++
		}
	}
	return n
}

// Pipeline processes voicemails one at a time.
type Pipeline struct {
	transcriber transcribe.Transcriber
	chunker     *caption.Chunker
	delivery    deliverer
	converter   converter
	ceiling     time.Duration
	parallel    int
	tempDir     string
	log         *logger.Logger

	onChunks func(ok, failed int)
	onPart   func(state string)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConverter enables FFmpeg normalization for audio that fails preflight.
func WithConverter(c converter) Option {
	return func(p *Pipeline) { p.converter = c }
}

// WithSegmentCeiling sets the maximum chunk duration.
func WithSegmentCeiling(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.ceiling = d
		}
	}
}

// WithParallel bounds concurrent transcription calls.
func WithParallel(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.parallel = n
		}
	}
}

// WithTempDir sets where attachments are staged. Empty uses os.TempDir.
func WithTempDir(dir string) Option {
	return func(p *Pipeline) { p.tempDir = dir }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithChunkHook is called once per voicemail with the transcription tally.
func WithChunkHook(fn func(ok, failed int)) Option {
	return func(p *Pipeline) { p.onChunks = fn }
}

// WithPartHook is called with the final state of every caption part.
func WithPartHook(fn func(state string)) Option {
	return func(p *Pipeline) { p.onPart = fn }
}

// New creates a Pipeline.
func New(t transcribe.Transcriber, chunker *caption.Chunker, d deliverer, opts ...Option) *Pipeline {
	p := &Pipeline{
		transcriber: t,
		chunker:     chunker,
		delivery:    d,
		ceiling:     audio.DefaultCeiling,
		parallel:    1,
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.chunker == nil {
		p.chunker = caption.NewChunker()
	}
	return p
}

// Handle adapts Process to mailbox.Handler. It fails only when nothing
// was delivered or the context ended.
func (p *Pipeline) Handle(ctx context.Context, vm mailbox.Voicemail) error {
	res, err := p.Process(ctx, vm)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if len(res.Outcomes) > 0 && res.Delivered() == 0 {
		last := res.Outcomes[len(res.Outcomes)-1].Err
		return fmt.Errorf("%w: %d parts abandoned: %w", ErrUndelivered, len(res.Outcomes), last)
	}
	return nil
}

// Process transcribes and delivers vm. Transcription faults degrade to an
// empty transcript and a failed temp file falls back to the in-memory
// attachment, so every voicemail reaches delivery.
func (p *Pipeline) Process(ctx context.Context, vm mailbox.Voicemail) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	log := p.log.WithFields(logger.Fields(
		logger.FieldRunID, res.RunID,
		logger.FieldUID, vm.UID,
		logger.FieldMessageID, vm.MessageID,
	))
	started := time.Now()

	var src deliver.AudioSource
	if vm.HasAudio() {
		path, cleanup, err := p.stage(vm)
		if err != nil {
			log.Warn("staging failed, sending attachment from memory", logger.Fields(logger.FieldError, err))
			src = deliver.BytesSource{Data: vm.Audio, FileName: vm.AudioName, MIME: vm.AudioType}
		} else {
			defer cleanup()
			src = deliver.FileSource{Path: path, FileName: vm.AudioName, MIME: vm.AudioType}
		}

		tr, err := p.transcribe(ctx, vm.Audio, log)
		if err != nil {
			log.Error("audio not transcribable, sending without transcript", logger.Fields(logger.FieldError, err))
		}
		res.Transcript, res.Chunks, res.FailedChunks = tr.Text, tr.Chunks, tr.Failed
	} else {
		log.Warn("voicemail has no audio part")
	}

	units := p.chunker.Units(vm.Subject, vm.Body, res.Transcript)
	res.Outcomes = p.delivery.Deliver(ctx, units, src)
	for _, o := range res.Outcomes {
		if p.onPart != nil {
			p.onPart(o.State.String())
		}
	}

	log.Info("voicemail relayed", logger.Fields(
		"chunks", res.Chunks,
		"failed_chunks", res.FailedChunks,
		"parts", len(units),
		"delivered", res.Delivered(),
		logger.FieldDuration, time.Since(started).Milliseconds(),
	))
	return res, nil
}

// Transcript is the text recovered from one attachment.
type Transcript struct {
	Text   string
	Chunks int
	Failed int
}

// Transcribe decodes data, segments it and transcribes every chunk. It
// fails only when the audio cannot be decoded or normalized; failed chunks
// leave gaps in the text and are counted in Failed.
func (p *Pipeline) Transcribe(ctx context.Context, data []byte) (Transcript, error) {
	return p.transcribe(ctx, data, p.log)
}

func (p *Pipeline) transcribe(ctx context.Context, data []byte, log *logger.Logger) (Transcript, error) {
	clip, err := p.prepare(ctx, data, log)
	if err != nil {
		return Transcript{}, err
	}
	if clip.Empty() {
		log.Warn("audio is empty")
		return Transcript{}, nil
	}

	fragments := transcribe.TranscribeAll(ctx, audio.Segments(clip, p.ceiling), p.transcriber, p.parallel, log)
	failed := transcribe.Failed(fragments)
	if p.onChunks != nil {
		p.onChunks(len(fragments)-failed, failed)
	}
	if failed > 0 {
		log.Warn("partial transcript", logger.Fields("failed_chunks", failed, "chunks", len(fragments)))
	}
	return Transcript{
		Text:   transcribe.Combine(fragments),
		Chunks: len(fragments),
		Failed: failed,
	}, nil
}

// prepare decodes the attachment and checks it against the transcriber's
// format, re-encoding through FFmpeg when that is configured.
func (p *Pipeline) prepare(ctx context.Context, data []byte, log *logger.Logger) (audio.Clip, error) {
	want := p.transcriber.Format()

	clip, err := audio.Decode(data)
	if err == nil {
		err = audio.Preflight(clip.Format, want)
	}
	if err == nil {
		return clip, nil
	}
	if p.converter == nil {
		return audio.Clip{}, err
	}

	log.Info("normalizing audio", logger.Fields("reason", err.Error(), "target", want.String()))
	pcm, cerr := p.converter.ToLinear16(ctx, data, want.SampleRate)
	if cerr != nil {
		return audio.Clip{}, errors.Join(err, cerr)
	}
	return audio.Clip{PCM: pcm, Format: audio.Linear16(want.SampleRate)}, nil
}

// stage writes the attachment to a temp file so every delivery attempt can
// reopen it. The cleanup func removes the file.
func (p *Pipeline) stage(vm mailbox.Voicemail) (string, func(), error) {
	ext := filepath.Ext(vm.AudioName)
	if ext == "" {
		if exts, err := mime.ExtensionsByType(vm.AudioType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}

	f, err := os.CreateTemp(p.tempDir, "vmrelay-*"+ext)
	if err != nil {
		return "", nil, fmt.Errorf("stage attachment: %w", err)
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }

	if _, err := f.Write(vm.Audio); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("stage attachment: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("stage attachment: %w", err)
	}
	return path, cleanup, nil
}
