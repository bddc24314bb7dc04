package transcribe

import (
	"context"
	"cmp"
	"iter"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vmrelay/vmrelay/internal/audio"
	"github.com/vmrelay/vmrelay/internal/logger"
)

// MaxRecommendedParallel is the recommended upper limit for concurrent engine calls.
// Higher values may trigger rate limiting.
const MaxRecommendedParallel = 10

// Fragment is the transcript of one chunk.
// A failed chunk has empty Text and a non-nil Err.
type Fragment struct {
	Index int
	Text  string
	Err   error
}

// TranscribeAll transcribes every chunk with at most maxParallel calls in flight.
// Fragments are returned in chunk order regardless of completion order.
//
// A failing chunk never aborts the rest: its fragment carries the error and
// an empty text, and the failure is logged with the chunk index. Only context
// cancellation stops scheduling new chunks.
func TranscribeAll(
	ctx context.Context,
	chunks iter.Seq[audio.Chunk],
	t Transcriber,
	maxParallel int,
	log *logger.Logger,
) []Fragment {
	if log == nil {
		log = logger.Nop()
	}
	if maxParallel < 1 {
		maxParallel = 1
	}

	// Each worker owns one slot, so the slice must be sized before any starts.
	pending := slices.Collect(chunks)
	fragments := make([]Fragment, len(pending))

	g := new(errgroup.Group)
	g.SetLimit(maxParallel)

	for i, chunk := range pending {
		fragments[i].Index = chunk.Index
		if ctx.Err() != nil {
			fragments[i].Err = ctx.Err()
			continue
		}
		g.Go(func() error {
			text, err := t.Transcribe(ctx, chunk)
			if err != nil {
				log.Error("chunk transcription failed", logger.Fields(
					logger.FieldChunk, chunk.Index,
					"start", chunk.Start.String(),
					logger.FieldError, err,
				))
				fragments[i].Err = err
				return nil
			}
			fragments[i].Text = text
			return nil
		})
	}
	_ = g.Wait()

	return fragments
}

// Combine joins fragment texts in index order with single spaces and trims
// the result. Failed fragments contribute an empty string, so a failure in
// the middle leaves a double space.
func Combine(fragments []Fragment) string {
	ordered := slices.SortedStableFunc(slices.Values(fragments), func(a, b Fragment) int {
		return cmp.Compare(a.Index, b.Index)
	})
	texts := make([]string, len(ordered))
	for i, f := range ordered {
		texts[i] = f.Text
	}
	return strings.TrimSpace(strings.Join(texts, " "))
}

// Failed returns how many fragments carry an error.
func Failed(fragments []Fragment) int {
	n := 0
	for _, f := range fragments {
		if f.Err != nil {
			n++
		}
	}
	return n
}
