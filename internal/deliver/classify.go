package deliver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vmrelay/vmrelay/internal/apierr"
)

// fault is the delivery-side classification of a send error.
type fault int

const (
	faultPermanent fault = iota
	faultTransient
	faultRateLimit
)

func (f fault) String() string {
	switch f {
	case faultTransient:
		return "transient"
	case faultRateLimit:
		return "rate_limited"
	}
	return "permanent"
}

// defaultRetryAfter applies when a 429 arrives without retry_after.
const defaultRetryAfter = time.Second

// classify sorts a send error into permanent, transient or rate-limited.
// Anything it does not recognize is permanent.
func classify(err error) (fault, time.Duration) {
	if after, ok := apierr.RetryAfter(err); ok {
		return faultRateLimit, after
	}

	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		switch {
		case tgErr.RetryAfter > 0:
			return faultRateLimit, time.Duration(tgErr.RetryAfter) * time.Second
		case tgErr.Code == http.StatusTooManyRequests:
			return faultRateLimit, defaultRetryAfter
		case tgErr.Code >= 500:
			return faultTransient, 0
		}
		return faultPermanent, 0
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return faultPermanent, 0
	}
	if errors.Is(err, apierr.ErrUnavailable) || errors.Is(err, apierr.ErrTimeout) {
		return faultTransient, 0
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return faultTransient, 0
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return faultTransient, 0
	}

	// A proxy in front of the Bot API answered with an HTML error page.
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return faultTransient, 0
	}

	return faultPermanent, 0
}
