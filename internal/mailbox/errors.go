package mailbox

import "errors"

// Sentinel errors for mailbox operations.
var (
	// ErrConnect indicates the server could not be reached or refused the login.
	ErrConnect = errors.New("mailbox connect failed")

	// ErrParse indicates a fetched message is not valid MIME.
	ErrParse = errors.New("message parse failed")

	// ErrNotFound indicates a fetch returned no body for the requested UID.
	ErrNotFound = errors.New("message not found")
)
