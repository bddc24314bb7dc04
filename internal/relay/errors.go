package relay

import "errors"

// ErrUndelivered indicates no part of a voicemail reached the chat.
var ErrUndelivered = errors.New("voicemail not delivered")
