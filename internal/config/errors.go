package config

import "errors"

// Configuration faults. Both stop the process before polling starts.
var (
	// ErrMissingSetting indicates a required setting is empty.
	ErrMissingSetting = errors.New("missing required setting")

	// ErrInvalidSetting indicates a setting has an unusable value.
	ErrInvalidSetting = errors.New("invalid setting")
)
