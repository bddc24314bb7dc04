package caption

import "errors"

// ErrInvalidPolicy indicates an unknown over-length policy name.
var ErrInvalidPolicy = errors.New("invalid caption policy")
