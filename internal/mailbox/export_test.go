package mailbox

import "time"

// SetNow replaces the archiver clock.
func (a *Archiver) SetNow(fn func() time.Time) { a.now = fn }
