package metrics

import "time"

// SetNow replaces the server clock.
func (s *Server) SetNow(fn func() time.Time) { s.now = fn }
