package deliver

// State is where one unit's send stands.
type State int

// Unit lifecycle: Pending -> Sending -> {Delivered, Retrying, Abandoned}.
// Retrying always returns to Sending. Delivered and Abandoned are terminal.
const (
	Pending State = iota
	Sending
	Retrying
	Delivered
	Abandoned
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Sending:
		return "sending"
	case Retrying:
		return "retrying"
	case Delivered:
		return "delivered"
	case Abandoned:
		return "abandoned"
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Delivered || s == Abandoned
}

// attemptState tracks one unit's send. attempt counts transient failures
// only; rate-limit waits leave it alone.
type attemptState struct {
	attempt int
	sends   int
	state   State
}
