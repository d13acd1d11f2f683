package session

// State is the position of a Session in its request cycle.
type State int

// Session states. Every cycle starts and, unless it fails, ends in Idle.
const (
	Idle State = iota
	RequestIssued
	Completed
	Overflowed
	Failed
)

// String returns the state name used in log output.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RequestIssued:
		return "request_issued"
	case Completed:
		return "completed"
	case Overflowed:
		return "overflowed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stats counts what a Session has processed so far.
type Stats struct {
	Batches   int
	Records   int
	Fires     int
	Overflows int
	// FireErrors counts commands that could not be started or exited non-zero.
	FireErrors int
}
