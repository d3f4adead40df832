package device

import "fmt"

type Kind int

const (
	Success Kind = iota
	Rejected
	TimedOut
	// ConnectionError covers transport failures other than a timeout:
	// refused connections, DNS, TLS. Callers treat it like Rejected.
	ConnectionError
	// Malformed is a 200 whose body lacks what the caller asked for.
	Malformed
	// Skipped means the target is not installed and nothing was sent.
	Skipped
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Rejected:
		return "rejected"
	case TimedOut:
		return "timed_out"
	case ConnectionError:
		return "connection_error"
	case Malformed:
		return "malformed"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the result of a single device call. It is a value, not an
// error: no outcome is fatal to the caller.
type Outcome struct {
	Kind       Kind
	StatusCode int
	Body       []byte
	Err        error
}

func (o Outcome) OK() bool {
	return o.Kind == Success
}

func (o Outcome) String() string {
	switch o.Kind {
	case Rejected:
		return fmt.Sprintf("rejected (%d)", o.StatusCode)
	case TimedOut, ConnectionError, Malformed:
		if o.Err != nil {
			return fmt.Sprintf("%s: %v", o.Kind, o.Err)
		}
	}
	return o.Kind.String()
}
