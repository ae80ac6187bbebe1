package quota

import "errors"

var (
	ErrLimitExceeded = errors.New("limit exceeded")
	ErrUnknownKind   = errors.New("unknown limit kind")
)

// LimitExceededError is returned when an admission check rejects a request.
// Message is safe to show to the user.
type LimitExceededError struct {
	Kind     Kind
	Used     float64
	Limit    Limit
	Incoming float64
	Message  string
}

func (e *LimitExceededError) Error() string {
	return e.Message
}

func (e *LimitExceededError) Is(target error) bool {
	return target == ErrLimitExceeded
}

// Details is the structured body handed to clients alongside the message.
func (e *LimitExceededError) Details() map[string]interface{} {
	d := map[string]interface{}{
		"kind":  e.Kind,
		"limit": e.Limit,
	}
	if e.Kind.IsCount() || e.Kind == KindFilesPerUpload {
		d["used"] = int64(e.Used)
		d["incoming"] = int64(e.Incoming)
	} else {
		d["used_mb"] = RoundMB(e.Used)
		d["incoming_mb"] = RoundMB(e.Incoming)
	}
	return d
}
