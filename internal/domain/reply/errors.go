package reply

import "errors"

// Rejections. A rejected message never surfaces as a Go error from the
// inbound pipeline; it is reported through Outcome.
var (
	ErrUnknownSender      = errors.New("unknown sender")
	ErrRecordNotFound     = errors.New("could not identify question")
	ErrUnauthorizedSender = errors.New("sender is not an active member of the group")
	ErrCycleNotAccepting  = errors.New("question is not accepting answers")
	ErrEmptyAnswer        = errors.New("answer is empty")
	ErrDuplicateAnswer    = errors.New("member already answered this question")
)

// Locator signals. These make a strategy give way to the next one.
var (
	ErrInvalidSignature = errors.New("reply token signature is invalid")
	ErrMalformedSubject = errors.New("subject does not match the question format")
	ErrNoMatch          = errors.New("strategy found no record")
)

// ErrTransient marks storage failures; the caller may retry the message.
var ErrTransient = errors.New("transient failure")

var codes = []struct {
	err  error
	code string
}{
	{ErrUnknownSender, "unknown_sender"},
	{ErrRecordNotFound, "record_not_found"},
	{ErrUnauthorizedSender, "unauthorized_sender"},
	{ErrCycleNotAccepting, "cycle_not_accepting"},
	{ErrEmptyAnswer, "empty_answer"},
	{ErrDuplicateAnswer, "duplicate_answer"},
	{ErrInvalidSignature, "invalid_signature"},
	{ErrMalformedSubject, "malformed_subject"},
	{ErrTransient, "transient"},
}

// Code returns the stable identifier reported for err.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

// IsRejection reports whether err is a semantic rejection of the message.
func IsRejection(err error) bool {
	switch Code(err) {
	case "", "transient", "internal":
		return false
	}
	return true
}
