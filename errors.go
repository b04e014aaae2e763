package careerflow

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

type ErrLLM struct {
	Provider string
	Message  string
}

func (e *ErrLLM) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

type ErrHTTP struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// ErrSchema reports a structured-output reply that failed to parse or
// carried a value outside its closed enum. Schema violations are fatal for
// the turn; the engine never guesses a fallback route.
type ErrSchema struct {
	Stage  string // which decision was being parsed, e.g. "supervisor_route"
	Reason string
}

func (e *ErrSchema) Error() string {
	return fmt.Sprintf("schema violation in %s: %s", e.Stage, e.Reason)
}

// ErrUnknownFrame reports a Resume outcome naming a frame that is not an
// ancestor of the frame that produced it. This is a wiring bug, not a
// recoverable condition.
type ErrUnknownFrame struct {
	Target FrameID
	From   FrameID
}

func (e *ErrUnknownFrame) Error() string {
	return fmt.Sprintf("resume target %q is not an ancestor of frame %q", e.Target, e.From)
}

// ParseRetryAfter parses a Retry-After header value (seconds or HTTP date).
// Returns 0 when the value is absent or malformed.
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
