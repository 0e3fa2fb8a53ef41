package chatbot

import (
	"errors"
	"fmt"
)

// ErrNoUserMessage is returned when the cleaned history contains no user turn.
var ErrNoUserMessage = errors.New("no user message")

// ErrContentFiltered signals that the upstream model stopped with a
// content-filter finish reason. It is not a failure: the pipeline maps it to
// a fixed decline reply.
var ErrContentFiltered = errors.New("completion stopped by content filter")

// UpstreamError wraps a failed embedding or completion call. The remote
// message is kept where safe so operators can see what the provider said.
type UpstreamError struct {
	Service string
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Service, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Message)
}
