package relay

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransientRPC marks node or network failures worth retrying on the
	// next poll.
	ErrTransientRPC = errors.New("relay: transient rpc failure")

	// ErrInvalidRange means the node rejected a log query range, typically
	// because it spans too many blocks or matches too many results.
	ErrInvalidRange = errors.New("relay: node rejected block range")

	// ErrValidation marks events that fail business-rule checks. They are
	// recorded as processed so they are never retried.
	ErrValidation = errors.New("relay: event failed validation")

	// ErrDispatch marks a failed hand-off to the destination chain. The
	// owning block range must not advance until the dispatch succeeds.
	ErrDispatch = errors.New("relay: dispatch failed")
)

// classifyRPCError sorts a node error into the invalid-range or transient
// class. Nodes signal oversized queries in the error text, so this is a
// substring match against the common phrasings.
func classifyRPCError(err error) error {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"block range", "query returned more than", "too many results", "response size"} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", ErrInvalidRange, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrTransientRPC, err)
}
