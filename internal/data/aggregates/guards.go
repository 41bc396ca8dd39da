package aggregates

import "strings"

// RequireCASSuccess converts a failed compare-and-set into a typed conflict error.
func RequireCASSuccess(ok bool, message string) error {
	if ok {
		return nil
	}
	return ConflictError("%s", strings.TrimSpace(message))
}

// RequireDemotion checks the outcome of clearing the current flag against what
// the sequencer observed. When a current row was seen, exactly one row must have
// been demoted; anything else means another writer moved the prompt first.
func RequireDemotion(sawCurrent bool, affected int64) error {
	if !sawCurrent {
		if affected != 0 {
			return ConflictError("current version appeared while writing")
		}
		return nil
	}
	if affected != 1 {
		return ConflictError("current version changed while writing (demoted %d rows)", affected)
	}
	return nil
}
