package controllers

import "fmt"

// UpdateResult is the outcome code of a pass or of one of its steps
type UpdateResult int

const (
	ResultSilentSuccess UpdateResult = iota
	ResultIncomplete
	ResultOffline
	ResultCancelled
	ResultError
)

var resultNames = map[UpdateResult]string{
	ResultSilentSuccess: "SILENT_SUCCESS",
	ResultIncomplete:    "INCOMPLETE",
	ResultOffline:       "OFFLINE",
	ResultCancelled:     "CANCELLED",
	ResultError:         "ERROR",
}

func (r UpdateResult) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("UpdateResult(%d)", int(r))
}

// Severity orders results from harmless (0) to worst
func (r UpdateResult) Severity() int {
	return int(r)
}

// Failed reports whether the result counts as a failure for backoff
func (r UpdateResult) Failed() bool {
	return r.Severity() > ResultSilentSuccess.Severity()
}

// Merge combines the result of an earlier step with a later one. The first
// failure wins: a later result only replaces a success.
func (r UpdateResult) Merge(later UpdateResult) UpdateResult {
	if r.Failed() {
		return r
	}
	return later
}

// UpdateType selects which shows a pass refreshes
type UpdateType int

const (
	UpdateDelta UpdateType = iota
	UpdateFull
	UpdateAutoSingle
)

func (t UpdateType) String() string {
	switch t {
	case UpdateDelta:
		return "delta"
	case UpdateFull:
		return "full"
	case UpdateAutoSingle:
		return "auto_single"
	default:
		return fmt.Sprintf("UpdateType(%d)", int(t))
	}
}

// ParseUpdateType parses the names returned by String
func ParseUpdateType(s string) (UpdateType, error) {
	switch s {
	case "delta", "":
		return UpdateDelta, nil
	case "full":
		return UpdateFull, nil
	case "auto_single", "single":
		return UpdateAutoSingle, nil
	default:
		return UpdateDelta, fmt.Errorf("unknown update type %q", s)
	}
}
