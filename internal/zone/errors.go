package zone

import "errors"

var (
	// ErrRebuildInProgress is returned when Rebuild is called while another
	// rebuild is running.
	ErrRebuildInProgress = errors.New("zone rebuild already in progress")
)
