package tournament

import "errors"

var (
	// ErrTooManyCandidates is returned when the candidate set exceeds the configured cap.
	ErrTooManyCandidates = errors.New("too many candidates")
	// ErrRankerClosed is returned by Rank after Close.
	ErrRankerClosed = errors.New("ranker closed")
)
