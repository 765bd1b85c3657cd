package position

import "errors"

// ErrEmptyID is returned for a lookup without an item id.
var ErrEmptyID = errors.New("item id is required")
