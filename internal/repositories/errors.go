package repositories

import "errors"

// ErrStaleWrite means a compare-and-set update matched no row because the
// record changed underneath the caller.
var ErrStaleWrite = errors.New("record changed concurrently")
