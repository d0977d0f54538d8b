package tracker

import "errors"

// Validation errors.  Save reports them before any remote call is made.
var (
	ErrMissingFields = errors.New("title, director and year are required")
	ErrInvalidYear   = errors.New("invalid year format")
	ErrInvalidRating = errors.New("rating must be between 0 and 5")
	ErrUnknownGenre  = errors.New("unknown genre")
)

// ErrInvalidID is returned by Delete for an empty id.  No remote call is made.
var ErrInvalidID = errors.New("invalid movie id")

// ErrNotFound is returned by Select when the id is not in the cached list.
var ErrNotFound = errors.New("movie not found")

// ErrReloadFailed wraps a reload error that followed a successful write.
var ErrReloadFailed = errors.New("reload after write failed")

// RemoteError reports a failed call to the document collection.  Op is one
// of "create", "update", "load" or "delete".
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string { return e.Op + " failed: " + e.Err.Error() }

func (e *RemoteError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingFields) ||
		errors.Is(err, ErrInvalidYear) ||
		errors.Is(err, ErrInvalidRating) ||
		errors.Is(err, ErrUnknownGenre)
}
