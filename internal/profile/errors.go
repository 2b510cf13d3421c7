package profile

import "errors"

// ErrNameConflict is returned by Insert/Update when another profile already
// has the same case-insensitive name.
var ErrNameConflict = errors.New("profile: name already in use")

// ErrNotFound is returned by Get/Update/Delete when no profile matches the
// requested id, and by GetDefault when no profile is marked default.
var ErrNotFound = errors.New("profile: not found")
