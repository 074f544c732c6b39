package interlock

import "errors"

// ErrConflict is returned by Reserve when the requested motion envelope
// overlaps another device's reservation or a static zone. The wrapping
// error names the conflicting holder or zone.
var ErrConflict = errors.New("interlock: envelope conflict")
