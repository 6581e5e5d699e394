package ashfetch

import (
	"github.com/Borislavv/go-ash-fetch/internal/diskstore"
	"github.com/Borislavv/go-ash-fetch/model"
)

var (
	ErrInvalidInput    = model.ErrInvalidInput
	ErrTransport       = model.ErrTransport
	ErrDecode          = model.ErrDecode
	ErrTransformFailed = model.ErrTransformFailed
	ErrCancelled       = model.ErrCancelled
)

// IsCancellation reports whether err came from an intentional cancellation, which callers
// usually keep out of user-visible error reporting.
func IsCancellation(err error) bool {
	return model.IsCancellation(err)
}

// ErrLocked is returned by New when another process holds a namespace of the persistence dir.
var ErrLocked = diskstore.ErrLocked
