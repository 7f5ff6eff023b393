package interop

import (
	"github.com/cockroachdb/errors"
)

type handleState byte

const (
	handleHeld handleState = iota
	handleTaken
	handleReleased
)

// Handle is a move-only wrapper around the OS-level reference to an
// exported memory or semaphore object: a file descriptor on the POSIX
// platform family, a duplicated kernel handle on win32.
//
// The raw value can be moved out exactly once with Take, which is how it
// is handed to an import call. On the descriptor platform a successful
// import consumes the descriptor, so Release after Take is a no-op
// there; on win32 the kernel handle stays owned by this process and
// Release must still close it. Release with the raw value never taken
// closes it on both platforms. Taking twice is a programming error.
type Handle struct {
	raw   uintptr
	state handleState

	// retainAfterTake is true when the OS resource stays owned by this
	// process even after the raw value has been handed to an import.
	retainAfterTake bool
	close           func(raw uintptr) error
}

// NewHandle is called by the platform exporter implementations, which
// fix the ownership semantics and the close call for their handle kind.
func NewHandle(raw uintptr, retainAfterTake bool, close func(raw uintptr) error) *Handle {
	return &Handle{
		raw:             raw,
		retainAfterTake: retainAfterTake,
		close:           close,
	}
}

// Take moves the raw platform value out of the handle for use by an
// import call. It can succeed at most once per handle.
func (h *Handle) Take() (uintptr, error) {
	if h.state != handleHeld {
		err := errors.New("platform handle has already been consumed or released")
		debugFail(err)
		return 0, err
	}

	h.state = handleTaken
	return h.raw, nil
}

// Reclaim returns a taken raw value to the handle after the import it
// was taken for failed. Without it, a failed import would strand the
// OS resource on the descriptor platform, where Release treats a taken
// value as consumed.
func (h *Handle) Reclaim() error {
	if h.state != handleTaken {
		err := errors.New("platform handle cannot be reclaimed unless it has been taken")
		debugFail(err)
		return err
	}

	h.state = handleHeld
	return nil
}

// Release closes whatever OS resource this process still owns. It is
// idempotent and safe to defer alongside a Take.
func (h *Handle) Release() error {
	priorState := h.state
	h.state = handleReleased

	switch priorState {
	case handleReleased:
		return nil
	case handleTaken:
		if !h.retainAfterTake {
			// The import consumed the resource; closing it again would
			// be a double close.
			return nil
		}
	}

	if h.close == nil {
		return nil
	}
	return h.close(h.raw)
}
