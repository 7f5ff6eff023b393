//go:build !debug_interop

package interop

// debugFail panics on resource-lifetime misuse (double release, reuse of
// a consumed handle, refcount underflow). This method no-ops unless the
// debug_interop build tag is present.
func debugFail(err error) {
}
