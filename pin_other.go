//go:build !linux

package dudect

import "runtime"

// pinThread locks the calling goroutine to its OS thread. CPU affinity is
// not available on this platform, so cpu is ignored.
func pinThread(int) (func(), error) {
	runtime.LockOSThread()
	return runtime.UnlockOSThread, nil
}
