// Public domain.

package zpt

// Unload clears the process-wide tables so tests can exercise Load again.
func Unload() {
	loadMu.Lock()
	loaded.Store(nil)
	loadMu.Unlock()
}
