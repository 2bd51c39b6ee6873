package workspace

// overrideUserHomeDir swaps userHomeDir for fn and returns the restore func.
func overrideUserHomeDir(fn func() (string, error)) func() {
	old := userHomeDir
	userHomeDir = fn
	return func() { userHomeDir = old }
}
