//go:build !linux

package executor

// probeProcess has no portable source of thread state, so stalls are
// decided by silence alone.
func probeProcess(pid int) activity {
	return activityUnknown
}
