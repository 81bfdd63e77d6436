//go:build linux

package executor

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// probeProcess inspects every thread of pid and of its descendants through
// /proc. A thread on CPU wins over a blocked pipe read, which wins over a
// timed sleep; anything else is unknown.
func probeProcess(pid int) activity {
	seen := make(map[int]bool)
	return probeTree(pid, seen)
}

func probeTree(pid int, seen map[int]bool) activity {
	if seen[pid] {
		return activityUnknown
	}
	seen[pid] = true

	taskDir := filepath.Join("/proc", strconv.Itoa(pid), "task")
	tasks, err := os.ReadDir(taskDir)
	if err != nil {
		return activityUnknown
	}

	result := activityUnknown
	for _, t := range tasks {
		dir := filepath.Join(taskDir, t.Name())
		act := probeTask(dir)
		if act == activityBusy {
			return activityBusy
		}
		result = stronger(result, act)

		children, err := os.ReadFile(filepath.Join(dir, "children"))
		if err != nil {
			continue
		}
		for _, field := range strings.Fields(string(children)) {
			child, err := strconv.Atoi(field)
			if err != nil {
				continue
			}
			act := probeTree(child, seen)
			if act == activityBusy {
				return activityBusy
			}
			result = stronger(result, act)
		}
	}
	return result
}

func stronger(a, b activity) activity {
	rank := func(x activity) int {
		switch x {
		case activityBusy:
			return 3
		case activityWaiting:
			return 2
		case activitySleeping:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

func probeTask(dir string) activity {
	stat, err := os.ReadFile(filepath.Join(dir, "stat"))
	if err != nil {
		return activityUnknown
	}
	// The command name may contain spaces and parentheses; the state
	// follows the last ')'.
	idx := bytes.LastIndexByte(stat, ')')
	if idx == -1 || idx+2 >= len(stat) {
		return activityUnknown
	}
	switch stat[idx+2] {
	case 'R', 'D':
		return activityBusy
	case 'Z', 'X':
		return activityUnknown
	}

	wchan, err := os.ReadFile(filepath.Join(dir, "wchan"))
	if err != nil {
		return activityUnknown
	}
	return classifyWaitChannel(strings.TrimSpace(string(wchan)))
}

func classifyWaitChannel(wchan string) activity {
	switch {
	case strings.HasPrefix(wchan, "pipe_read"), strings.HasPrefix(wchan, "pipe_wait"),
		strings.HasPrefix(wchan, "n_tty_read"), strings.HasPrefix(wchan, "wait_woken"):
		return activityWaiting
	case strings.Contains(wchan, "nanosleep"):
		return activitySleeping
	default:
		return activityUnknown
	}
}
