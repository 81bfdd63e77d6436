package executor

import (
	"errors"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestDetectorQuiescenceBoundary(t *testing.T) {
	const q = 400 * time.Millisecond

	tests := []struct {
		name    string
		elapsed time.Duration
		act     activity
		want    State
	}{
		{"just under window", q - time.Millisecond, activityUnknown, Running},
		{"exactly window", q, activityUnknown, Stalled},
		{"just over window", q + time.Millisecond, activityWaiting, Stalled},
		{"busy past window", 2 * q, activityBusy, Running},
		{"sleeping past window", 2 * q, activitySleeping, Running},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDetector(q, 4, epoch)
			if got := d.Tick(epoch.Add(tt.elapsed), tt.act); got != tt.want {
				t.Errorf("Tick after %v (%s) = %s, want %s", tt.elapsed, tt.act, got, tt.want)
			}
		})
	}
}

func TestDetectorOutputResetsWindow(t *testing.T) {
	const q = 100 * time.Millisecond
	d := newDetector(q, 4, epoch)

	d.Output(epoch.Add(90 * time.Millisecond))
	if got := d.Tick(epoch.Add(150*time.Millisecond), activityUnknown); got != Running {
		t.Fatalf("expected running 60ms after output, got %s", got)
	}
	if got := d.Tick(epoch.Add(190*time.Millisecond), activityUnknown); got != Stalled {
		t.Fatalf("expected stalled 100ms after output, got %s", got)
	}

	d.Output(epoch.Add(200 * time.Millisecond))
	if d.State() != Running {
		t.Errorf("output should return to running, got %s", d.State())
	}
}

func TestDetectorBusyCountsAsActivity(t *testing.T) {
	const q = 100 * time.Millisecond
	d := newDetector(q, 4, epoch)

	d.Tick(epoch.Add(80*time.Millisecond), activityBusy)
	if got := d.Tick(epoch.Add(150*time.Millisecond), activityUnknown); got != Running {
		t.Errorf("busy probe should reset the window, got %s", got)
	}
}

func TestDetectorInputRounds(t *testing.T) {
	const q = 10 * time.Millisecond
	d := newDetector(q, 2, epoch)
	now := epoch

	for round := 1; round <= 2; round++ {
		now = now.Add(q)
		if got := d.Tick(now, activityWaiting); got != Stalled {
			t.Fatalf("round %d: expected stalled, got %s", round, got)
		}
		if err := d.AwaitInput(); err != nil {
			t.Fatalf("round %d: unexpected error: %v", round, err)
		}
		if d.State() != AwaitingInput {
			t.Fatalf("round %d: expected awaiting input, got %s", round, d.State())
		}
		if got := d.Tick(now.Add(time.Hour), activityWaiting); got != AwaitingInput {
			t.Fatalf("round %d: tick must not leave awaiting input, got %s", round, got)
		}
		d.Delivered(now)
	}

	if d.Rounds() != 2 {
		t.Errorf("expected 2 rounds, got %d", d.Rounds())
	}

	now = now.Add(q)
	d.Tick(now, activityWaiting)
	err := d.AwaitInput()
	if !errors.Is(err, ErrTooManyInputs) {
		t.Errorf("expected ErrTooManyInputs, got %v", err)
	}
}

func TestDetectorAwaitInputRequiresStall(t *testing.T) {
	d := newDetector(time.Second, 4, epoch)
	if err := d.AwaitInput(); err == nil {
		t.Error("expected error when not stalled")
	}
}

func TestDetectorTerminalStates(t *testing.T) {
	d := newDetector(time.Millisecond, 4, epoch)
	d.Exited()
	d.Expired()
	if d.State() != Finished {
		t.Errorf("exit before deadline should stay finished, got %s", d.State())
	}
	d.Output(epoch.Add(time.Second))
	if got := d.Tick(epoch.Add(time.Hour), activityUnknown); got != Finished {
		t.Errorf("finished detector must not change, got %s", got)
	}

	d = newDetector(time.Millisecond, 4, epoch)
	d.Expired()
	d.Exited()
	if d.State() != StateTimedOut {
		t.Errorf("exit after deadline should stay timed out, got %s", d.State())
	}
}

func TestClassifyExit(t *testing.T) {
	tests := []struct {
		name   string
		exit   exitInfo
		stderr string
		want   StatusKind
		sent   error
	}{
		{"success", exitInfo{}, "", Success, nil},
		{"non-zero silent", exitInfo{code: 3}, "", NonZeroExit, ErrNonZeroExit},
		{"non-zero with stderr", exitInfo{code: 1}, "Traceback...\nZeroDivisionError\n", RuntimeError, ErrRuntime},
		{"signal", exitInfo{code: -1, signal: "SIGSEGV"}, "", RuntimeError, ErrRuntime},
		{"wait failure", exitInfo{code: -1, err: errors.New("boom")}, "", RuntimeError, ErrRuntime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := classifyExit(tt.exit, tt.stderr)
			if status.Kind != tt.want {
				t.Errorf("kind = %s, want %s", status.Kind, tt.want)
			}
			if tt.sent == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.sent != nil && !errors.Is(err, tt.sent) {
				t.Errorf("error %v does not wrap %v", err, tt.sent)
			}
		})
	}
}

func TestExcerptKeepsTail(t *testing.T) {
	var lines []byte
	for i := 0; i < 50; i++ {
		lines = append(lines, []byte("line\n")...)
	}
	lines = append(lines, []byte("last\n")...)

	got := excerpt(string(lines))
	if got[:3] != "..." {
		t.Errorf("expected elision marker, got %q", got[:10])
	}
	if got[len(got)-4:] != "last" {
		t.Errorf("expected excerpt to end with the last line, got %q", got)
	}
}
