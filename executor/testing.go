package executor

import (
	"sync"
	"time"
)

// Shared executor for tests, so the WebAssembly runtime is created once.
var (
	testExecutor     *Executor
	testExecutorOnce sync.Once
	testExecutorErr  error
)

// GetTestExecutor returns a shared executor with short thresholds suited to
// tests. The executor is created once and reused.
func GetTestExecutor() (*Executor, error) {
	testExecutorOnce.Do(func() {
		testExecutor, testExecutorErr = New(
			WithRunTimeout(5*time.Second),
			WithCompileTimeout(20*time.Second),
			WithQuiescence(200*time.Millisecond),
			WithPollInterval(20*time.Millisecond),
		)
	})
	return testExecutor, testExecutorErr
}

// CloseTestExecutor closes the shared test executor.
// Call this in TestMain if needed, but typically not necessary.
func CloseTestExecutor() {
	if testExecutor != nil {
		testExecutor.Close()
		testExecutor = nil
		testExecutorOnce = sync.Once{} // Reset for next test run
	}
}
