package routine

import (
	"io"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
)

func newTestRunner() *Runner {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(logger)
}

func TestGoRunsFunction(t *testing.T) {
	runner := newTestRunner()

	var ran atomic.Bool
	runner.Go("test", func() { ran.Store(true) })
	runner.Wait()

	if !ran.Load() {
		t.Fatalf("background function did not run")
	}
}

func TestGoRecoversPanic(t *testing.T) {
	runner := newTestRunner()

	runner.Go("panics", func() { panic("boom") })
	runner.Wait()

	// Reaching here without crashing is the assertion.
	var after atomic.Bool
	runner.Go("after", func() { after.Store(true) })
	runner.Wait()
	if !after.Load() {
		t.Fatalf("runner unusable after recovered panic")
	}
}
