package rescore

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain checks that worker goroutines exit, including on cancellation.
// Goroutines started during package init (the glog flusher) are ignored.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreCurrent())
}
