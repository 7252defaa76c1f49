package testutil

import (
	"log"
	"testing"
)

// ConcurrentTestReporter lets gomock report failures from goroutines other
// than the test's own, where t.Fatalf must not be called.
// https://github.com/golang/mock/issues/145
type ConcurrentTestReporter struct {
	*testing.T
}

func NewConcurrentTestReporter(t *testing.T) *ConcurrentTestReporter {
	return &ConcurrentTestReporter{t}
}

func (r *ConcurrentTestReporter) Fatalf(format string, args ...any) {
	log.Fatalf(format, args...)
}
