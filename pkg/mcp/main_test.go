package mcp_test

import (
	"testing"

	"go.uber.org/goleak"
)

// regexpClock is the process-wide timeout clock regexp2 starts for any
// pattern with a MatchTimeout. It lives for the rest of the process.
const regexpClock = "github.com/dlclark/regexp2.runClock"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreAnyFunction(regexpClock))
}
