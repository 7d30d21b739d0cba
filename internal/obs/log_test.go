package obs

import "testing"

func TestSetLevelUpdatesThreshold(t *testing.T) {
	t.Cleanup(func() { SetLevel("info") })

	SetLevel("warn")
	if got := level.Load(); got != levelWarn {
		t.Fatalf("level.Load() = %d, want levelWarn", got)
	}

	SetLevel("unrecognized")
	if got := level.Load(); got != levelInfo {
		t.Fatalf("an unrecognized level should fall back to info, got %d", got)
	}
}

func TestLevelRankOrdering(t *testing.T) {
	if !(levelDebug < levelInfo && levelInfo < levelWarn && levelWarn < levelError) {
		t.Fatalf("expected strictly increasing level ranks")
	}
	if levelRank("debug") != levelDebug || levelRank("warn") != levelWarn || levelRank("error") != levelError {
		t.Fatalf("levelRank did not round-trip the named levels")
	}
}

func TestLogRequestSkipsBelowThreshold(t *testing.T) {
	t.Cleanup(func() { SetLevel("info") })
	SetLevel("error")

	// Below threshold: must not reach json.Marshal/Logger().Println at all.
	// There's nothing to assert on stdout here (Logger's writer is fixed at
	// first use), so this just exercises the gating branch without panicking.
	LogRequest(map[string]any{"level": "info", "msg": "should be dropped"})
	LogRequest(map[string]any{"level": "error", "msg": "should pass through"})
}
