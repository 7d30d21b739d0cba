package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"sync/atomic"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger

	// level gates LogRequest entries by their "level" field. Stored as an
	// int32 level rank so concurrent requests can read it without a lock.
	level atomic.Int32
)

// level ranks, lowest first: an entry logs when its own rank is >= the
// configured threshold's rank.
const (
	levelDebug int32 = iota
	levelInfo
	levelWarn
	levelError
)

func init() {
	level.Store(levelInfo)
}

// Logger returns the shared structured logger used across the service.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// SetLevel sets the minimum level LogRequest will emit, from a
// CUTMAN_LOG_LEVEL value ("debug", "info", "warn", "error"). An
// unrecognized value is treated as "info".
func SetLevel(name string) {
	level.Store(levelRank(name))
}

func levelRank(name string) int32 {
	switch name {
	case "debug":
		return levelDebug
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// LogRequest emits a structured JSON log line with common HTTP fields,
// dropping it if its "level" field ranks below the configured threshold.
func LogRequest(entry map[string]any) {
	name, _ := entry["level"].(string)
	if levelRank(name) < level.Load() {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"ts":"error","level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}
