package log

import (
	"io"
	"os"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/patrickmn/go-cache"
)

// Loggers are kept per request ID so that context added once (session, participant, ...) sticks to
// every later line of the same request.
var loggerCache *cache.Cache

var defaultLoggerCacheExpiry = 6 * time.Hour

// overridden in tests
var logDestination io.Writer = os.Stderr

func init() {
	loggerCache = cache.New(defaultLoggerCacheExpiry, 10*time.Minute)
}

// Permanently add context to the logger. Any future logging for this Request ID will include this context
func AddContext(requestID string, keyvals ...interface{}) {
	loggerCache.Set(requestID, kitlog.With(getLogger(requestID), keyvals...), defaultLoggerCacheExpiry)
}

// Drop the cached logger once a request is finished
func RemoveContext(requestID string) {
	loggerCache.Delete(requestID)
}

func Log(requestID string, message string, keyvals ...interface{}) {
	_ = kitlog.With(getLogger(requestID), "msg", message).Log(keyvals...)
}

// Log in situations where we don't have access to the Request ID.
// Should be used sparingly and with as much context inserted into the message as possible
func LogNoRequestID(message string, keyvals ...interface{}) {
	_ = kitlog.With(newLogger(), "msg", message).Log(keyvals...)
}

func LogError(requestID string, message string, err error, keyvals ...interface{}) {
	errMsg := "<nil>"
	if err != nil {
		errMsg = err.Error()
	}
	_ = kitlog.With(getLogger(requestID), "msg", message, "err", errMsg).Log(keyvals...)
}

func getLogger(requestID string) kitlog.Logger {
	logger, found := loggerCache.Get(requestID)
	if found {
		return logger.(kitlog.Logger)
	}

	newLogger := kitlog.With(newLogger(), "request_id", requestID)
	if err := loggerCache.Add(requestID, newLogger, defaultLoggerCacheExpiry); err != nil {
		// lost a race with another goroutine, use whichever logger won
		if existing, ok := loggerCache.Get(requestID); ok {
			return existing.(kitlog.Logger)
		}
	}
	return newLogger
}

func newLogger() kitlog.Logger {
	newLogger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(logDestination))
	return kitlog.With(newLogger, "ts", kitlog.DefaultTimestampUTC)
}
