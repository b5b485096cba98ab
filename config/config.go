package config

import (
	"os"
	"time"

	"github.com/go-kit/log"
)

var Version string

// Used so that we can generate fixed timestamps in tests
var Clock TimestampGenerator = RealTimestampGenerator{}

// Defaults for the external engine, overridden from the CLI
const (
	DefaultCanvasWidth   = 1280
	DefaultCanvasHeight  = 720
	DefaultProbeTimeout  = 60 * time.Second
	DefaultRenderTimeout = 2 * time.Hour
)

// Global variable, but easier than passing a logger around throughout the system
var Logger log.Logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))

func init() {
	Logger = log.With(Logger, "ts", log.DefaultTimestampUTC)
}
