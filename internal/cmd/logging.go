package cmd

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/flashkit/flashkit/internal/config"
)

// cmdLogger builds the logrus.FieldLogger threaded into the sparse and
// fastboot packages, honoring --verbose/--quiet and falling back to the
// configured default_log_level.
func cmdLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	level := logrus.InfoLevel
	config.SetConfigDir(ConfigDir)
	if cfg, err := config.Load(); err == nil && cfg.DefaultLogLevel != "" {
		if lv, err := logrus.ParseLevel(cfg.DefaultLogLevel); err == nil {
			level = lv
		}
	}
	if verboseFlag {
		level = logrus.DebugLevel
	}
	if quietFlag {
		level = logrus.ErrorLevel
	}
	log.SetLevel(level)
	return log
}
