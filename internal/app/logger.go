package app

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger returns a logrus logger configured for text or JSON output.
func NewLogger(cfg *Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if cfg != nil && cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level := logrus.InfoLevel
	if cfg != nil {
		if l, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
			level = l
		}
		if cfg.Debug {
			level = logrus.DebugLevel
		}
	}
	log.SetLevel(level)
	return log
}
