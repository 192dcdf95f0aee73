// Package logger configures the application's logrus logger.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New creates a logger at the given level (falling back to info).
func New(level string) *logrus.Logger {
	log := logrus.New()

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)

	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	log.SetOutput(os.Stdout)

	return log
}
