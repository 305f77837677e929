package testutil

import (
	"bytes"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestLogger(t *testing.T) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.DebugLevel)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return logger
}

// BufferedLogger returns a logger whose output is captured in the returned
// buffer.
func BufferedLogger(t *testing.T) (*logrus.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := TestLogger(t)
	logger.SetOutput(buf)
	logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})
	return logger, buf
}
