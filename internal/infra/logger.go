// README: Structured logger construction (logrus), passed explicitly to services.
package infra

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

func NewLogger(level, format string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	if lv, err := logrus.ParseLevel(strings.TrimSpace(level)); err == nil {
		l.SetLevel(lv)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	if strings.EqualFold(format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return l
}

// NewDiscardLogger is used by tests that do not assert on log output.
func NewDiscardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
