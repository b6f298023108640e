package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimpleFormatterComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("debug", &buf)

	logger.WithField(ComponentField, "qtm").WithField("session", "abc").Infof("Connected!")

	line := buf.String()
	assert.Contains(t, line, "[INF] [qtm] Connected! session=abc")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestWriterLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("warn", &buf)

	logger.Infof("hidden")
	logger.Warnf("shown %d", 1)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "[WAR] shown 1")
}

func TestWriterLoggerUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("chatty", &buf)

	logger.Debugf("debug line")
	logger.Infof("info line")

	assert.NotContains(t, buf.String(), "debug line")
	assert.Contains(t, buf.String(), "info line")
}
