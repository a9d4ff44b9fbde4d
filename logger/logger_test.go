package logger

import (
	"bytes"
	"testing"

	"github.com/gavinwade12/canLogger/protocols/slcan"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestToZapLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		" warn ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, toZapLevel(in), in)
	}
}

func TestNewHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	var l slcan.Logger = New(&buf, WarnLevel)

	l.Infof("hidden %d", 1)
	l.Warnf("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "shown 2")
}
