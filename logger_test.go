package xplorer

import (
	"bytes"
	"strings"
	"testing"
	"text/template"

	"github.com/stretchr/testify/assert"
)

func TestLoggerRendersTemplate(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("xplorer-test", "[${level}] ${app_name}: ${message}")
	l.Output = &buf

	l.Info("hello world")

	assert.Equal(t, "[INFO] xplorer-test: hello world\n", buf.String())
}

func TestLoggerDisabledSuppressesOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("xplorer-test", "${message}")
	l.Output = &buf
	l.SetEnabled(false)

	l.Error("should not appear")

	assert.Empty(t, buf.String())
}

func TestLoggerFallsBackOnTemplateError(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("xplorer-test", "${message}")
	l.Output = &buf
	// Executing a reference to an undefined template always fails.
	l.template = template.Must(template.New("broken").Parse(`{{template "undefined"}}`))

	l.Warn("plain message")
	assert.Equal(t, "[WARN] xplorer-test: plain message\n", buf.String())
}

func TestLoggerPrintjEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("xplorer-test", "${message}")
	l.Output = &buf

	l.Printj("INFO", map[string]interface{}{"event": "start"})

	out := buf.String()
	assert.True(t, strings.Contains(out, `"event":"start"`))
	assert.True(t, strings.Contains(out, `"app_name":"xplorer-test"`))
}
