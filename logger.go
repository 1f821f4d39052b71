package xplorer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sync"
	"text/template"
	"time"
)

// Logger logs information generated while the server runs: the Server
// logs its start and stop, and the P2P transport logs stream frame read
// failures at DEBUG level.
// Lines are rendered through a text/template so deployments can reshape the
// format without code changes.
type Logger struct {
	appName string
	enabled bool

	template   *template.Template
	bufferPool *sync.Pool
	mu         sync.Mutex

	Output io.Writer
}

// level is the severity of one log line.
type level uint8

// The log levels, ordered least to most severe.
const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
	levelFatal
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

// NewLogger returns a Logger for appName that renders lines using format
// (a "${field}"-placeholder string, see DefaultConfig.LoggerFormat for the
// default) and writes to os.Stdout.
func NewLogger(appName, format string) *Logger {
	return &Logger{
		appName: appName,
		enabled: true,
		template: template.Must(
			template.New("xplorer-logger").Parse(expandPlaceholders(format)),
		),
		bufferPool: &sync.Pool{
			New: func() interface{} { return &bytes.Buffer{} },
		},
		Output: os.Stdout,
	}
}

// placeholderPattern matches one "${field}" placeholder of a logger format.
var placeholderPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// expandPlaceholders rewrites "${field}" placeholders into the text/template
// actions that look the field up in the per-line data map, so config files
// carry the compact form rather than raw template syntax.
func expandPlaceholders(format string) string {
	return placeholderPattern.ReplaceAllString(format, `{{index . "$1"}}`)
}

// SetEnabled turns logging on or off entirely.
func (l *Logger) SetEnabled(enabled bool) { l.enabled = enabled }

// Debug logs at DEBUG level.
func (l *Logger) Debug(args ...interface{}) { l.log(levelDebug, fmt.Sprint(args...)) }

// Debugf logs at DEBUG level with formatting.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(levelDebug, fmt.Sprintf(format, args...))
}

// Info logs at INFO level.
func (l *Logger) Info(args ...interface{}) { l.log(levelInfo, fmt.Sprint(args...)) }

// Infof logs at INFO level with formatting.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(levelInfo, fmt.Sprintf(format, args...))
}

// Warn logs at WARN level.
func (l *Logger) Warn(args ...interface{}) { l.log(levelWarn, fmt.Sprint(args...)) }

// Warnf logs at WARN level with formatting.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(levelWarn, fmt.Sprintf(format, args...))
}

// Error logs at ERROR level.
func (l *Logger) Error(args ...interface{}) { l.log(levelError, fmt.Sprint(args...)) }

// Errorf logs at ERROR level with formatting.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(levelError, fmt.Sprintf(format, args...))
}

// log renders lvl/message through l.template and writes the result. All
// output is serialized through l.mu.
func (l *Logger) log(lvl level, message string) {
	if !l.enabled {
		return
	}

	data := map[string]interface{}{
		"app_name":    l.appName,
		"time_rfc3339": time.Now().Format(time.RFC3339),
		"level":       levelNames[lvl],
		"message":     message,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	buf := l.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		l.bufferPool.Put(buf)
	}()

	if err := l.template.Execute(buf, data); err != nil {
		// Fall back to a plain line rather than dropping the message.
		fmt.Fprintf(l.Output, "[%s] %s: %s\n", levelNames[lvl], l.appName, message)
		return
	}

	buf.WriteByte('\n')
	l.Output.Write(buf.Bytes())
}

// Printj logs a structured message as a JSON object, for callers that want
// a machine-parseable line without going through the template at all.
func (l *Logger) Printj(lvl string, m map[string]interface{}) {
	if !l.enabled {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	m["app_name"] = l.appName
	m["level"] = lvl
	m["time_rfc3339"] = time.Now().Format(time.RFC3339)

	json.NewEncoder(l.Output).Encode(m)
}
