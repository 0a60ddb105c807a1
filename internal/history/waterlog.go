package history

import (
	"fmt"
	"io"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// TimeLayout is the timestamp format used in water log lines.
const TimeLayout = "2006-01-02 15:04:05.000000"

// FormatLine renders the water log line for a final reading.
func FormatLine(percent int, at time.Time) string {
	return fmt.Sprintf("Moisture %03d%% at %s\n", percent, at.Format(TimeLayout))
}

// LogRecorder appends one line per cycle to a text log.
type LogRecorder struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLogRecorder writes lines to w.
func NewLogRecorder(w io.Writer) *LogRecorder {
	return &LogRecorder{w: w}
}

// NewRotatingLogRecorder appends to path, rotating it once it grows past
// maxSizeMB.
func NewRotatingLogRecorder(path string, maxSizeMB int) (*LogRecorder, io.Closer) {
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: 5,
	}
	return NewLogRecorder(w), w
}

// Record appends the final reading of e.
func (l *LogRecorder) Record(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := io.WriteString(l.w, FormatLine(e.FinalPercent, e.FinishedAt)); err != nil {
		return fmt.Errorf("write water log: %w", err)
	}
	return nil
}
