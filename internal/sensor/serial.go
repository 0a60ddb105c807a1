package sensor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"
)

// DefaultBaud matches the microcontroller sketch.
const DefaultBaud = 9600

// maxEmptyLines bounds how many blank lines Read skips before giving up.
const maxEmptyLines = 50

// errReadTimeout is reported when the port returns no bytes. The serial
// driver signals an expired read timeout as (0, nil).
var errReadTimeout = errors.New("read timeout")

// timeoutReader turns empty reads into errReadTimeout so bufio does not
// spin on them.
type timeoutReader struct {
	r io.Reader
}

func (t timeoutReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n == 0 && err == nil && len(p) > 0 {
		return 0, errReadTimeout
	}
	return n, err
}

// SerialSource reads moisture from a serial port.
type SerialSource struct {
	port   io.ReadCloser
	reader *bufio.Reader

	// resync is set after a partial line was dropped. The next complete
	// line is the tail of that fragment and is discarded too.
	resync bool
}

// OpenSerial opens the serial device at path. readTimeout bounds each
// underlying read so a silent sensor cannot block the watering cycle.
func OpenSerial(path string, baud int, readTimeout time.Duration) (*SerialSource, error) {
	port, err := serial.Open(path, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", path, err)
	}
	if readTimeout > 0 {
		if err := port.SetReadTimeout(readTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("set read timeout on %s: %w", path, err)
		}
	}
	return NewSerialSource(port), nil
}

// NewSerialSource wraps an already-open stream. Useful for tests.
func NewSerialSource(port io.ReadCloser) *SerialSource {
	return &SerialSource{port: port, reader: bufio.NewReader(timeoutReader{r: port})}
}

// Read returns the next non-empty reading from the stream. Only lines
// terminated by a newline are parsed; a read that ends mid-line fails with
// ErrUnavailable and the fragment is discarded.
func (s *SerialSource) Read() (int, error) {
	for i := 0; i < maxEmptyLines; i++ {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if line != "" {
				s.resync = true
			}
			if err == io.EOF || errors.Is(err, errReadTimeout) {
				return 0, fmt.Errorf("%w: no data", ErrUnavailable)
			}
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if s.resync {
			s.resync = false
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		return ParseReading(line)
	}
	return 0, fmt.Errorf("%w: no data", ErrUnavailable)
}

// Close closes the port.
func (s *SerialSource) Close() error {
	return s.port.Close()
}
