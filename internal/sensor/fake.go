package sensor

// FakeSource is a test double that returns scripted readings.
type FakeSource struct {
	// Readings contains scripted percentages. Each call to Read consumes
	// the next one; once exhausted the last is repeated.
	Readings []int

	// ReadError, if set, is returned by Read instead of a reading.
	ReadError error

	// FailAfter, if > 0, makes every read after the first FailAfter
	// return ErrUnavailable.
	FailAfter int

	// Reads counts calls to Read.
	Reads int

	index  int
	Closed bool
}

// NewFakeSource creates a FakeSource with the given readings.
func NewFakeSource(readings ...int) *FakeSource {
	return &FakeSource{Readings: readings}
}

// Read returns the next scripted reading.
func (f *FakeSource) Read() (int, error) {
	f.Reads++
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if f.FailAfter > 0 && f.Reads > f.FailAfter {
		return 0, ErrUnavailable
	}
	if len(f.Readings) == 0 {
		return 0, ErrUnavailable
	}

	r := f.Readings[f.index]
	if f.index < len(f.Readings)-1 {
		f.index++
	}
	return r, nil
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.Closed = true
	return nil
}
