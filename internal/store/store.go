// Package store persists the watering schedule as a flat key/value text file.
//
// The record is one "KEY: value" pair per line:
//
//	NOW: 2026-04-18 09:05:00.000000
//	NEXT-CHECK: 2026-04-19 09:05:00.000000
//	SETTING-DELAY: 0
//	SETTING-WATER: 2
//
// NEXT-CHECK is absent or holds the unset marker until the first watering.
package store

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/plant-nanny/internal/logic"
)

// Record keys.
const (
	KeyNow          = "NOW"
	KeyNextCheck    = "NEXT-CHECK"
	KeySettingDelay = "SETTING-DELAY"
	KeySettingWater = "SETTING-WATER"
)

// TimeLayout is the on-disk timestamp format. On read the fractional
// seconds are optional.
const TimeLayout = "2006-01-02 15:04:05.000000"

const parseLayout = "2006-01-02 15:04:05"

// unsetMarker is written for NEXT-CHECK before the first watering. Older
// save files use the same literal.
const unsetMarker = "False"

var (
	// ErrNotFound is returned by Load when no record has been saved yet.
	ErrNotFound = errors.New("store: no saved schedule")

	// ErrCorruptState is returned by Load when the record cannot be parsed.
	ErrCorruptState = errors.New("store: corrupt schedule state")
)

// FileStore reads and writes the schedule record at a fixed path.
type FileStore struct {
	path string
	loc  *time.Location
}

// NewFileStore creates a store for path. Timestamps are read and written
// in loc; nil means time.Local.
func NewFileStore(path string, loc *time.Location) *FileStore {
	if loc == nil {
		loc = time.Local
	}
	return &FileStore{path: path, loc: loc}
}

// Path returns the record's file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads and parses the record.
func (s *FileStore) Load() (logic.ScheduleState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return logic.ScheduleState{}, ErrNotFound
		}
		return logic.ScheduleState{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	return Parse(data, s.loc)
}

// Save replaces the record. The new content is written to a temporary file
// in the same directory and renamed into place, so readers see either the
// old record or the new one. The directory is synced after the rename.
func (s *FileStore) Save(state logic.ScheduleState) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(Format(state, s.loc)); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	if err := syncDir(dir); err != nil {
		return fmt.Errorf("sync dir %s: %w", dir, err)
	}
	return nil
}

// syncDir flushes the directory entry so the rename survives power loss.
var syncDir = func(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	if err := d.Sync(); err != nil {
		d.Close()
		return err
	}
	return d.Close()
}

// Format renders state in the on-disk record format.
func Format(state logic.ScheduleState, loc *time.Location) []byte {
	if loc == nil {
		loc = time.Local
	}
	next := unsetMarker
	if state.HasNextCheck() {
		next = state.NextCheck.In(loc).Format(TimeLayout)
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "%s: %s\n", KeyNow, state.LastTick.In(loc).Format(TimeLayout))
	fmt.Fprintf(&b, "%s: %s\n", KeyNextCheck, next)
	fmt.Fprintf(&b, "%s: %d\n", KeySettingDelay, state.DelayIndex)
	fmt.Fprintf(&b, "%s: %d\n", KeySettingWater, state.MoistureIndex)
	return b.Bytes()
}

// Parse decodes a record. Every failure wraps ErrCorruptState. Unknown keys
// are ignored; indices are returned as written (callers clamp them).
func Parse(data []byte, loc *time.Location) (logic.ScheduleState, error) {
	if loc == nil {
		loc = time.Local
	}

	fields := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return logic.ScheduleState{}, fmt.Errorf("%w: line %d: missing ':'", ErrCorruptState, n)
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := sc.Err(); err != nil {
		return logic.ScheduleState{}, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	var state logic.ScheduleState
	var err error

	raw, ok := fields[KeyNow]
	if !ok {
		return logic.ScheduleState{}, fmt.Errorf("%w: missing %s", ErrCorruptState, KeyNow)
	}
	if state.LastTick, err = time.ParseInLocation(parseLayout, raw, loc); err != nil {
		return logic.ScheduleState{}, fmt.Errorf("%w: %s: %v", ErrCorruptState, KeyNow, err)
	}

	if raw, ok := fields[KeyNextCheck]; ok && !isUnset(raw) {
		if state.NextCheck, err = time.ParseInLocation(parseLayout, raw, loc); err != nil {
			return logic.ScheduleState{}, fmt.Errorf("%w: %s: %v", ErrCorruptState, KeyNextCheck, err)
		}
	}

	if state.DelayIndex, err = parseIndex(fields, KeySettingDelay); err != nil {
		return logic.ScheduleState{}, err
	}
	if state.MoistureIndex, err = parseIndex(fields, KeySettingWater); err != nil {
		return logic.ScheduleState{}, err
	}
	return state, nil
}

func parseIndex(fields map[string]string, key string) (int, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", ErrCorruptState, key)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q is not an integer", ErrCorruptState, key, raw)
	}
	return n, nil
}

func isUnset(v string) bool {
	switch v {
	case "", unsetMarker, "None":
		return true
	}
	return false
}
