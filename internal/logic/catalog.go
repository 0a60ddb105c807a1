package logic

import (
	"fmt"
	"time"
)

// TimeUnit is the unit of a delay option.
type TimeUnit int

const (
	UnitDay TimeUnit = iota + 1
	UnitWeek
)

// Day is one calendar day of elapsed time.
const Day = 24 * time.Hour

// DelayOption is a watering interval such as "2 days" or "1 week".
type DelayOption struct {
	Unit   TimeUnit
	Amount int
}

// Duration is the nominal length of the option, counting 24h days. Use
// After to schedule against the wall clock.
func (o DelayOption) Duration() time.Duration {
	return time.Duration(o.days()) * Day
}

// After returns the calendar time one delay after t. Days are counted on
// the wall clock, so a daylight saving change does not shift the hour.
func (o DelayOption) After(t time.Time) time.Time {
	return t.AddDate(0, 0, o.days())
}

func (o DelayOption) days() int {
	if o.Unit == UnitWeek {
		return 7 * o.Amount
	}
	return o.Amount
}

// String returns the short label shown on the panel, e.g. "2D" or "1W".
func (o DelayOption) String() string {
	switch o.Unit {
	case UnitDay:
		return fmt.Sprintf("%dD", o.Amount)
	case UnitWeek:
		return fmt.Sprintf("%dW", o.Amount)
	default:
		return fmt.Sprintf("%d UKN", o.Amount)
	}
}

// MoistureTarget is the minimum acceptable soil moisture, in percent.
type MoistureTarget struct {
	Percent int
}

func (m MoistureTarget) String() string {
	return fmt.Sprintf("%d%%", m.Percent)
}

// DelayCatalog is the ordered list of selectable watering intervals.
var DelayCatalog = [...]DelayOption{
	{UnitDay, 1},
	{UnitDay, 2},
	{UnitDay, 3},
	{UnitDay, 4},
	{UnitDay, 5},
	{UnitDay, 6},
	{UnitWeek, 1},
	{UnitWeek, 2},
	{UnitWeek, 3},
	{UnitWeek, 4},
}

// MoistureCatalog is the ordered list of selectable moisture targets.
var MoistureCatalog = [...]MoistureTarget{
	{10},
	{15},
	{20},
	{25},
}

// ClampDelayIndex returns i if it indexes DelayCatalog, otherwise 0.
func ClampDelayIndex(i int) int {
	if i < 0 || i >= len(DelayCatalog) {
		return 0
	}
	return i
}

// ClampMoistureIndex returns i if it indexes MoistureCatalog, otherwise 0.
func ClampMoistureIndex(i int) int {
	if i < 0 || i >= len(MoistureCatalog) {
		return 0
	}
	return i
}

// Clamp returns the selection with both indices forced into catalog range.
func (s Selection) Clamp() Selection {
	return Selection{
		DelayIndex:    ClampDelayIndex(s.DelayIndex),
		MoistureIndex: ClampMoistureIndex(s.MoistureIndex),
	}
}

// Delay returns the catalog entry for the (clamped) delay index.
func (s Selection) Delay() DelayOption {
	return DelayCatalog[ClampDelayIndex(s.DelayIndex)]
}

// Target returns the catalog entry for the (clamped) moisture index.
func (s Selection) Target() MoistureTarget {
	return MoistureCatalog[ClampMoistureIndex(s.MoistureIndex)]
}
