// Package calendar buckets instants into local calendar days and supplies
// the clock the rest of the service reads.
package calendar

import (
	"sync"
	"time"
)

// DateKeyLayout formats a local calendar day as an ISO date.
const DateKeyLayout = "2006-01-02"

// Clock reports the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Calendar buckets instants into local calendar days for one timezone.
type Calendar struct {
	loc *time.Location
}

// New returns a Calendar for loc. A nil location means time.Local.
func New(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.Local
	}
	return Calendar{loc: loc}
}

// Load resolves an IANA timezone name ("Local" and "" mean the host zone).
func Load(name string) (Calendar, error) {
	if name == "" || name == "Local" {
		return New(time.Local), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Calendar{}, err
	}
	return New(loc), nil
}

// Location returns the calendar's timezone.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

// TodayKey returns the calendar-day identifier of instant in the calendar's timezone.
func (c Calendar) TodayKey(instant time.Time) string {
	return instant.In(c.Location()).Format(DateKeyLayout)
}

// StartOfDay returns local midnight at the beginning of instant's day.
func (c Calendar) StartOfDay(instant time.Time) time.Time {
	local := instant.In(c.Location())
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.Location())
}

// EndOfDay returns local midnight at the beginning of the following day.
// Days are stepped with time.Date so 23h and 25h DST days come out right.
func (c Calendar) EndOfDay(instant time.Time) time.Time {
	local := instant.In(c.Location())
	y, m, d := local.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, c.Location())
}

// UntilEndOfDay returns the time remaining from instant until the end of its local day.
func (c Calendar) UntilEndOfDay(instant time.Time) time.Duration {
	return c.EndOfDay(instant).Sub(instant)
}

// DayLength returns the full length of instant's local day.
func (c Calendar) DayLength(instant time.Time) time.Duration {
	return c.UntilEndOfDay(c.StartOfDay(instant))
}

// FakeClock is a manually advanced Clock for tests and simulations.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock returns a FakeClock frozen at now.
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

// Now returns the frozen instant.
func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d.
func (f *FakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Set moves the clock to t.
func (f *FakeClock) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}
