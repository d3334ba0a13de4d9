package security

import "time"

// ResponseFloor pads sensitive request handling to a minimum elapsed duration
// so response timing does not reveal which internal branch was taken.
type ResponseFloor struct {
	floor time.Duration
	now   func() time.Time
	sleep func(time.Duration)
}

// NewResponseFloor creates a floor of the given duration. A non-positive
// duration disables padding.
func NewResponseFloor(floor time.Duration) *ResponseFloor {
	return &ResponseFloor{
		floor: floor,
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// WithClock overrides the time and sleep functions. Intended for tests.
func (f *ResponseFloor) WithClock(now func() time.Time, sleep func(time.Duration)) *ResponseFloor {
	f.now = now
	f.sleep = sleep
	return f
}

// Wait blocks until at least the floor duration has elapsed since start.
// Returns immediately when the work already took longer than the floor.
func (f *ResponseFloor) Wait(start time.Time) {
	if f.floor <= 0 {
		return
	}

	elapsed := f.now().Sub(start)
	if remaining := f.floor - elapsed; remaining > 0 {
		f.sleep(remaining)
	}
}
