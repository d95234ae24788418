package clock

import "time"

// SystemClock reads the wall clock in UTC at microsecond precision, the resolution
// Postgres keeps for timestamptz, so a stored session compares equal to the one
// that was written.
type SystemClock struct{}

func NewSystemClock() SystemClock { return SystemClock{} }

func (SystemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
