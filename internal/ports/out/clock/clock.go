package clock

import "time"

// Clock stamps session creation, updates and completion, and anchors simulated
// contract dates.
type Clock interface {
	Now() time.Time
}
