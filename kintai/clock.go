package kintai

import "time"

// Clock abstracts "now" so the engine and watchers can be driven in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
