package olc

import "time"

const (
	initialBackoffInterval = 50 * time.Microsecond
	maxBackoffInterval     = 10 * time.Millisecond
)

func sleep(d time.Duration) {
	time.Sleep(d)
}
