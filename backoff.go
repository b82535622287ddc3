package olc

import (
	"github.com/cenkalti/backoff/v4"
)

// RepeatWithBackoff is an alternate retry boundary to Repeat: between
// failed attempts it sleeps according to policy instead of immediately
// spinning again. Repeat's tight loop matches the original SeqLock::wait's
// plain yield_now and is the right choice when critical sections are cheap;
// RepeatWithBackoff trades a little latency for materially less wasted CPU
// when a critical section is expensive enough that a busy retry loop under
// heavy contention would itself become the bottleneck (spec.md §5's
// "implementers may substitute bounded backoff", applied at the retry-
// boundary granularity rather than inside SeqLock's own spin loop, which
// stays a single atomic word with no extra state per spec.md §3).
//
// policy is reset before use and is not safe for concurrent reuse across
// goroutines - give each call its own policy, e.g. via DefaultBackoff().
func RepeatWithBackoff[T any](policy backoff.BackOff, fn func() T) T {
	policy.Reset()
	for {
		v, err := Catch(fn)
		if err == nil {
			return v
		}
		d := policy.NextBackOff()
		if d == backoff.Stop {
			// The policy gave up; fall back to an unbounded tight retry
			// rather than abandoning the critical section entirely, since
			// spec.md guarantees Repeat's retry terminates with probability
			// one given a finite number of writers.
			return Repeat(fn)
		}
		if d > 0 {
			sleep(d)
		}
	}
}

// DefaultBackoff returns a fresh exponential backoff policy with a small
// initial interval and a cap tuned for contended in-process retries (as
// opposed to backoff's usual home, retrying network calls).
func DefaultBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialBackoffInterval
	b.MaxInterval = maxBackoffInterval
	b.MaxElapsedTime = 0 // never gives up on its own; RepeatWithBackoff decides.
	return b
}
