package fetch

import "time"

// linearBackOff waits base + step*n before the n-th retry (0-based).
type linearBackOff struct {
	base time.Duration
	step time.Duration
	n    int
}

// NextBackOff implements backoff.BackOff.
func (l *linearBackOff) NextBackOff() time.Duration {
	d := l.base + l.step*time.Duration(l.n)
	l.n++
	return d
}

// Reset implements backoff.BackOff.
func (l *linearBackOff) Reset() {
	l.n = 0
}
