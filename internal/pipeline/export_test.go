package pipeline

import "time"

// SetBackoff shortens retry waits in tests.
func (p *Pipeline) SetBackoff(initial, maxBackoff time.Duration) {
	p.backoff = initial
	p.maxBackoff = maxBackoff
}
