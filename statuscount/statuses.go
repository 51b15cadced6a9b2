// Package statuscount is a dense histogram over HTTP status codes.
package statuscount

import "fmt"

// Counters is a dense u64[1000] histogram indexed by numeric status code.
// The zero value is ready to use.
type Counters struct {
	lanes [1000]uint64
}

// Sink is the minimal contract a response consumer needs in order to
// record a status code without depending on the concrete Counters type.
// *Counters satisfies it; callers that must not share a Counters across
// concurrent goroutines (see runner.Runner) can supply a private
// implementation instead.
type Sink interface {
	Record(status int) error
}

// OutOfRangeError is returned by Record when the status code cannot be a
// real HTTP status (outside 0..=999).
type OutOfRangeError struct {
	Status int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("status code %d is out of range (must be 0..=999)", e.Status)
}

// Record increments the lane for status. status must be in 0..=999;
// anything else is a programmer error since HTTP restricts status codes to
// three digits.
func (c *Counters) Record(status int) error {
	if status < 0 || status > 999 {
		return &OutOfRangeError{Status: status}
	}
	c.RecordUnchecked(uint16(status))
	return nil
}

// RecordUnchecked increments the lane for status without bounds checking.
// Callers must ensure status <= 999.
func (c *Counters) RecordUnchecked(status uint16) {
	c.lanes[status]++
}

// Join sums other into c, lane-wise.
func (c *Counters) Join(other Counters) {
	for i := range c.lanes {
		c.lanes[i] += other.lanes[i]
	}
}

// Iter calls fn for every non-zero (status, count) pair, in ascending
// status order.
func (c Counters) Iter(fn func(status uint16, count uint64)) {
	for status, count := range c.lanes {
		if count != 0 {
			fn(uint16(status), count)
		}
	}
}

// Sum returns the total count across all lanes.
func (c Counters) Sum() uint64 {
	var total uint64
	for _, v := range c.lanes {
		total += v
	}
	return total
}
