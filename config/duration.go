package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// dayPattern matches a bare integer-or-decimal quantity followed by a 'd'
// (day) unit, the one unit time.ParseDuration doesn't already accept.
// rload's CLI (original_source/) accepts ns/us/ms/s/m/h/d; everything but
// 'd' is native to time.ParseDuration.
var dayPattern = regexp.MustCompile(`^([0-9]*\.?[0-9]+)d$`)

// ParseDuration extends time.ParseDuration with a day suffix, matching the
// unit set spec.md §6 documents for --duration and --timeout.
func ParseDuration(s string) (time.Duration, error) {
	if m := dayPattern.FindStringSubmatch(s); m != nil {
		days, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("parsing duration %q: %w", s, err)
		}
		return time.Duration(days * 24 * float64(time.Hour)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing duration %q: %w", s, err)
	}
	return d, nil
}
