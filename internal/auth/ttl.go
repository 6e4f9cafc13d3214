package auth

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

// maxDays is the largest day count that fits in a time.Duration.
const maxDays = math.MaxInt64 / int64(day)

// ParseTTL parses a token lifetime such as "15m", "7d" or "168h". A trailing
// "d" counts whole days; anything else must be a Go duration. Non-positive
// lifetimes are rejected.
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	var (
		d   time.Duration
		err error
	)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		var n int64
		n, err = strconv.ParseInt(days, 10, 64)
		if err == nil && n > maxDays {
			err = errors.New("day count out of range")
		}
		d = time.Duration(n) * day
	} else {
		d, err = time.ParseDuration(s)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid token ttl %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid token ttl %q: must be positive", s)
	}
	return d, nil
}
