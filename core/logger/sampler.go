package logger

import (
	"strconv"
	"strings"
	"sync"
)

// eventSampler lets num out of every den debug lines through, counted per
// event so a chatty event cannot starve a rare one.
type eventSampler struct {
	mu       sync.Mutex
	num, den int
	counters map[string]int
}

func newEventSampler(num, den int) *eventSampler {
	s := &eventSampler{}
	s.Set(num, den)
	return s
}

// Set changes the ratio and resets the counters. A non-positive value disables sampling.
func (s *eventSampler) Set(num, den int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if num <= 0 || den <= 0 {
		num, den = 0, 0
	}
	if num > den {
		num = den
	}
	s.num, s.den = num, den
	s.counters = make(map[string]int)
}

// Allow reports whether the next line of event passes.
func (s *eventSampler) Allow(event string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.den == 0 {
		return true
	}
	n := s.counters[event] + 1
	if n > s.den {
		n = 1
	}
	s.counters[event] = n
	return n <= s.num
}

// parseRatio reads "num/den" or a bare "den" meaning 1/den. Anything else,
// zero included, disables sampling.
func parseRatio(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if a, b, ok := strings.Cut(spec, "/"); ok {
		num, err1 := strconv.Atoi(strings.TrimSpace(a))
		den, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 != nil || err2 != nil {
			return 0, 0
		}
		return num, den
	}
	if v, err := strconv.Atoi(spec); err == nil && v > 0 {
		return 1, v
	}
	return 0, 0
}
