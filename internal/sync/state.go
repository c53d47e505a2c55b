package sync

import (
	"fmt"
	"strings"
	"time"

	"alteran/kimai-agent/internal/kimai"
)

// Connection describes the last known server connectivity
type Connection struct {
	Connected bool
	LastError string
}

// Connection returns the connectivity state recorded by the last cycle
func (s *Service) Connection() Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Connection{Connected: s.connected, LastError: s.lastError}
}

// Tracking reports whether an active entry exists
func (s *Service) Tracking() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active != nil
}

// Active returns a copy of the active entry, if any
func (s *Service) Active() (kimai.Timesheet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return kimai.Timesheet{}, false
	}
	return *s.active, true
}

// Projects returns the cached project collection
func (s *Service) Projects() []kimai.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projects
}

// Activities returns the cached activity collection
func (s *Service) Activities() []kimai.Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activities
}

// Recent returns the cached recent entries
func (s *Service) Recent() []kimai.Timesheet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recent
}

// History returns the accumulated historical entries
func (s *Service) History() []kimai.Timesheet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history
}

// HasMoreHistory reports whether another history page may exist
func (s *Service) HasMoreHistory() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasMoreHistory
}

// HourlyRate returns the resolved rate for the active project, zero
// when unresolved
func (s *Service) HourlyRate() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hourlyRate
}

// Elapsed returns the running entry's elapsed time, zero when idle
func (s *Service) Elapsed() time.Duration {
	return s.clock.Elapsed()
}

// Earnings derives current earnings from the hourly rate and elapsed
// time; ok is false when idle or the rate is unresolved
func (s *Service) Earnings() (float64, bool) {
	s.mu.RLock()
	rate := s.hourlyRate
	tracking := s.active != nil
	s.mu.RUnlock()

	if !tracking || rate <= 0 {
		return 0, false
	}
	return rate * s.clock.Elapsed().Hours(), true
}

// FormattedEarnings renders earnings with thousands grouping and the
// given currency suffix, e.g. "1 234.50 EUR"
func (s *Service) FormattedEarnings(suffix string) (string, bool) {
	earnings, ok := s.Earnings()
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s %s", groupThousands(earnings), suffix), true
}

// groupThousands formats with two decimals and space-separated
// thousands groups
func groupThousands(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	dot := strings.IndexByte(s, '.')
	intPart, fracPart := s[:dot], s[dot:]

	sign := ""
	if strings.HasPrefix(intPart, "-") {
		sign = "-"
		intPart = intPart[1:]
	}

	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)

	return sign + strings.Join(groups, " ") + fracPart
}
