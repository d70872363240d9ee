package clix

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"syncworker/internal/models"
)

type PaginationParams struct {
	Limit  int
	Offset int
}

func ParsePagination(flags *pflag.FlagSet) (PaginationParams, error) {
	limit, _ := flags.GetInt("limit")
	offset, _ := flags.GetInt("offset")
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return PaginationParams{Limit: limit, Offset: offset}, nil
}

// Page returns the [start, end) window of a list of n items.
func (p PaginationParams) Page(n int) (int, int) {
	start := p.Offset
	if start > n {
		start = n
	}
	end := start + p.Limit
	if end > n {
		end = n
	}
	return start, end
}

var knownStates = map[string]bool{
	models.JobStatusPending:   true,
	models.JobStatusScheduled: true,
	models.JobStatusActive:    true,
	models.JobStatusRetrying:  true,
	models.JobStatusCompleted: true,
	models.JobStatusFailed:    true,
}

// ParseStates reads the comma separated --state flag. An empty result means
// no filtering.
func ParseStates(flags *pflag.FlagSet) ([]string, error) {
	statesStr, _ := flags.GetString("state")
	var states []string
	if statesStr != "" {
		// Trim space and filter out empty strings in one pass
		for _, s := range strings.Split(statesStr, ",") {
			trimmed := strings.ToLower(strings.TrimSpace(s))
			if trimmed == "" {
				continue
			}
			if !knownStates[trimmed] {
				return nil, fmt.Errorf("unknown job state %q", trimmed)
			}
			states = append(states, trimmed)
		}
	}
	return states, nil
}
