package clix

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("limit", 0, "")
	fs.Int("offset", 0, "")
	fs.String("state", "", "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestParsePagination(t *testing.T) {
	p, err := ParsePagination(newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, PaginationParams{Limit: 20, Offset: 0}, p)

	p, err = ParsePagination(newFlags(t, "--limit=5", "--offset=-3"))
	require.NoError(t, err)
	assert.Equal(t, PaginationParams{Limit: 5, Offset: 0}, p)
}

func TestPaginationParams_Page(t *testing.T) {
	tests := []struct {
		p          PaginationParams
		n          int
		start, end int
	}{
		{PaginationParams{Limit: 20}, 3, 0, 3},
		{PaginationParams{Limit: 2, Offset: 1}, 5, 1, 3},
		{PaginationParams{Limit: 2, Offset: 9}, 5, 5, 5},
	}
	for _, tt := range tests {
		start, end := tt.p.Page(tt.n)
		assert.Equal(t, tt.start, start)
		assert.Equal(t, tt.end, end)
	}
}

func TestParseStates(t *testing.T) {
	states, err := ParseStates(newFlags(t, "--state", " Active, ,retrying"))
	require.NoError(t, err)
	assert.Equal(t, []string{"active", "retrying"}, states)

	states, err = ParseStates(newFlags(t))
	require.NoError(t, err)
	assert.Empty(t, states)

	_, err = ParseStates(newFlags(t, "--state", "sleeping"))
	assert.Error(t, err)
}
