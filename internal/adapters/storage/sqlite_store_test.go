package storage

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Timestamps are compared lexically in SQL, so the stored layout must keep
// chronological and lexical order in agreement even across sub-second
// fractions. RFC3339Nano trims trailing zeros and breaks that within a
// second, which is why a fixed-width layout is used instead.
func TestSQLiteTimeLayoutOrdersLexically(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{
		base,
		base.Add(100 * time.Millisecond),
		base.Add(500 * time.Millisecond),
		base.Add(999 * time.Millisecond),
		base.Add(time.Second),
		base.Add(time.Second + 250*time.Millisecond),
		base.Add(2 * time.Second),
	}

	formatted := make([]string, len(times))
	for i, ts := range times {
		formatted[i] = ts.Format(sqliteTimeLayout)
	}

	assert.True(t, sort.StringsAreSorted(formatted), "lexical order must match chronological order: %v", formatted)

	// Every stored value has the same length regardless of the fraction.
	for _, s := range formatted[1:] {
		assert.Len(t, s, len(formatted[0]))
	}

	// Values written with the fixed-width layout still parse back exactly.
	for i, s := range formatted {
		parsed, err := time.Parse(time.RFC3339Nano, s)
		require.NoError(t, err)
		assert.True(t, parsed.Equal(times[i]))
	}
}
