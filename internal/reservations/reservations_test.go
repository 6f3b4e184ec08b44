package reservations

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmadsadek12/convoyd/internal/catalog"
)

func table(number, minSeats, maxSeats int, position string) catalog.Table {
	t := catalog.Table{TableNumber: number, MinSeats: minSeats, MaxSeats: maxSeats}
	if position != "" {
		t.PositionLabel = sql.NullString{String: position, Valid: true}
	}
	return t
}

func TestSelectTable_EnforcesMinAndMaxSeats(t *testing.T) {
	tables := []catalog.Table{
		table(1, 6, 8, ""),
		table(2, 2, 4, ""),
		table(3, 4, 6, ""),
	}

	// A party of 2 must not be seated at table 1 (min_seats 6) or table 3
	// (min_seats 4); only table 2 fits.
	got, err := selectTable(tables, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TableNumber)
}

func TestSelectTable_PartySizeEqualsMaxSeatsFits(t *testing.T) {
	tables := []catalog.Table{table(1, 2, 4, "")}
	got, err := selectTable(tables, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TableNumber)
}

func TestSelectTable_PartySizeOneOverMaxSeatsDoesNotFit(t *testing.T) {
	tables := []catalog.Table{table(1, 2, 4, "")}
	_, err := selectTable(tables, 5)
	assert.ErrorIs(t, err, ErrNoTableFits)
}

func TestSelectTable_TieBreaksBySmallestCapacityThenTableNumber(t *testing.T) {
	tables := []catalog.Table{
		table(5, 2, 6, ""),
		table(2, 2, 6, ""),
		table(9, 2, 4, ""),
	}
	// Table 9 is the smallest-capacity fit (4 seats); among the two 6-seat
	// tables, table_number 2 breaks the tie over 5.
	got, err := selectTable(tables, 4)
	require.NoError(t, err)
	assert.Equal(t, 9, got.TableNumber)

	got, err = selectTable([]catalog.Table{tables[0], tables[1]}, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TableNumber)
}

func TestSelectTable_NoCandidatesReturnsErrNoTableFits(t *testing.T) {
	_, err := selectTable(nil, 4)
	assert.ErrorIs(t, err, ErrNoTableFits)
}

func TestResolveTableByNumber(t *testing.T) {
	tables := []catalog.Table{
		table(1, 2, 4, ""),
		table(2, 6, 10, ""),
	}

	t.Run("fits", func(t *testing.T) {
		got, err := resolveTableByNumber(tables, 2, 8)
		require.NoError(t, err)
		assert.Equal(t, 2, got.TableNumber)
	})

	t.Run("does not fit party size", func(t *testing.T) {
		_, err := resolveTableByNumber(tables, 1, 10)
		assert.ErrorIs(t, err, ErrNoTableFits)
	})

	t.Run("table number not found", func(t *testing.T) {
		_, err := resolveTableByNumber(tables, 99, 2)
		assert.ErrorIs(t, err, ErrNoTableFits)
	})
}

func TestFilterByPosition_CaseInsensitiveSubstring(t *testing.T) {
	tables := []catalog.Table{
		table(1, 2, 4, "Terrace View"),
		table(2, 2, 4, "Window Nook"),
		table(3, 2, 4, "Main Hall"),
	}

	got := filterByPosition(tables, "terrace")
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].TableNumber)

	got = filterByPosition(tables, "WINDOW")
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].TableNumber)

	got = filterByPosition(tables, "patio")
	assert.Empty(t, got)
}

func TestIsUniqueViolation_DetectsSlotExclusion(t *testing.T) {
	raced := &pq.Error{Code: pq.ErrorCode(pqUniqueViolation)}

	assert.True(t, isUniqueViolation(raced), "a bare unique-violation pq.Error must be detected")
	assert.True(t, isUniqueViolation(fmt.Errorf("insert reservation: %w", raced)),
		"a wrapped unique-violation must still be detected via errors.As")
}

func TestIsUniqueViolation_IgnoresOtherErrors(t *testing.T) {
	otherPQErr := &pq.Error{Code: pq.ErrorCode("23502")} // not_null_violation
	assert.False(t, isUniqueViolation(otherPQErr))
	assert.False(t, isUniqueViolation(errors.New("some unrelated failure")))
	assert.False(t, isUniqueViolation(nil))
}
