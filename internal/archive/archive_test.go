package archive

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmadsadek12/convoyd/internal/coldstore"
	"github.com/ahmadsadek12/convoyd/internal/orders"
)

type fakeOrderStore struct {
	order    *orders.Order
	items    []orders.OrderItem
	history  []orders.StatusHistoryEntry
	deleted  []string
	loadErr  error
	deleteErr error
}

func (f *fakeOrderStore) LoadForArchive(ctx context.Context, orderID string) (*orders.Order, []orders.OrderItem, []orders.StatusHistoryEntry, error) {
	if f.loadErr != nil {
		return nil, nil, nil, f.loadErr
	}
	return f.order, f.items, f.history, nil
}

func (f *fakeOrderStore) DeleteArchived(ctx context.Context, orderID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, orderID)
	return nil
}

type fakeColdStore struct {
	upserts []coldstore.OrderLog
	err     error
}

func (f *fakeColdStore) Upsert(ctx context.Context, log coldstore.OrderLog) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, log)
	return nil
}

func completedOrder(id string) *orders.Order {
	return &orders.Order{
		ID:          id,
		BusinessID:  "biz-1",
		UserID:      "biz-1",
		Status:      orders.StatusCompleted,
		OrderSource: "telegram",
		CompletedAt: sql.NullTime{Time: time.Now(), Valid: true},
	}
}

func TestPipeline_Archive_MovesOrderToColdStore(t *testing.T) {
	orderStore := &fakeOrderStore{
		order: completedOrder("order-1"),
		items: []orders.OrderItem{{ItemID: "item-1", NameAtTime: "Margarita", Quantity: 2, PriceAtTime: 9.5}},
		history: []orders.StatusHistoryEntry{
			{Status: orders.StatusAccepted, ChangedBy: "system", ChangedAt: time.Now().Add(-time.Hour)},
			{Status: orders.StatusCompleted, ChangedBy: "system", ChangedAt: time.Now()},
		},
	}
	coldStore := &fakeColdStore{}
	pipeline := New(orderStore, coldStore)

	err := pipeline.Archive(context.Background(), "order-1")
	require.NoError(t, err)

	require.Len(t, coldStore.upserts, 1)
	log := coldStore.upserts[0]
	assert.Equal(t, "order-1", log.OrderID)
	assert.Equal(t, "completed", log.FinalStatus)
	assert.Equal(t, log.StatusTimeline[len(log.StatusTimeline)-1].Status, log.FinalStatus)
	assert.True(t, log.ArchivedAt.After(log.CompletedAt.Add(-time.Minute)))
	require.Len(t, orderStore.deleted, 1)
	assert.Equal(t, "order-1", orderStore.deleted[0])
}

func TestPipeline_Archive_RejectsNonTerminalOrder(t *testing.T) {
	orderStore := &fakeOrderStore{order: &orders.Order{ID: "order-2", Status: orders.StatusAccepted}}
	coldStore := &fakeColdStore{}
	pipeline := New(orderStore, coldStore)

	err := pipeline.Archive(context.Background(), "order-2")
	require.Error(t, err)
	assert.Empty(t, coldStore.upserts)
}

func TestPipeline_Archive_ColdStoreFailureLeavesOperationalRowIntact(t *testing.T) {
	orderStore := &fakeOrderStore{order: completedOrder("order-3")}
	coldStore := &fakeColdStore{err: assert.AnError}
	pipeline := New(orderStore, coldStore)

	err := pipeline.Archive(context.Background(), "order-3")
	require.Error(t, err)
	assert.Empty(t, orderStore.deleted)
}

func TestPipeline_Archive_IsIdempotentOnRerun(t *testing.T) {
	orderStore := &fakeOrderStore{order: completedOrder("order-4")}
	coldStore := &fakeColdStore{}
	pipeline := New(orderStore, coldStore)

	require.NoError(t, pipeline.Archive(context.Background(), "order-4"))
	require.NoError(t, pipeline.Archive(context.Background(), "order-4"))
	assert.Len(t, coldStore.upserts, 2)
	assert.Len(t, orderStore.deleted, 2)
}
