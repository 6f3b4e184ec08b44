package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmadsadek12/convoyd/internal/orders"
)

type fakeOrderStore struct {
	due          []orders.Order
	listErr      error
	completeErr  map[string]error
	completed    []string
}

func (f *fakeOrderStore) ListDueScheduledRequests(ctx context.Context, now time.Time, limit int) ([]orders.Order, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit < len(f.due) {
		return f.due[:limit], nil
	}
	return f.due, nil
}

func (f *fakeOrderStore) CompleteOrder(ctx context.Context, businessID, orderID, changedBy string) (*orders.Order, error) {
	if err, ok := f.completeErr[orderID]; ok && err != nil {
		return nil, err
	}
	f.completed = append(f.completed, orderID)
	return &orders.Order{ID: orderID, BusinessID: businessID, Status: orders.StatusCompleted}, nil
}

func TestScheduledRequestCompleter_CompletesAllDueOrders(t *testing.T) {
	store := &fakeOrderStore{due: []orders.Order{
		{ID: "order-1", BusinessID: "biz-1"},
		{ID: "order-2", BusinessID: "biz-1"},
	}}
	completer := NewScheduledRequestCompleter(store, 100, nil)

	err := completer.Run(context.Background(), time.Now())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"order-1", "order-2"}, store.completed)
}

func TestScheduledRequestCompleter_OneFailureDoesNotBlockOthers(t *testing.T) {
	store := &fakeOrderStore{
		due: []orders.Order{
			{ID: "order-1", BusinessID: "biz-1"},
			{ID: "order-2", BusinessID: "biz-1"},
		},
		completeErr: map[string]error{"order-1": assert.AnError},
	}
	completer := NewScheduledRequestCompleter(store, 100, nil)

	err := completer.Run(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"order-2"}, store.completed)
}

func TestScheduledRequestCompleter_RespectsBatchSize(t *testing.T) {
	store := &fakeOrderStore{due: []orders.Order{
		{ID: "order-1", BusinessID: "biz-1"},
		{ID: "order-2", BusinessID: "biz-1"},
		{ID: "order-3", BusinessID: "biz-1"},
	}}
	completer := NewScheduledRequestCompleter(store, 2, nil)

	err := completer.Run(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Len(t, store.completed, 2)
}

func TestScheduledRequestCompleter_PropagatesListError(t *testing.T) {
	store := &fakeOrderStore{listErr: assert.AnError}
	completer := NewScheduledRequestCompleter(store, 100, nil)

	err := completer.Run(context.Background(), time.Now())
	require.Error(t, err)
}
