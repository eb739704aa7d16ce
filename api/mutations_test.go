package api_test

import (
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plateful/plateful-client/api"
	"github.com/plateful/plateful-client/cache"
	"github.com/plateful/plateful-client/types"
	"github.com/plateful/plateful-client/utils"
)

func seedOwnRestaurant(f *apiFixture, own *types.OwnRestaurant) {
	f.store.Write(api.KeyOwnRestaurant, own, false)
}

func readOwnRestaurant(t *testing.T, f *apiFixture) *types.OwnRestaurant {
	t.Helper()
	own, ok := f.store.Read(api.KeyOwnRestaurant).Data.(*types.OwnRestaurant)
	require.True(t, ok)
	return own
}

func sampleOwnRestaurant(orderID uuid.UUID, status types.OrderStatus) *types.OwnRestaurant {
	return &types.OwnRestaurant{
		ID:             uuid.New(),
		RestaurantName: "Luigi's",
		AvgWaitTime:    15,
		Orders: []types.Order{{
			ID:        orderID,
			Status:    status,
			CreatedAt: time.Date(2026, 9, 1, 11, 30, 0, 0, time.UTC),
		}},
	}
}

func TestDeliveredOrderStaysVisibleThroughGraceWindow(t *testing.T) {
	orderID := uuid.New()

	mux := http.NewServeMux()
	mux.HandleFunc("/orders/"+orderID.String()+"/status", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var payload map[string]types.OrderStatus
		require.NoError(t, utils.Unmarshal(raw, &payload))
		require.Equal(t, types.OrderDelivered, payload["status"])
		w.Write([]byte(`{}`))
	})

	f := newAPIFixture(t, mux)
	seedOwnRestaurant(f, sampleOwnRestaurant(orderID, types.OrderReady))

	err := f.client.UpdateOrderStatus(context.Background(), orderID, types.OrderDelivered)
	require.NoError(t, err)

	// Inside the window: delivered but still on the working list.
	own := readOwnRestaurant(t, f)
	require.Len(t, own.Orders, 1)
	assert.Equal(t, types.OrderDelivered, own.Orders[0].Status)

	active := f.client.ActiveOrders()
	require.Len(t, active, 1)
	assert.Equal(t, orderID, active[0].ID)

	f.clock.Advance(1900 * time.Millisecond)
	assert.Len(t, f.client.ActiveOrders(), 1, "window has not elapsed yet")

	f.clock.Advance(100 * time.Millisecond)
	assert.Empty(t, f.client.ActiveOrders())
	assert.Empty(t, readOwnRestaurant(t, f).Orders, "second local write drops the record")
}

func TestDeliveredRejectionRollsBackAndCancelsWindow(t *testing.T) {
	orderID := uuid.New()
	server := sampleOwnRestaurant(orderID, types.OrderReady)

	mux := http.NewServeMux()
	mux.HandleFunc("/orders/"+orderID.String()+"/status", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"detail":"order already closed"}`))
	})
	mux.HandleFunc("/restaurants/me", func(w http.ResponseWriter, r *http.Request) {
		body, err := utils.Marshal(server)
		require.NoError(t, err)
		w.Write(body)
	})

	f := newAPIFixture(t, mux)

	// A mounted dashboard registers the aggregate fetch; rollback
	// re-fetches through it.
	unsubscribe, err := f.client.SubscribeOwnRestaurant(nil)
	require.NoError(t, err)
	defer unsubscribe()

	require.Eventually(t, func() bool {
		_, ok := f.store.Read(api.KeyOwnRestaurant).Data.(*types.OwnRestaurant)
		return ok
	}, time.Second, 5*time.Millisecond)

	err = f.client.UpdateOrderStatus(context.Background(), orderID, types.OrderDelivered)
	require.Error(t, err)

	var httpErr *types.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusConflict, httpErr.Status)

	// Server truth restores the pre-mutation status.
	require.Eventually(t, func() bool {
		own, ok := f.store.Read(api.KeyOwnRestaurant).Data.(*types.OwnRestaurant)
		return ok && len(own.Orders) == 1 && own.Orders[0].Status == types.OrderReady
	}, time.Second, 5*time.Millisecond)

	// The cancelled window never removes the order.
	f.clock.Advance(time.Minute)
	active := f.client.ActiveOrders()
	require.Len(t, active, 1)
	assert.Equal(t, types.OrderReady, active[0].Status)
}

func TestNonDeliveredTransitionRevalidatesAggregate(t *testing.T) {
	orderID := uuid.New()

	var refetches atomic.Int32
	server := sampleOwnRestaurant(orderID, types.OrderPreparing)
	server.AvgWaitTime = 20 // server-computed drift the re-fetch must pick up

	mux := http.NewServeMux()
	mux.HandleFunc("/orders/"+orderID.String()+"/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/restaurants/me", func(w http.ResponseWriter, r *http.Request) {
		refetches.Add(1)
		body, err := utils.Marshal(server)
		require.NoError(t, err)
		w.Write(body)
	})

	f := newAPIFixture(t, mux)
	seedOwnRestaurant(f, sampleOwnRestaurant(orderID, types.OrderPending))

	unsubscribe, err := f.client.SubscribeOwnRestaurant(nil)
	require.NoError(t, err)
	defer unsubscribe()

	err = f.client.UpdateOrderStatus(context.Background(), orderID, types.OrderPreparing)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		own, ok := f.store.Read(api.KeyOwnRestaurant).Data.(*types.OwnRestaurant)
		return ok && own.AvgWaitTime == 20
	}, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, refetches.Load(), int32(1))
}

func TestUpdateOrderStatusRejectsUnknownStatus(t *testing.T) {
	var called atomic.Bool
	f := newAPIFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
	}))

	err := f.client.UpdateOrderStatus(context.Background(), uuid.New(), types.OrderStatus("teleported"))
	require.ErrorIs(t, err, types.ErrValidation)
	assert.False(t, called.Load())
}

func TestSetAvgWaitTimeTrustsOptimisticValue(t *testing.T) {
	var refetches atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/restaurants/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			w.Write([]byte(`{}`))
			return
		}
		refetches.Add(1)
		w.Write([]byte(`{"avg_wait_time":99}`))
	})

	f := newAPIFixture(t, mux)
	seedOwnRestaurant(f, &types.OwnRestaurant{RestaurantName: "Luigi's", AvgWaitTime: 15})

	err := f.client.SetAvgWaitTime(context.Background(), 25)
	require.NoError(t, err)

	assert.Equal(t, 25, readOwnRestaurant(t, f).AvgWaitTime)
	assert.Zero(t, refetches.Load(), "client-determined value needs no confirmation fetch")

	err = f.client.SetAvgWaitTime(context.Background(), -1)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestSaveMenuItemValidatesBeforeNetwork(t *testing.T) {
	var called atomic.Bool
	f := newAPIFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
	}))

	err := f.client.SaveMenuItem(context.Background(), types.FoodItem{
		Title: "Margherita",
		Image: "not-a-url",
		Price: 12.5,
	})

	require.ErrorIs(t, err, types.ErrValidation)
	assert.False(t, called.Load())
}

func TestSaveMenuItemRoutesCreateAndUpdate(t *testing.T) {
	existingID := uuid.New()
	var created, updated atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("/restaurants/me/menu", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		created.Store(true)
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/restaurants/me/menu/"+existingID.String(), func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		updated.Store(true)
		w.Write([]byte(`{}`))
	})

	f := newAPIFixture(t, mux)

	item := types.FoodItem{
		Title: "Margherita",
		Image: "https://cdn.plateful.dev/margherita.png",
		Price: 12.5,
	}
	require.NoError(t, f.client.SaveMenuItem(context.Background(), item))
	assert.True(t, created.Load())

	item.ID = existingID
	require.NoError(t, f.client.SaveMenuItem(context.Background(), item))
	assert.True(t, updated.Load())
}

func TestDeleteMenuItemInvalidatesAggregate(t *testing.T) {
	itemID := uuid.New()
	var refetches atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/restaurants/me/menu/"+itemID.String(), func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/restaurants/me", func(w http.ResponseWriter, r *http.Request) {
		refetches.Add(1)
		w.Write([]byte(`{"restaurant_name":"Luigi's","menu":[]}`))
	})

	f := newAPIFixture(t, mux)

	unsubscribe, err := f.client.SubscribeOwnRestaurant(nil)
	require.NoError(t, err)
	defer unsubscribe()

	require.Eventually(t, func() bool {
		return refetches.Load() == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, f.client.DeleteMenuItem(context.Background(), itemID))

	require.Eventually(t, func() bool {
		return refetches.Load() >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestToggleLikeRollsBackOnServerRejection(t *testing.T) {
	restaurantID := uuid.New()

	mux := http.NewServeMux()
	mux.HandleFunc("/customers/me/liked-restaurants", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"like failed"}`))
	})
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"0b8f3a62-9c1d-4f5e-8a77-2d4b1c6e9f01","username":"ada","liked_restaurants":[]}`))
	})

	f := newAPIFixture(t, mux)

	// A mounted gate keeps the identity fetch registered; rollback
	// re-fetches through it.
	customerID := uuid.MustParse("0b8f3a62-9c1d-4f5e-8a77-2d4b1c6e9f01")
	unsubscribe, err := f.store.Subscribe(cache.IdentityKey, types.SubscribeOptions{
		Fetch: func(ctx context.Context) (interface{}, error) {
			return &types.Customer{ID: customerID, Username: "ada"}, nil
		},
	}, nil)
	require.NoError(t, err)
	defer unsubscribe()

	require.Eventually(t, func() bool {
		_, ok := f.store.Read(cache.IdentityKey).Data.(*types.Customer)
		return ok
	}, time.Second, 5*time.Millisecond)

	err = f.client.ToggleLike(context.Background(), restaurantID, "Luigi's")
	require.Error(t, err)

	var httpErr *types.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)

	// The server's list is authoritative: the optimistic like is gone
	// once rollback settles.
	require.Eventually(t, func() bool {
		customer, ok := f.store.Read(cache.IdentityKey).Data.(*types.Customer)
		return ok && !customer.Likes(restaurantID)
	}, time.Second, 5*time.Millisecond)
}

func TestToggleLikeConfirmedByRevalidation(t *testing.T) {
	restaurantID := uuid.New()
	customerID := uuid.New()

	var serverMu sync.Mutex
	var serverLikes []types.LikedRestaurant
	var fetches atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/customers/me/liked-restaurants", func(w http.ResponseWriter, r *http.Request) {
		serverMu.Lock()
		serverLikes = append(serverLikes, types.LikedRestaurant{ID: restaurantID, RestaurantName: "Luigi's"})
		serverMu.Unlock()
		w.Write([]byte(`{}`))
	})

	f := newAPIFixture(t, mux)

	unsubscribe, err := f.store.Subscribe(cache.IdentityKey, types.SubscribeOptions{
		Fetch: func(ctx context.Context) (interface{}, error) {
			fetches.Add(1)
			serverMu.Lock()
			defer serverMu.Unlock()
			likes := append([]types.LikedRestaurant(nil), serverLikes...)
			return &types.Customer{ID: customerID, Username: "ada", LikedRestaurants: likes}, nil
		},
	}, nil)
	require.NoError(t, err)
	defer unsubscribe()

	require.Eventually(t, func() bool {
		_, ok := f.store.Read(cache.IdentityKey).Data.(*types.Customer)
		return ok
	}, time.Second, 5*time.Millisecond)
	initialFetches := fetches.Load()

	err = f.client.ToggleLike(context.Background(), restaurantID, "Luigi's")
	require.NoError(t, err)

	// Optimistic immediately.
	customer, ok := f.store.Read(cache.IdentityKey).Data.(*types.Customer)
	require.True(t, ok)
	assert.True(t, customer.Likes(restaurantID))

	// Confirmation re-fetch lands server truth and the like survives it.
	require.Eventually(t, func() bool {
		return fetches.Load() > initialFetches
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		customer, ok := f.store.Read(cache.IdentityKey).Data.(*types.Customer)
		return ok && customer.Likes(restaurantID)
	}, time.Second, 5*time.Millisecond)
}
