package api

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/plateful/plateful-client/cache"
	httpclient "github.com/plateful/plateful-client/client"
	"github.com/plateful/plateful-client/orders"
	"github.com/plateful/plateful-client/types"
	"github.com/plateful/plateful-client/utils"
)

// Client is the typed surface over the restaurant-ordering API. Reads go
// through the cache store under path-shaped keys; writes go through the
// store's optimistic mutation path so views reflect them immediately.
type Client struct {
	store    *cache.Store
	http     *httpclient.HTTPClient
	logger   types.Logger
	validate *validator.Validate
	removal  *orders.RemovalQueue

	orderPollInterval time.Duration
}

func NewClient(store *cache.Store, http *httpclient.HTTPClient, logger types.Logger, clock types.Clock, sync *types.SyncConfig) *Client {
	pollInterval := 5 * time.Second
	grace := 2 * time.Second
	if sync != nil {
		if sync.OrderPollInterval > 0 {
			pollInterval = sync.OrderPollInterval
		}
		if sync.DeliveredGrace > 0 {
			grace = sync.DeliveredGrace
		}
	}

	c := &Client{
		store:             store,
		http:              http,
		logger:            logger,
		validate:          validator.New(validator.WithRequiredStructEnabled()),
		orderPollInterval: pollInterval,
	}

	c.removal = orders.NewRemovalQueue(clock, grace, logger, c.removeDeliveredOrder)

	return c
}

// SubscribeRestaurants follows the public restaurant listing.
func (c *Client) SubscribeRestaurants(callback func(types.CacheEntry)) (func(), error) {
	return c.store.Subscribe(KeyRestaurants, types.SubscribeOptions{
		Fetch: fetchInto[[]types.Restaurant](c.http, "/restaurants"),
	}, callback)
}

// SubscribeRestaurant follows one restaurant, menu included.
func (c *Client) SubscribeRestaurant(id uuid.UUID, callback func(types.CacheEntry)) (func(), error) {
	path := "/restaurants/" + id.String()
	return c.store.Subscribe(KeyRestaurant(id), types.SubscribeOptions{
		Fetch: fetchInto[*types.Restaurant](c.http, path),
	}, callback)
}

// SubscribeOwnRestaurant follows the operator's aggregate view, orders
// and menu.
func (c *Client) SubscribeOwnRestaurant(callback func(types.CacheEntry)) (func(), error) {
	return c.store.Subscribe(KeyOwnRestaurant, types.SubscribeOptions{
		Fetch: fetchInto[*types.OwnRestaurant](c.http, "/restaurants/me"),
	}, callback)
}

// SubscribeOrder follows one order and keeps it polling while mounted;
// this backs the live tracking view.
func (c *Client) SubscribeOrder(id uuid.UUID, callback func(types.CacheEntry)) (func(), error) {
	path := "/orders/" + id.String()
	return c.store.Subscribe(KeyOrder(id), types.SubscribeOptions{
		Fetch:        fetchInto[*types.Order](c.http, path),
		PollInterval: c.orderPollInterval,
	}, callback)
}

// CreateOrder places an order and seeds its cache entry so the tracking
// view opens warm.
func (c *Client) CreateOrder(ctx context.Context, customerID, restaurantID, foodID uuid.UUID) (*types.Order, error) {
	body := map[string]string{
		"customer_id":   customerID.String(),
		"restaurant_id": restaurantID.String(),
		"food_id":       foodID.String(),
	}

	respBody, err := c.http.Do(ctx, "POST", "/orders/new-order", body)
	if err != nil {
		return nil, types.WrapError(err, "failed to create order")
	}

	var order types.Order
	if err := utils.Unmarshal(respBody, &order); err != nil {
		return nil, types.WrapError(err, "malformed order response")
	}

	c.store.Write(KeyOrder(order.ID), &order, false)

	return &order, nil
}

// CustomerName resolves a customer's public display name.
func (c *Client) CustomerName(ctx context.Context, id uuid.UUID) (string, error) {
	profile, err := c.publicProfile(ctx, "/customers/"+id.String())
	if err != nil {
		return "", err
	}
	return profile.Username, nil
}

// RestaurantName resolves a restaurant's public display name.
func (c *Client) RestaurantName(ctx context.Context, id uuid.UUID) (string, error) {
	profile, err := c.publicProfile(ctx, "/restaurants/"+id.String())
	if err != nil {
		return "", err
	}
	return profile.RestaurantName, nil
}

func (c *Client) publicProfile(ctx context.Context, path string) (*types.PublicProfile, error) {
	body, err := c.http.Get(ctx, path)
	if err != nil {
		return nil, err
	}

	var profile types.PublicProfile
	if err := utils.Unmarshal(body, &profile); err != nil {
		return nil, types.WrapError(err, "malformed profile response")
	}
	return &profile, nil
}

// fetchInto builds a FetchFunc that GETs path and decodes into T.
func fetchInto[T any](http *httpclient.HTTPClient, path string) types.FetchFunc {
	return func(ctx context.Context) (interface{}, error) {
		body, err := http.Get(ctx, path)
		if err != nil {
			return nil, err
		}

		var value T
		if err := utils.Unmarshal(body, &value); err != nil {
			return nil, types.WrapError(err, "malformed response for "+path)
		}
		return value, nil
	}
}
