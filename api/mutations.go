package api

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plateful/plateful-client/cache"
	"github.com/plateful/plateful-client/orders"
	"github.com/plateful/plateful-client/types"
)

// UpdateOrderStatus transitions one of the operator's orders. The new
// status lands optimistically in the own-restaurant aggregate before the
// PATCH; a rejected PATCH rolls the aggregate back to server truth.
//
// Status transitions may trigger server-side effects, so confirmation
// re-fetches. Delivered is the exception: it enters the removal grace
// window instead and keeps the optimistic value standing until the
// second local write drops the record.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status types.OrderStatus) error {
	if !status.Valid() {
		return types.Errorf(types.ErrValidation, "unknown order status %q", status)
	}

	policy := types.ConfirmRevalidate
	if status == types.OrderDelivered {
		policy = types.ConfirmLocal
		c.removal.Mark(orderID)
	}

	err := c.store.Mutate(ctx, KeyOwnRestaurant,
		func(current interface{}) interface{} {
			own, ok := current.(*types.OwnRestaurant)
			if !ok || own == nil {
				return current
			}
			return own.WithOrderStatus(orderID, status)
		},
		func(ctx context.Context) error {
			_, err := c.http.Do(ctx, "PATCH", "/orders/"+orderID.String()+"/status",
				map[string]types.OrderStatus{"status": status})
			return err
		},
		policy,
	)

	if status == types.OrderDelivered {
		if err != nil {
			c.removal.Cancel(orderID)
		} else {
			c.removal.Confirm(orderID)
		}
	}

	if err != nil {
		c.logger.Warn("Order status update failed",
			zap.String("order_id", orderID.String()),
			zap.String("status", string(status)),
			zap.Error(err))
		return err
	}

	return nil
}

// removeDeliveredOrder is the removal queue's second write: it drops the
// order from the cached aggregate without revalidating. The entry read
// happens at fire time so intervening writes are respected.
func (c *Client) removeDeliveredOrder(orderID uuid.UUID) {
	entry := c.store.Read(KeyOwnRestaurant)
	own, ok := entry.Data.(*types.OwnRestaurant)
	if !ok || own == nil {
		return
	}

	c.store.Write(KeyOwnRestaurant, own.WithoutOrder(orderID), false)
}

// ActiveOrders is the dashboard's working list: orders still in play,
// plus delivered ones whose grace window has not elapsed, newest first.
func (c *Client) ActiveOrders() []types.Order {
	entry := c.store.Read(KeyOwnRestaurant)
	own, ok := entry.Data.(*types.OwnRestaurant)
	if !ok || own == nil {
		return nil
	}

	active := make([]types.Order, 0, len(own.Orders))
	for _, order := range own.Orders {
		if order.Status.Active() ||
			(order.Status == types.OrderDelivered && c.removal.Phase(order.ID) == orders.PhasePendingRemoval) {
			active = append(active, order)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})

	return active
}

// SetAvgWaitTime patches the operator's advertised wait time. The value
// is fully client-determined, so the optimistic write is trusted and no
// confirmation fetch follows.
func (c *Client) SetAvgWaitTime(ctx context.Context, minutes int) error {
	if minutes < 0 {
		return types.Errorf(types.ErrValidation, "wait time must not be negative")
	}

	return c.store.Mutate(ctx, KeyOwnRestaurant,
		func(current interface{}) interface{} {
			own, ok := current.(*types.OwnRestaurant)
			if !ok || own == nil {
				return current
			}
			return own.WithAvgWaitTime(minutes)
		},
		func(ctx context.Context) error {
			_, err := c.http.Do(ctx, "PATCH", "/restaurants/me",
				map[string]int{"avg_wait_time": minutes})
			return err
		},
		types.ConfirmLocal,
	)
}

// SaveMenuItem creates or updates a menu item, then re-fetches the
// aggregate: the server assigns ids and may normalize fields, so no
// optimistic value is worth keeping. Validation failures never reach the
// network.
func (c *Client) SaveMenuItem(ctx context.Context, item types.FoodItem) error {
	if err := c.validate.Struct(item); err != nil {
		return types.Errorf(types.ErrValidation, "%v", err)
	}

	method, path := "POST", "/restaurants/me/menu"
	if item.ID != uuid.Nil {
		method, path = "PATCH", "/restaurants/me/menu/"+item.ID.String()
	}

	if _, err := c.http.Do(ctx, method, path, item); err != nil {
		return types.WrapError(err, "failed to save menu item")
	}

	c.store.Invalidate(KeyOwnRestaurant)
	return nil
}

// DeleteMenuItem removes a menu item and re-fetches the aggregate.
func (c *Client) DeleteMenuItem(ctx context.Context, itemID uuid.UUID) error {
	if _, err := c.http.Do(ctx, "DELETE", "/restaurants/me/menu/"+itemID.String(), nil); err != nil {
		return types.WrapError(err, "failed to delete menu item")
	}

	c.store.Invalidate(KeyOwnRestaurant)
	return nil
}

// ToggleLike flips a restaurant in the signed-in customer's liked list.
// The toggle is optimistic on the identity entry; the server's list is
// authoritative, so success revalidates and failure rolls back to it.
// Operators cannot like, the identity entry is left untouched for them.
func (c *Client) ToggleLike(ctx context.Context, restaurantID uuid.UUID, restaurantName string) error {
	return c.store.Mutate(ctx, cache.IdentityKey,
		func(current interface{}) interface{} {
			customer, ok := current.(*types.Customer)
			if !ok || customer == nil {
				return current
			}
			return customer.WithLikeToggled(restaurantID, restaurantName)
		},
		func(ctx context.Context) error {
			_, err := c.http.Do(ctx, "PATCH", "/customers/me/liked-restaurants",
				map[string]string{"restaurant_id": restaurantID.String()})
			return err
		},
		types.ConfirmRevalidate,
	)
}
