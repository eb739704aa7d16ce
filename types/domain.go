package types

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPreparing, OrderReady, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// Active reports whether the order still belongs on an operator's
// working list.
func (s OrderStatus) Active() bool {
	switch s {
	case OrderPending, OrderPreparing, OrderReady:
		return true
	}
	return false
}

type FoodItem struct {
	ID    uuid.UUID `json:"id" validate:"-"`
	Title string    `json:"title" validate:"required"`
	Image string    `json:"image" validate:"required,url"`
	Price float64   `json:"price" validate:"required,gt=0"`
}

type FoodSummary struct {
	Title string `json:"title"`
}

type Order struct {
	ID           uuid.UUID   `json:"id"`
	Status       OrderStatus `json:"status"`
	CustomerID   uuid.UUID   `json:"customer_id"`
	RestaurantID uuid.UUID   `json:"restaurant_id"`
	CreatedAt    time.Time   `json:"created_at"`
	Food         FoodSummary `json:"food"`
}

// Restaurant is the public listing shape returned by /restaurants and
// /restaurants/{id}.
type Restaurant struct {
	ID             uuid.UUID  `json:"id"`
	RestaurantName string     `json:"restaurant_name"`
	AvgWaitTime    int        `json:"avg_wait_time"`
	Menu           []FoodItem `json:"menu"`
}

// OwnRestaurant is the operator's aggregate view from /restaurants/me,
// menu plus live orders.
type OwnRestaurant struct {
	ID             uuid.UUID  `json:"id"`
	RestaurantName string     `json:"restaurant_name"`
	AvgWaitTime    int        `json:"avg_wait_time"`
	Menu           []FoodItem `json:"menu"`
	Orders         []Order    `json:"orders"`
}

// WithOrderStatus returns a copy with one order's status replaced.
func (r *OwnRestaurant) WithOrderStatus(orderID uuid.UUID, status OrderStatus) *OwnRestaurant {
	next := *r
	next.Orders = make([]Order, len(r.Orders))
	copy(next.Orders, r.Orders)
	for i := range next.Orders {
		if next.Orders[i].ID == orderID {
			next.Orders[i].Status = status
		}
	}
	return &next
}

// WithoutOrder returns a copy with one order dropped from the list.
func (r *OwnRestaurant) WithoutOrder(orderID uuid.UUID) *OwnRestaurant {
	next := *r
	next.Orders = make([]Order, 0, len(r.Orders))
	for _, o := range r.Orders {
		if o.ID != orderID {
			next.Orders = append(next.Orders, o)
		}
	}
	return &next
}

// WithAvgWaitTime returns a copy with the wait time replaced.
func (r *OwnRestaurant) WithAvgWaitTime(minutes int) *OwnRestaurant {
	next := *r
	next.AvgWaitTime = minutes
	return &next
}

// PublicProfile is the minimal shape of /customers/{id} and
// /restaurants/{id} used for name lookups.
type PublicProfile struct {
	ID             uuid.UUID `json:"id"`
	Username       string    `json:"username"`
	RestaurantName string    `json:"restaurant_name"`
}
