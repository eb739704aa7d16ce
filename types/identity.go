package types

import (
	"bytes"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

type Role int

const (
	RoleCustomer Role = iota
	RoleRestaurant
)

func (r Role) String() string {
	if r == RoleRestaurant {
		return "restaurant"
	}
	return "customer"
}

// PathSegment is the role as it appears in auth routes
// (/auth/signin/{ROLE}).
func (r Role) PathSegment() string {
	if r == RoleRestaurant {
		return "RESTAURANT"
	}
	return "CUSTOMER"
}

// Home is the landing path for an authenticated user of this role. Wrong
// role gates redirect here, never to the sign-in page.
func (r Role) Home() string {
	if r == RoleRestaurant {
		return "/restaurant/dashboard"
	}
	return "/"
}

// Identity is the resolved current user: either a Customer or a
// RestaurantOperator. The union is sealed so role handling stays an
// exhaustive switch instead of field-presence sniffing. A nil Identity is
// the authoritative signed-out state.
type Identity interface {
	sealedIdentity()
	Role() Role
	UserID() uuid.UUID
}

type LikedRestaurant struct {
	ID             uuid.UUID `json:"id"`
	RestaurantName string    `json:"restaurant_name"`
}

type Customer struct {
	ID               uuid.UUID         `json:"id"`
	Username         string            `json:"username"`
	Email            string            `json:"email"`
	LikedRestaurants []LikedRestaurant `json:"liked_restaurants"`
	Orders           []Order           `json:"orders"`
}

func (*Customer) sealedIdentity() {}

func (*Customer) Role() Role { return RoleCustomer }

func (c *Customer) UserID() uuid.UUID { return c.ID }

// Likes reports whether the restaurant is in the customer's liked list.
func (c *Customer) Likes(restaurantID uuid.UUID) bool {
	for _, r := range c.LikedRestaurants {
		if r.ID == restaurantID {
			return true
		}
	}
	return false
}

// WithLikeToggled returns a copy with the restaurant added to or removed
// from the liked list. The receiver is never mutated; optimistic writes
// must not alias cached state.
func (c *Customer) WithLikeToggled(restaurantID uuid.UUID, name string) *Customer {
	next := *c
	if c.Likes(restaurantID) {
		next.LikedRestaurants = make([]LikedRestaurant, 0, len(c.LikedRestaurants))
		for _, r := range c.LikedRestaurants {
			if r.ID != restaurantID {
				next.LikedRestaurants = append(next.LikedRestaurants, r)
			}
		}
		return &next
	}
	next.LikedRestaurants = make([]LikedRestaurant, len(c.LikedRestaurants), len(c.LikedRestaurants)+1)
	copy(next.LikedRestaurants, c.LikedRestaurants)
	next.LikedRestaurants = append(next.LikedRestaurants, LikedRestaurant{ID: restaurantID, RestaurantName: name})
	return &next
}

type RestaurantOperator struct {
	ID             uuid.UUID  `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	RestaurantName string     `json:"restaurant_name"`
	AvgWaitTime    int        `json:"avg_wait_time"`
	Menu           []FoodItem `json:"menu"`
	Orders         []Order    `json:"orders"`
}

func (*RestaurantOperator) sealedIdentity() {}

func (*RestaurantOperator) Role() Role { return RoleRestaurant }

func (o *RestaurantOperator) UserID() uuid.UUID { return o.ID }

var jsonNull = []byte("null")

// rawIdentity is the undiscriminated wire shape of /auth/me. The server
// sends one flat object for both roles; restaurant_name is the only
// reliable discriminator it offers.
type rawIdentity struct {
	ID               uuid.UUID         `json:"id"`
	Username         string            `json:"username"`
	Email            string            `json:"email"`
	RestaurantName   *string           `json:"restaurant_name"`
	AvgWaitTime      int               `json:"avg_wait_time"`
	Menu             []FoodItem        `json:"menu"`
	LikedRestaurants []LikedRestaurant `json:"liked_restaurants"`
	Orders           []Order           `json:"orders"`
}

// DecodeIdentity turns the /auth/me body into the tagged union. This is
// the single place the flat wire shape is discriminated; everything past
// this boundary switches on the union. A literal null body decodes to
// (nil, nil): confirmed signed out.
func DecodeIdentity(body []byte) (Identity, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, jsonNull) {
		return nil, nil
	}

	var raw rawIdentity
	if err := sonic.ConfigDefault.Unmarshal(trimmed, &raw); err != nil {
		return nil, WrapError(err, ErrIdentityMalformed.Error())
	}

	if raw.RestaurantName != nil {
		return &RestaurantOperator{
			ID:             raw.ID,
			Username:       raw.Username,
			Email:          raw.Email,
			RestaurantName: *raw.RestaurantName,
			AvgWaitTime:    raw.AvgWaitTime,
			Menu:           raw.Menu,
			Orders:         raw.Orders,
		}, nil
	}

	return &Customer{
		ID:               raw.ID,
		Username:         raw.Username,
		Email:            raw.Email,
		LikedRestaurants: raw.LikedRestaurants,
		Orders:           raw.Orders,
	}, nil
}
