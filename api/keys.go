package api

import (
	"github.com/google/uuid"

	"github.com/plateful/plateful-client/types"
)

// Cache keys mirror the request paths of the resources they hold. One
// key, one logical remote resource; keys are never recycled in a session.
const (
	KeyRestaurants   types.CacheKey = "/restaurants"
	KeyOwnRestaurant types.CacheKey = "/restaurants/me"
)

func KeyRestaurant(id uuid.UUID) types.CacheKey {
	return types.CacheKey("/restaurants/" + id.String())
}

func KeyOrder(id uuid.UUID) types.CacheKey {
	return types.CacheKey("/orders/" + id.String())
}
