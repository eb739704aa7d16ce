package auth

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/plateful/plateful-client/cache"
	httpclient "github.com/plateful/plateful-client/client"
	"github.com/plateful/plateful-client/session"
	"github.com/plateful/plateful-client/types"
)

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SignUpData struct {
	Username       string `json:"username" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=8"`
	RestaurantName string `json:"restaurant_name,omitempty"`
}

// Service owns the auth routes and the identity cache entry. Sign-in and
// sign-up rely on the server's session cookie (captured by the HTTP
// client) and then invalidate the identity key so the gate-registered
// fetch resolves the new user; sign-out writes the authoritative nil
// identity locally, no re-fetch needed.
type Service struct {
	store    *cache.Store
	http     *httpclient.HTTPClient
	nav      session.Navigator
	logger   types.Logger
	validate *validator.Validate
}

func NewService(store *cache.Store, http *httpclient.HTTPClient, nav session.Navigator, logger types.Logger) *Service {
	return &Service{
		store:    store,
		http:     http,
		nav:      nav,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// IdentityFetch is the FetchFunc for the identity key. A 200 with a null
// body is confirmed signed-out, distinct from not-yet-loaded; a 401
// settles as an error for the session gate to act on.
func (s *Service) IdentityFetch() types.FetchFunc {
	return func(ctx context.Context) (interface{}, error) {
		body, err := s.http.Get(ctx, "/auth/me")
		if err != nil {
			return nil, err
		}

		identity, err := types.DecodeIdentity(body)
		if err != nil {
			return nil, err
		}
		if identity == nil {
			return nil, nil
		}
		return identity, nil
	}
}

func (s *Service) SignIn(ctx context.Context, email, password string, role types.Role) error {
	creds := Credentials{Email: email, Password: password}
	if err := s.validate.Struct(creds); err != nil {
		return types.Errorf(types.ErrValidation, "%v", err)
	}

	if _, err := s.http.Do(ctx, "POST", "/auth/signin/"+role.PathSegment(), creds); err != nil {
		s.logger.Warn("Sign in failed", zap.String("role", role.String()), zap.Error(err))
		return types.WrapError(err, "sign in failed")
	}

	// The session cookie is set; re-resolve the identity and land on
	// the requested role's home.
	s.store.Invalidate(cache.IdentityKey)
	s.nav.Navigate(role.Home())

	return nil
}

func (s *Service) SignUp(ctx context.Context, data SignUpData, role types.Role) error {
	if err := s.validate.Struct(data); err != nil {
		return types.Errorf(types.ErrValidation, "%v", err)
	}
	if role == types.RoleRestaurant && data.RestaurantName == "" {
		return types.Errorf(types.ErrValidation, "restaurant_name is required for restaurant sign-up")
	}

	if _, err := s.http.Do(ctx, "POST", "/auth/signup/"+role.PathSegment(), data); err != nil {
		s.logger.Warn("Sign up failed", zap.String("role", role.String()), zap.Error(err))
		return types.WrapError(err, "sign up failed")
	}

	s.store.Invalidate(cache.IdentityKey)
	s.nav.Navigate(role.Home())

	return nil
}

func (s *Service) SignOut(ctx context.Context) error {
	if _, err := s.http.Do(ctx, "POST", "/auth/signout", nil); err != nil {
		s.logger.Warn("Sign out failed", zap.Error(err))
		return types.WrapError(err, "sign out failed")
	}

	// Signed-out is authoritative local knowledge; write nil without
	// revalidating instead of fetching a state we already know.
	s.store.Write(cache.IdentityKey, nil, false)
	s.nav.Navigate(session.DefaultSignInPath)

	return nil
}
