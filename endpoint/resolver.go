package endpoint

import (
	"net/url"
	"strings"

	"github.com/plateful/plateful-client/types"
)

// Resolver builds absolute request URLs from the configured API base.
// It holds no state beyond the base and is safe for concurrent use.
type Resolver struct {
	base string
}

func NewResolver(baseURL string) (*Resolver, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, types.WrapError(err, "invalid base URL")
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, types.Errorf(types.ErrConfigValidateFailed, "base URL must be absolute: %q", baseURL)
	}

	return &Resolver{base: strings.TrimRight(baseURL, "/")}, nil
}

func (r *Resolver) URL(path string) string {
	if path == "" {
		return r.base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return r.base + path
}
