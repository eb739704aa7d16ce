package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/plateful/plateful-client/endpoint"
	"github.com/plateful/plateful-client/types"
	"github.com/plateful/plateful-client/utils"
)

type State int32

const (
	StateRunning State = iota
	StateStopping
	StateStopped
)

// HTTPClient performs every network call for the sync layer. It owns the
// session cookie: whatever the auth routes set is replayed on each
// subsequent request, the SDK analogue of a browser's credentialed fetch.
type HTTPClient struct {
	ctx            context.Context
	cancel         context.CancelFunc
	logger         types.Logger
	client         *fasthttp.Client
	resolver       *endpoint.Resolver
	retries        int
	requestTimeout time.Duration
	state          atomic.Value
	cookieMu       sync.RWMutex
	cookies        map[string]string
}

func New(ctx context.Context, logger types.Logger, resolver *endpoint.Resolver, config *types.APIConfig) *HTTPClient {
	clientCtx, cancel := context.WithCancel(ctx)

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &HTTPClient{
		ctx:    clientCtx,
		cancel: cancel,
		logger: logger,
		client: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		resolver:       resolver,
		retries:        config.Retries,
		requestTimeout: timeout,
		cookies:        make(map[string]string),
	}

	c.state.Store(StateRunning)

	return c
}

// Get issues a credentialed GET. Transport-level retries apply because
// the consumed read routes are idempotent; non-2xx responses are never
// retried here.
func (c *HTTPClient) Get(ctx context.Context, path string) ([]byte, error) {
	return c.call(ctx, fasthttp.MethodGet, path, nil, c.retries)
}

// Do issues a single credentialed write call with a JSON body. Writes are
// never retried; the mutation coordinator owns failure handling.
func (c *HTTPClient) Do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	return c.call(ctx, method, path, body, 0)
}

func (c *HTTPClient) call(ctx context.Context, method, path string, body interface{}, retries int) ([]byte, error) {
	if !c.IsRunning() {
		return nil, types.ErrClientClosed
	}

	var jsonBody []byte
	if body != nil {
		data, err := utils.Marshal(body)
		if err != nil {
			return nil, types.WrapError(err, "failed to marshal request body")
		}
		jsonBody = data
	}

	callCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	type callResult struct {
		body []byte
		err  error
	}

	// The goroutine owns the pooled request/response for its whole
	// lifetime. The caller may give up on callCtx while retries are
	// still running, so releasing here would hand live objects back to
	// the pool.
	resultCh := make(chan callResult, 1)
	go func() {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(c.resolver.URL(path))
		req.Header.SetMethod(method)
		req.Header.Set("X-Request-ID", uuid.NewString())
		req.Header.Set("Accept", "application/json")

		if jsonBody != nil {
			req.SetBody(jsonBody)
			req.Header.SetContentType("application/json")
		}

		c.attachCookies(req)

		responseBody, err := c.executeWithRetries(callCtx, req, resp, retries)
		resultCh <- callResult{body: responseBody, err: err}
	}()

	select {
	case res := <-resultCh:
		return res.body, res.err
	case <-callCtx.Done():
		if types.IsError(callCtx.Err(), context.DeadlineExceeded) {
			return nil, types.Errorf(types.ErrClientTimeout, "%s %s", method, path)
		}
		return nil, types.WrapError(callCtx.Err(), "call cancelled")
	case <-c.ctx.Done():
		return nil, types.ErrClientClosed
	}
}

func (c *HTTPClient) executeWithRetries(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response, maxRetries int) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if !c.IsRunning() {
			return nil, types.ErrClientClosed
		}

		err := c.client.DoTimeout(req, resp, c.requestTimeout)
		if err == nil {
			c.captureCookies(resp)

			status := resp.StatusCode()
			if status >= 200 && status < 300 {
				responseBody := make([]byte, len(resp.Body()))
				copy(responseBody, resp.Body())
				return responseBody, nil
			}

			// Settled HTTP failures are terminal, the cache layer
			// surfaces them as the entry's error.
			return nil, types.NewHTTPError(status, errorDetail(resp.Body()))
		}

		lastErr = types.Errorf(types.ErrTransport, "%v", err)

		if attempt < maxRetries {
			backoff := time.Duration(attempt+1) * 100 * time.Millisecond
			select {
			case <-time.After(backoff):
				c.logger.Debug("Retrying request",
					zap.String("method", string(req.Header.Method())),
					zap.String("uri", req.URI().String()),
					zap.Duration("backoff", backoff),
					zap.Error(lastErr))
			case <-ctx.Done():
				// The caller already returned; stop burning attempts.
				return nil, types.WrapError(ctx.Err(), "call cancelled")
			case <-c.ctx.Done():
				return nil, types.ErrClientClosed
			}
		}
	}

	return nil, lastErr
}

// errorDetail pulls the server's human-readable message out of an error
// body ({"detail": "..."}), falling back to the raw body.
func errorDetail(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var payload struct {
		Detail string `json:"detail"`
	}
	if err := utils.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}

	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}

func (c *HTTPClient) attachCookies(req *fasthttp.Request) {
	c.cookieMu.RLock()
	defer c.cookieMu.RUnlock()

	for name, value := range c.cookies {
		req.Header.SetCookie(name, value)
	}
}

func (c *HTTPClient) captureCookies(resp *fasthttp.Response) {
	var updates map[string]string

	resp.Header.VisitAllCookie(func(key, value []byte) {
		ck := fasthttp.AcquireCookie()
		defer fasthttp.ReleaseCookie(ck)

		if err := ck.ParseBytes(value); err != nil {
			c.logger.Warn("Discarding unparseable cookie", zap.String("name", string(key)))
			return
		}

		if updates == nil {
			updates = make(map[string]string, 2)
		}
		updates[string(ck.Key())] = string(ck.Value())
	})

	if updates == nil {
		return
	}

	c.cookieMu.Lock()
	defer c.cookieMu.Unlock()

	for name, value := range updates {
		if value == "" {
			delete(c.cookies, name)
			continue
		}
		c.cookies[name] = value
	}
}

// SessionCookie reports the current value of one stored cookie. Used by
// tests and diagnostics, never by the request path directly.
func (c *HTTPClient) SessionCookie(name string) (string, bool) {
	c.cookieMu.RLock()
	defer c.cookieMu.RUnlock()
	value, ok := c.cookies[name]
	return value, ok
}

func (c *HTTPClient) Close() {
	if !c.state.CompareAndSwap(StateRunning, StateStopping) {
		return
	}

	c.cancel()

	c.cookieMu.Lock()
	c.cookies = make(map[string]string)
	c.cookieMu.Unlock()

	c.state.Store(StateStopped)
	c.logger.Debug("HTTP client closed")
}

func (c *HTTPClient) IsRunning() bool {
	return c.state.Load().(State) == StateRunning
}
