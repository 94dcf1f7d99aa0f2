package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/shopcart/internal/shop"
)

// CodeOK is the envelope code for success.
const CodeOK = 200

// maxBody bounds how much of a response body is read.
const maxBody = 4 << 20

// Envelope is the backend's response wrapper.
type Envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Client calls the backend.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets a per-request timeout. Zero means none.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.http
		hc.Timeout = d
		c.http = &hc
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// CallOption adjusts a single outgoing request.
type CallOption func(*http.Request)

// IdempotencyKey attaches a client-generated key to the request. The backend
// may ignore it; no deduplication is assumed.
func IdempotencyKey(key string) CallOption {
	return func(r *http.Request) {
		if key != "" {
			r.Header.Set("Idempotency-Key", key)
		}
	}
}

// New creates a client for the backend at baseURL
// (e.g. http://localhost:8080). A trailing slash is ignored.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListProducts calls GET /product/all.
func (c *Client) ListProducts(ctx context.Context) ([]shop.Product, error) {
	var products []shop.Product
	if err := c.call(ctx, http.MethodGet, "/product/all", nil, &products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []shop.Product{}
	}
	return products, nil
}

// GetProduct calls GET /product/{id}.
func (c *Client) GetProduct(ctx context.Context, id shop.ID) (shop.Product, error) {
	var p shop.Product
	err := c.call(ctx, http.MethodGet, "/product/"+url.PathEscape(id.String()), nil, &p)
	return p, err
}

// AddProduct calls POST /product/add and returns the new product id.
func (c *Client) AddProduct(ctx context.Context, p shop.Product) (shop.ID, error) {
	var id shop.ID
	err := c.call(ctx, http.MethodPost, "/product/add", p, &id)
	return id, err
}

// CreateOrder calls the legacy POST /order/add and returns the order id.
func (c *Client) CreateOrder(ctx context.Context, req shop.OrderRequest, opts ...CallOption) (shop.ID, error) {
	var id shop.ID
	err := c.call(ctx, http.MethodPost, "/order/add", req, &id, opts...)
	return id, err
}

// CreateOrderBatch calls POST /order/add/batch. On success the order ids
// are in the same order as req.Items.
func (c *Client) CreateOrderBatch(ctx context.Context, req shop.BatchOrderRequest, opts ...CallOption) ([]shop.ID, error) {
	var ids []shop.ID
	if err := c.call(ctx, http.MethodPost, "/order/add/batch", req, &ids, opts...); err != nil {
		return nil, err
	}
	return ids, nil
}

// ListOrders calls GET /order/user/{userId}.
func (c *Client) ListOrders(ctx context.Context, userID int64) ([]shop.Order, error) {
	var orders []shop.Order
	path := "/order/user/" + strconv.FormatInt(userID, 10)
	if err := c.call(ctx, http.MethodGet, path, nil, &orders); err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []shop.Order{}
	}
	return orders, nil
}

// CreatePayment calls POST /payment/create.
//
// The payment service answers with a bare {paymentNo, paymentUrl} object;
// the same object wrapped in the usual envelope is accepted too.
func (c *Client) CreatePayment(ctx context.Context, req shop.PaymentRequest, opts ...CallOption) (shop.PaymentSession, error) {
	const op = "POST /payment/create"

	status, body, err := c.roundTrip(ctx, http.MethodPost, "/payment/create", req, opts...)
	if err != nil {
		return shop.PaymentSession{}, err
	}

	var resp struct {
		Envelope
		shop.PaymentSession
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			return shop.PaymentSession{}, &Error{Kind: KindMalformed, Op: op, Status: status, Err: err}
		}
	}
	if resp.Code != 0 && resp.Code != CodeOK {
		return shop.PaymentSession{}, &Error{Kind: KindRejected, Op: op, Status: status, Code: resp.Code, Message: resp.Msg}
	}

	session := resp.PaymentSession
	if session.PaymentNo == "" && session.PaymentURL == "" && isObject(resp.Data) {
		if err := json.Unmarshal(resp.Data, &session); err != nil {
			return shop.PaymentSession{}, &Error{Kind: KindMalformed, Op: op, Status: status, Err: err}
		}
	}
	return session, nil
}

// RedirectPath returns the path of the backend's payment redirect for
// paymentNo, GET /payment/redirect/{paymentNo}.
func RedirectPath(paymentNo string) string {
	return "/payment/redirect/" + url.PathEscape(paymentNo)
}

// ResolveURL turns a path such as RedirectPath's into an absolute URL on
// the backend. Absolute URLs are returned unchanged.
func (c *Client) ResolveURL(ref string) string {
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return c.baseURL + ref
}

// call performs a JSON request and decodes the envelope's data into out.
func (c *Client) call(ctx context.Context, method, path string, in, out any, opts ...CallOption) error {
	op := method + " " + path

	status, body, err := c.roundTrip(ctx, method, path, in, opts...)
	if err != nil {
		return err
	}

	var env Envelope
	if len(bytes.TrimSpace(body)) == 0 {
		return &Error{Kind: KindMalformed, Op: op, Status: status, Err: fmt.Errorf("empty body")}
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return &Error{Kind: KindMalformed, Op: op, Status: status, Err: err}
	}
	if env.Code != CodeOK {
		return &Error{Kind: KindRejected, Op: op, Status: status, Code: env.Code, Message: env.Msg}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &Error{Kind: KindMalformed, Op: op, Status: status, Code: env.Code, Err: err}
	}
	return nil
}

// roundTrip sends the request and returns the body of a 2xx response.
// Non-2xx responses become KindRejected, using the body's msg if present.
func (c *Client) roundTrip(ctx context.Context, method, path string, in any, opts ...CallOption) (int, []byte, error) {
	op := method + " " + path

	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}

	c.logger.Debug("backend request", "op", op)
	res, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &Error{Kind: KindTransport, Op: op, Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return res.StatusCode, nil, &Error{Kind: KindTransport, Op: op, Status: res.StatusCode, Err: err}
	}
	c.logger.Debug("backend response", "op", op, "status", res.StatusCode, "bytes", len(body))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		rej := &Error{Kind: KindRejected, Op: op, Status: res.StatusCode}
		var env Envelope
		if json.Unmarshal(body, &env) == nil {
			rej.Code = env.Code
			rej.Message = env.Msg
		}
		return res.StatusCode, body, rej
	}

	return res.StatusCode, body, nil
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
