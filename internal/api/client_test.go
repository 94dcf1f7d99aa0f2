package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shopcart/internal/shop"
)

// newTestServer serves a single handler and returns a client for it.
func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL + "/")
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestListProducts(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/product/all", r.URL.Path)
		writeJSON(w, 200, `{"code":200,"msg":"ok","data":[
			{"id":1,"productName":"Pen","price":19.99,"stock":5},
			{"id":"2","productName":"Ink","price":0.10}
		]}`)
	})

	products, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, shop.ID("1"), products[0].ID)
	assert.Equal(t, shop.Money(1999), products[0].Price)
	assert.Equal(t, 5, products[0].StockOrZero())
	assert.Nil(t, products[1].Stock)
}

func TestListProductsEmptyData(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"code":200,"msg":"ok","data":null}`)
	})

	products, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
}

func TestGetProductNotFoundEnvelope(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/product/42", r.URL.Path)
		// The backend answers 200 with code 404 for a missing product.
		writeJSON(w, 200, `{"code":404,"msg":"product not found"}`)
	})

	_, err := c.GetProduct(context.Background(), "42")
	require.Error(t, err)
	assert.True(t, IsRejected(err))
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "product not found", UserMessage(err))
}

func TestAddProduct(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"productName":"Pen","price":2.50,"stock":3}`, string(body))
		writeJSON(w, 200, `{"code":200,"msg":"created","data":77}`)
	})

	stock := 3
	id, err := c.AddProduct(context.Background(), shop.Product{ProductName: "Pen", Price: 250, Stock: &stock})
	require.NoError(t, err)
	assert.Equal(t, shop.ID("77"), id)
}

func TestCreateOrderLegacy(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/order/add", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"userId":9,"productId":3,"num":2}`, string(body))
		writeJSON(w, 200, `{"code":200,"msg":"ok","data":"1234567890123"}`)
	})

	id, err := c.CreateOrder(context.Background(), shop.OrderRequest{UserID: 9, ProductID: "3", Num: 2})
	require.NoError(t, err)
	assert.Equal(t, shop.ID("1234567890123"), id)
}

func TestCreateOrderBatch(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/order/add/batch", r.URL.Path)
		assert.Equal(t, "attempt-1", r.Header.Get("Idempotency-Key"))

		var req shop.BatchOrderRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(5), req.UserID)
		assert.Len(t, req.Items, 2)
		writeJSON(w, 200, `{"code":200,"msg":"ok","data":[101,102]}`)
	})

	ids, err := c.CreateOrderBatch(context.Background(), shop.BatchOrderRequest{
		UserID: 5,
		Items:  []shop.OrderItem{{ProductID: "A", Num: 1}, {ProductID: "B", Num: 2}},
	}, IdempotencyKey("attempt-1"))
	require.NoError(t, err)
	assert.Equal(t, []shop.ID{"101", "102"}, ids)
}

func TestCreateOrderBatchRejected(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 400, `{"code":400,"msg":"stock insufficient"}`)
	})

	_, err := c.CreateOrderBatch(context.Background(), shop.BatchOrderRequest{UserID: 1})
	require.Error(t, err)

	var ae *Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, KindRejected, ae.Kind)
	assert.Equal(t, 400, ae.Status)
	assert.Equal(t, "stock insufficient", ae.UserMessage())
	assert.Contains(t, err.Error(), "POST /order/add/batch")
}

func TestNon2xxWithoutJSONUsesStatus(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	})

	_, err := c.ListOrders(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, IsRejected(err))
	assert.Equal(t, "request failed: 502 Bad Gateway", UserMessage(err))
}

func TestMalformedBody(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"code":200,"data":[1,`)
	})

	_, err := c.ListProducts(context.Background())
	require.Error(t, err)
	assert.True(t, IsMalformed(err))
	assert.Equal(t, "unparseable response", UserMessage(err))
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := New(base).ListProducts(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Contains(t, UserMessage(err), "cannot reach backend")
}

func TestListOrders(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/order/user/12", r.URL.Path)
		writeJSON(w, 200, `{"code":200,"msg":"ok","data":[
			{"id":"900","userId":12,"productId":3,"num":2,"totalPrice":39.98,"createTime":"2025-12-05 10:00:00"}
		]}`)
	})

	orders, err := c.ListOrders(context.Background(), 12)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, shop.ID("900"), orders[0].ID)
	assert.Equal(t, shop.Money(3998), orders[0].TotalPrice)
}

func TestCreatePaymentBareResponse(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"userId":5,"orderIds":[101,102],"amount":"60.07","provider":"ALIPAY","address":"Main St"}`, string(body))
		writeJSON(w, 200, `{"paymentNo":"PN1"}`)
	})

	session, err := c.CreatePayment(context.Background(), shop.PaymentRequest{
		UserID: 5, OrderIDs: []shop.ID{"101", "102"}, Amount: "60.07", Provider: "ALIPAY", Address: "Main St",
	})
	require.NoError(t, err)
	assert.Equal(t, "PN1", session.PaymentNo)
	assert.Empty(t, session.PaymentURL)
}

func TestCreatePaymentEnvelopeResponse(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"code":200,"msg":"ok","data":{"paymentNo":"PN2","paymentUrl":"https://pay.example/PN2"}}`)
	})

	session, err := c.CreatePayment(context.Background(), shop.PaymentRequest{UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/PN2", session.PaymentURL)
}

func TestCreatePaymentEnvelopeRejected(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"code":500,"msg":"amount mismatch"}`)
	})

	_, err := c.CreatePayment(context.Background(), shop.PaymentRequest{UserID: 1})
	require.Error(t, err)
	assert.Equal(t, "amount mismatch", UserMessage(err))
}

func TestCreatePaymentNonJSON(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "OK")
	})

	_, err := c.CreatePayment(context.Background(), shop.PaymentRequest{UserID: 1})
	require.Error(t, err)
	assert.True(t, IsMalformed(err))
}

func TestCreatePaymentEmptyBody(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	session, err := c.CreatePayment(context.Background(), shop.PaymentRequest{UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, shop.PaymentSession{}, session)
}

func TestRedirectPathAndResolve(t *testing.T) {
	assert.Equal(t, "/payment/redirect/PN1", RedirectPath("PN1"))
	assert.Equal(t, "/payment/redirect/a%2Fb%20c", RedirectPath("a/b c"))

	c := New("http://shop.local:8080/")
	assert.Equal(t, "http://shop.local:8080/payment/redirect/PN1", c.ResolveURL(RedirectPath("PN1")))
	assert.Equal(t, "https://pay.example/x", c.ResolveURL("https://pay.example/x"))
}
