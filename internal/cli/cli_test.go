package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/shopcart/internal/shop"
)

// fakeShop is an in-process backend speaking the {code,msg,data} envelope.
type fakeShop struct {
	mu       sync.Mutex
	products map[string]map[string]any
	orders   []map[string]any

	batches  []shop.BatchOrderRequest
	singles  []shop.OrderRequest
	payments []shop.PaymentRequest
	keys     []string

	// payment is the raw /payment/create response; batchReject fails batches.
	payment     string
	batchReject string
	nextOrder   int
}

func newFakeShop(t *testing.T) (*fakeShop, *httptest.Server) {
	t.Helper()

	f := &fakeShop{
		products: map[string]map[string]any{
			"1": {"id": 1, "productName": "Blue mug", "price": 19.99, "stock": 10},
			"2": {"id": 2, "productName": "Tea", "price": "0.10", "stock": 5},
			"3": {"id": 3, "productName": "Sold out", "price": 5, "stock": 0},
		},
		payment:   `{"paymentNo":"PN1"}`,
		nextOrder: 100,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /product/all", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		list := make([]map[string]any, 0, len(f.products))
		for _, id := range []string{"1", "2", "3"} {
			if p, ok := f.products[id]; ok {
				list = append(list, p)
			}
		}
		writeEnvelope(w, 200, "success", list)
	})
	mux.HandleFunc("GET /product/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		p, ok := f.products[r.PathValue("id")]
		if !ok {
			writeEnvelope(w, 404, "product not found", nil)
			return
		}
		writeEnvelope(w, 200, "success", p)
	})
	mux.HandleFunc("POST /product/add", func(w http.ResponseWriter, r *http.Request) {
		var p map[string]any
		_ = json.NewDecoder(r.Body).Decode(&p)
		f.mu.Lock()
		defer f.mu.Unlock()
		id := strconv.Itoa(len(f.products) + 1)
		p["id"] = len(f.products) + 1
		f.products[id] = p
		writeEnvelope(w, 200, "success", len(f.products))
	})
	mux.HandleFunc("POST /order/add/batch", func(w http.ResponseWriter, r *http.Request) {
		var req shop.BatchOrderRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.batches = append(f.batches, req)
		f.keys = append(f.keys, r.Header.Get("Idempotency-Key"))
		if f.batchReject != "" {
			writeEnvelope(w, 400, f.batchReject, nil)
			return
		}
		ids := make([]int, 0, len(req.Items))
		for range req.Items {
			f.nextOrder++
			ids = append(ids, f.nextOrder)
		}
		writeEnvelope(w, 200, "success", ids)
	})
	mux.HandleFunc("POST /order/add", func(w http.ResponseWriter, r *http.Request) {
		var req shop.OrderRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.singles = append(f.singles, req)
		f.nextOrder++
		writeEnvelope(w, 200, "success", f.nextOrder)
	})
	mux.HandleFunc("POST /payment/create", func(w http.ResponseWriter, r *http.Request) {
		var req shop.PaymentRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.payments = append(f.payments, req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(f.payment))
	})
	mux.HandleFunc("GET /order/user/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeEnvelope(w, 200, "success", f.orders)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func writeEnvelope(w http.ResponseWriter, code int, msg string, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "msg": msg, "data": data})
}

// writeTestConfig writes a config pointing at baseURL with a SQLite cart in
// a temp dir, plus any extra top-level YAML.
func writeTestConfig(t *testing.T, baseURL, extra string) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`base_url: %s
storage:
  driver: sqlite
  path: %s
%s`, baseURL, filepath.Join(dir, "cart.db"), extra)

	path := filepath.Join(dir, "shopcart.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// mustExecute runs the command and fails the test on error.
func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, errOut, err := execute(t, args...)
	require.NoError(t, err, "stdout: %s\nstderr: %s", out, errOut)
	return out
}

// decodeResponse parses a single-line JSON CLI response.
func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &resp), out)
	return resp
}

// dataAs re-decodes a response's data into v.
func dataAs(t *testing.T, resp CLIResponse, v any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}
