package erpnext

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/snd-est/snd-rental/internal/shared"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		URL:       server.URL + "/", // trailing slash must be tolerated
		APIKey:    "key123",
		APISecret: "secret456",
		Timeout:   5 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresCredentials(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewClient(Config{URL: "http://localhost"}, logger, nil)
	require.ErrorIs(t, err, shared.ErrNotConfigured)
	require.Contains(t, err.Error(), "ERPNEXT_API_KEY")
	require.Contains(t, err.Error(), "ERPNEXT_API_SECRET")
}

func TestTokenAuthHeader(t *testing.T) {
	var gotAuth, gotAccept string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		_ = json.NewEncoder(w).Encode(invoiceEnvelope{Data: SalesInvoice{Name: "ACC-SINV-00001"}})
	}))

	inv, err := client.GetInvoice(context.Background(), "ACC-SINV-00001")
	require.NoError(t, err)
	require.Equal(t, "ACC-SINV-00001", inv.Name)
	require.Equal(t, "token key123:secret456", gotAuth)
	require.Equal(t, "application/json", gotAccept)
}

func TestMissingDocumentIsNotFound(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"exc_type":"DoesNotExistError"}`, http.StatusNotFound)
	}))

	_, err := client.GetInvoice(context.Background(), "ACC-SINV-MISSING")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestServerErrorExtractsMessage(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"Duplicate name ACC-SINV-00001"}`))
	}))

	_, err := client.GetInvoice(context.Background(), "ACC-SINV-00001")
	require.ErrorIs(t, err, shared.ErrExternal)
	require.Contains(t, err.Error(), "Duplicate name ACC-SINV-00001")
}

func TestExtractMessage(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`{"message":"boom"}`, "boom"},
		{`{"exc":"Traceback..."}`, "Traceback..."},
		{`{"message":"boom","exc":"trace"}`, "boom"},
		{`<html>gateway timeout</html>`, "<html>gateway timeout</html>"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, extractMessage([]byte(tc.body)))
	}
}

func TestListInvoicesQuery(t *testing.T) {
	var gotQuery map[string]string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"filters":           r.URL.Query().Get("filters"),
			"limit_page_length": r.URL.Query().Get("limit_page_length"),
		}
		_ = json.NewEncoder(w).Encode(invoiceListEnvelope{Data: []SalesInvoice{{Name: "ACC-SINV-00001"}}})
	}))

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	invoices, err := client.ListInvoices(context.Background(), from, to, "ACME Contracting")
	require.NoError(t, err)
	require.Len(t, invoices, 1)

	require.Equal(t, "0", gotQuery["limit_page_length"], "pagination disabled for range queries")
	var filters [][]any
	require.NoError(t, json.Unmarshal([]byte(gotQuery["filters"]), &filters))
	require.Len(t, filters, 3)
	require.Equal(t, []any{"posting_date", ">=", "2025-01-01"}, filters[0])
	require.Equal(t, []any{"posting_date", "<=", "2025-01-31"}, filters[1])
	require.Equal(t, []any{"customer", "=", "ACME Contracting"}, filters[2])
}

func TestSubmitInvoiceSendsDocstatus(t *testing.T) {
	var gotMethod string
	var gotBody map[string]int
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, client.SubmitInvoice(context.Background(), "ACC-SINV-00001"))
	require.Equal(t, http.MethodPut, gotMethod)
	require.Equal(t, map[string]int{"docstatus": 1}, gotBody)
}
