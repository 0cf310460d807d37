package erpnext

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snd-est/snd-rental/internal/shared"
)

func TestNormalizeItemCode(t *testing.T) {
	cases := []struct {
		name  string
		plate string
		want  string
	}{
		{"Excavator", "", "EXCAVATOR"},
		{"  excavator  ", "", "EXCAVATOR"},
		{"Excavator", "abc-123", "EXCAVATOR-ABC-123"},
		{"Mobile Crane 50T", " xy 99 ", "MOBILE CRANE 50T-XY 99"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, NormalizeItemCode(tc.name, tc.plate))
	}
}

func TestItemCodeExactMatch(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/resource/Item/EXCAVATOR", r.URL.Path)
		_ = json.NewEncoder(w).Encode(itemEnvelope{Data: itemDoc{ItemCode: "EXCAVATOR"}})
	}))

	code, err := client.ItemCode(context.Background(), "Excavator", "")
	require.NoError(t, err)
	require.Equal(t, "EXCAVATOR", code)
}

func TestItemCodeFuzzyFallback(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/resource/Item/") {
			http.NotFound(w, r)
			return
		}
		// List search by item_name.
		require.Contains(t, r.URL.Query().Get("filters"), "item_name")
		_ = json.NewEncoder(w).Encode(itemListEnvelope{Data: []itemDoc{{ItemCode: "EXCAVATOR-OLD", ItemName: "Excavator"}}})
	}))

	code, err := client.ItemCode(context.Background(), "Excavator", "NEW-1")
	require.NoError(t, err)
	require.Equal(t, "EXCAVATOR-OLD", code, "an existing code for the same name wins over provisioning")
}

func TestItemCodeProvisionsMissingItem(t *testing.T) {
	var created itemDoc
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/resource/Item/"):
			http.NotFound(w, r)
		case r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(itemListEnvelope{})
		case r.Method == http.MethodPost:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			_ = json.NewEncoder(w).Encode(itemEnvelope{Data: created})
		}
	}))

	code, err := client.ItemCode(context.Background(), "Tower Crane", "tc-7")
	require.NoError(t, err)
	require.Equal(t, "TOWER CRANE-TC-7", code)
	require.Equal(t, "Tower Crane", created.ItemName)
	require.Equal(t, "Rental Equipment", created.ItemGroup)
	require.Equal(t, "Nos", created.StockUOM)
	require.Zero(t, created.IsStockItem, "rental items carry no stock")
}

func TestItemCodeRequiresName(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no API call expected")
	}))

	_, err := client.ItemCode(context.Background(), "   ", "")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAccountLookup(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/resource/Account", r.URL.Path)
		filters := r.URL.Query().Get("filters")
		if strings.Contains(filters, "Income Account") {
			_ = json.NewEncoder(w).Encode(accountListEnvelope{Data: []accountDoc{{Name: "4100 - Rental Income - SND"}}})
			return
		}
		_ = json.NewEncoder(w).Encode(accountListEnvelope{})
	}))

	require.Equal(t, "4100 - Rental Income - SND", client.IncomeAccount(context.Background()))

	// Empty lookup results fall back to the conventional names.
	require.Equal(t, defaultReceivableAccount, client.ReceivableAccount(context.Background()))
	require.Equal(t, defaultVATAccount, client.VATAccountHead(context.Background()))
}

func TestAccountLookupFallsBackOnError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	require.Equal(t, defaultVATAccount, client.VATAccountHead(context.Background()))
}
