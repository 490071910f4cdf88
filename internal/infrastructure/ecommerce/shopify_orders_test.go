package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/domain/integration"
)

func TestShopifyAdapter_FetchOrders(t *testing.T) {
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var sawSince, sawStatus string

	mux := http.NewServeMux()
	mux.HandleFunc("/orders.json", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page_info") == "" {
			sawSince = r.URL.Query().Get("created_at_min")
			sawStatus = r.URL.Query().Get("status")
			assert.Equal(t, "250", r.URL.Query().Get("limit"))
			w.Header().Set("Link", fmt.Sprintf(`<http://%s/orders.json?limit=250&page_info=p2>; rel="next"`, r.Host))
			_, _ = w.Write([]byte(`{"orders":[
				{"id":1001,"name":"#1001","email":"ivan@example.com","tags":"vip","created_at":"2026-03-02T09:00:00Z",
				 "customer":{"first_name":"Ivan","last_name":"Petrov","phone":"+7900"},
				 "shipping_address":{"address1":"Lenina 1","city":"Moscow","zip":"101000","country":"Russia"},
				 "line_items":[{"title":"Tea","sku":"tea-1","quantity":2,"price":"3.50"}]},
				{"id":1002,"name":"#1002","tags":"vip, MoySklad-Synced"}
			]}`))
			return
		}
		assert.Empty(t, r.URL.Query().Get("created_at_min"))
		_, _ = w.Write([]byte(`{"orders":[{"id":1003,"name":"#1003","tags":"","shipping_address":{"first_name":"Olga","phone":"+7911"}}]}`))
	})

	a := newTestShopifyAdapter(t, mux, "")
	orders, err := a.FetchOrders(context.Background(), integration.OrderFetchOptions{
		ExcludeTag:   integration.DefaultOrderSyncedTag,
		CreatedSince: &since,
	})

	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T00:00:00Z", sawSince)
	assert.Equal(t, "any", sawStatus)
	require.Len(t, orders, 2)

	first := orders[0]
	assert.Equal(t, "1001", first.PlatformID)
	assert.Equal(t, "#1001", first.Name)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), first.CreatedAt.UTC())
	assert.Equal(t, []string{"vip"}, first.Tags)
	require.NotNil(t, first.Customer)
	assert.Equal(t, "Ivan Petrov", first.Customer.DisplayName())
	assert.Equal(t, "ivan@example.com", first.Customer.Email)
	assert.Equal(t, "+7900", first.Customer.Phone)
	assert.Equal(t, "Lenina 1 Moscow 101000 Russia", first.ShippingAddress.String())
	require.Len(t, first.LineItems, 1)
	assert.Equal(t, "tea-1", first.LineItems[0].SKU)
	assert.Equal(t, int64(2), first.LineItems[0].Quantity)
	assert.True(t, decimal.RequireFromString("3.5").Equal(first.LineItems[0].Price))

	guest := orders[1]
	assert.Equal(t, "1003", guest.PlatformID)
	assert.Equal(t, "Olga", guest.Customer.DisplayName())
	assert.Equal(t, "+7911", guest.Customer.Phone)
}

func TestShopifyAdapter_FetchOrders_Error(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orders.json", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	a := newTestShopifyAdapter(t, mux, "")
	_, err := a.FetchOrders(context.Background(), integration.OrderFetchOptions{})
	assert.ErrorIs(t, err, integration.ErrPlatformAuthFailed)
}

func TestShopifyAdapter_TagOrder(t *testing.T) {
	var got ShopifyOrderEnvelope
	var puts int

	mux := http.NewServeMux()
	mux.HandleFunc("/orders/1001.json", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "id,tags", r.URL.Query().Get("fields"))
			_, _ = w.Write([]byte(`{"order":{"id":1001,"tags":"vip, wholesale"}}`))
		case http.MethodPut:
			puts++
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_, _ = w.Write([]byte(`{"order":{"id":1001}}`))
		}
	})
	mux.HandleFunc("/orders/1002.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			puts++
		}
		_, _ = w.Write([]byte(`{"order":{"id":1002,"tags":"moysklad-synced"}}`))
	})

	a := newTestShopifyAdapter(t, mux, "")
	require.NoError(t, a.TagOrder(context.Background(), "1001", "moysklad-synced"))
	assert.Equal(t, int64(1001), got.Order.ID)
	assert.Equal(t, "vip, wholesale, moysklad-synced", got.Order.Tags)

	require.NoError(t, a.TagOrder(context.Background(), "1002", "moysklad-synced"))
	assert.Equal(t, 1, puts, "already tagged orders are left alone")

	err := a.TagOrder(context.Background(), "gid://x", "moysklad-synced")
	assert.ErrorIs(t, err, integration.ErrOrderSyncFailed)
}

func TestSplitTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, splitTags(" a, ,b c,"))
	assert.Nil(t, splitTags(""))
}
