package shop

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type call struct {
	method string
	path   string
	query  string
	body   string
}

func newTestClient(t *testing.T, status int, resp string) (*Client, *[]call) {
	t.Helper()
	calls := &[]call{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		*calls = append(*calls, call{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			body:   string(b),
		})
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL, "ck_test", "cs_test"), calls
}

func TestClient_UpdateOrderStatus(t *testing.T) {
	c, calls := newTestClient(t, http.StatusOK, `{"id":42}`)

	err := c.UpdateOrderStatus(context.Background(), 42, "awaiting-shipment", "Order sent to fulfillment")
	require.NoError(t, err)
	require.Len(t, *calls, 2)

	first := (*calls)[0]
	require.Equal(t, http.MethodPut, first.method)
	require.Equal(t, "/wp-json/wc/v3/orders/42", first.path)
	require.Contains(t, first.query, "consumer_key=ck_test")
	require.Contains(t, first.query, "consumer_secret=cs_test")
	require.JSONEq(t, `{"status":"awaiting-shipment"}`, first.body)

	second := (*calls)[1]
	require.Equal(t, http.MethodPost, second.method)
	require.Equal(t, "/wp-json/wc/v3/orders/42/notes", second.path)
	require.JSONEq(t, `{"note":"Order sent to fulfillment"}`, second.body)
}

func TestClient_SetOrderMeta(t *testing.T) {
	c, calls := newTestClient(t, http.StatusOK, `{"id":42}`)

	err := c.SetOrderMeta(context.Background(), 42, map[string]string{"_tracking_number": "TRK1"})
	require.NoError(t, err)
	require.Len(t, *calls, 1)

	var body struct {
		MetaData []MetaData `json:"meta_data"`
	}
	require.NoError(t, json.Unmarshal([]byte((*calls)[0].body), &body))
	require.Len(t, body.MetaData, 1)
	require.Equal(t, "_tracking_number", body.MetaData[0].Key)
}

func TestClient_UpsertProduct_CreateAndUpdate(t *testing.T) {
	c, calls := newTestClient(t, http.StatusCreated, `{"id":5001}`)

	id, err := c.UpsertProduct(context.Background(), ProductUpsert{Name: "Tričko", Type: "variable"})
	require.NoError(t, err)
	require.Equal(t, uint64(5001), id)
	require.Equal(t, http.MethodPost, (*calls)[0].method)
	require.Equal(t, "/wp-json/wc/v3/products", (*calls)[0].path)

	id, err = c.UpsertProduct(context.Background(), ProductUpsert{ID: 5001, Name: "Tričko"})
	require.NoError(t, err)
	require.Equal(t, uint64(5001), id)
	require.Equal(t, http.MethodPut, (*calls)[1].method)
	require.Equal(t, "/wp-json/wc/v3/products/5001", (*calls)[1].path)
}

func TestClient_UpsertVariation(t *testing.T) {
	c, calls := newTestClient(t, http.StatusCreated, `{"id":5002}`)

	id, err := c.UpsertVariation(context.Background(), 5001, VariationUpsert{
		SKU:        "TSHIRT-S",
		Attributes: []VariationAttribute{{Name: "Velikost", Option: "S"}},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(5002), id)
	require.Equal(t, "/wp-json/wc/v3/products/5001/variations", (*calls)[0].path)
	require.Contains(t, (*calls)[0].body, "Velikost")
}

func TestClient_HTTPError(t *testing.T) {
	c, _ := newTestClient(t, http.StatusUnauthorized, `{"code":"woocommerce_rest_cannot_view"}`)

	err := c.AddOrderNote(context.Background(), 42, "x")
	require.Error(t, err)
	require.Contains(t, err.Error(), "http 401")
}
