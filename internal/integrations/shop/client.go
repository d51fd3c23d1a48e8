package shop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Client talks to the shop's wc/v3 REST API with consumer key/secret
// query auth over HTTPS.
type Client struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	httpc          *http.Client
}

func New(storeURL, consumerKey, consumerSecret string) *Client {
	return &Client{
		baseURL:        strings.TrimRight(storeURL, "/") + "/wp-json/wc/v3",
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		httpc: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type Attribute struct {
	Name      string   `json:"name"`
	Options   []string `json:"options,omitempty"`
	Variation bool     `json:"variation,omitempty"`
	Visible   bool     `json:"visible,omitempty"`
}

type VariationAttribute struct {
	Name   string `json:"name"`
	Option string `json:"option"`
}

type MetaData struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// ProductUpsert creates the product when ID is zero, updates it otherwise.
type ProductUpsert struct {
	ID               uint64      `json:"-"`
	Name             string      `json:"name"`
	Type             string      `json:"type,omitempty"`
	SKU              string      `json:"sku,omitempty"`
	RegularPrice     string      `json:"regular_price,omitempty"`
	SalePrice        string      `json:"sale_price,omitempty"`
	Description      string      `json:"description,omitempty"`
	ShortDescription string      `json:"short_description,omitempty"`
	StockQuantity    *int        `json:"stock_quantity,omitempty"`
	ManageStock      bool        `json:"manage_stock,omitempty"`
	Weight           string      `json:"weight,omitempty"`
	Attributes       []Attribute `json:"attributes,omitempty"`
	MetaData         []MetaData  `json:"meta_data,omitempty"`
}

type VariationUpsert struct {
	ID            uint64               `json:"-"`
	SKU           string               `json:"sku,omitempty"`
	RegularPrice  string               `json:"regular_price,omitempty"`
	SalePrice     string               `json:"sale_price,omitempty"`
	StockQuantity *int                 `json:"stock_quantity,omitempty"`
	ManageStock   bool                 `json:"manage_stock,omitempty"`
	Weight        string               `json:"weight,omitempty"`
	Attributes    []VariationAttribute `json:"attributes,omitempty"`
	MetaData      []MetaData           `json:"meta_data,omitempty"`
}

type idResponse struct {
	ID uint64 `json:"id"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal body")
		}
		bodyReader = bytes.NewReader(b)
	}

	fullURL := c.baseURL + path
	if strings.Contains(fullURL, "?") {
		fullURL += "&"
	} else {
		fullURL += "?"
	}
	fullURL += fmt.Sprintf("consumer_key=%s&consumer_secret=%s", c.consumerKey, c.consumerSecret)

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("shop api %s %s: http %d: %s", method, path, resp.StatusCode, string(b))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrap(err, "decode response")
		}
	}
	return nil
}

// UpdateOrderStatus moves the order and leaves a note explaining why.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID uint64, status, note string) error {
	path := fmt.Sprintf("/orders/%d", orderID)
	if err := c.do(ctx, http.MethodPut, path, map[string]string{"status": status}, nil); err != nil {
		return err
	}
	if note == "" {
		return nil
	}
	return c.AddOrderNote(ctx, orderID, note)
}

func (c *Client) AddOrderNote(ctx context.Context, orderID uint64, note string) error {
	path := fmt.Sprintf("/orders/%d/notes", orderID)
	return c.do(ctx, http.MethodPost, path, map[string]string{"note": note}, nil)
}

// SetOrderMeta writes order meta entries (tracking number etc).
func (c *Client) SetOrderMeta(ctx context.Context, orderID uint64, meta map[string]string) error {
	md := make([]MetaData, 0, len(meta))
	for k, v := range meta {
		md = append(md, MetaData{Key: k, Value: v})
	}
	path := fmt.Sprintf("/orders/%d", orderID)
	return c.do(ctx, http.MethodPut, path, map[string]any{"meta_data": md}, nil)
}

// UpsertProduct returns the shop product id.
func (c *Client) UpsertProduct(ctx context.Context, p ProductUpsert) (uint64, error) {
	var resp idResponse
	if p.ID == 0 {
		if err := c.do(ctx, http.MethodPost, "/products", p, &resp); err != nil {
			return 0, err
		}
		return resp.ID, nil
	}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/products/%d", p.ID), p, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// UpsertVariation returns the shop variation id.
func (c *Client) UpsertVariation(ctx context.Context, productID uint64, v VariationUpsert) (uint64, error) {
	var resp idResponse
	if v.ID == 0 {
		path := fmt.Sprintf("/products/%d/variations", productID)
		if err := c.do(ctx, http.MethodPost, path, v, &resp); err != nil {
			return 0, err
		}
		return resp.ID, nil
	}
	path := fmt.Sprintf("/products/%d/variations/%d", productID, v.ID)
	if err := c.do(ctx, http.MethodPut, path, v, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}
