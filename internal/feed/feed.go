package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Feed is the vendor's product export document (SHOP/SHOPITEM).
type Feed struct {
	XMLName xml.Name   `xml:"SHOP"`
	Items   []ShopItem `xml:"SHOPITEM"`
}

type ShopItem struct {
	ID               string  `xml:"id,attr"`
	GUID             string  `xml:"GUID"`
	Name             string  `xml:"NAME"`
	Code             string  `xml:"CODE"`
	EAN              string  `xml:"EAN"`
	Manufacturer     string  `xml:"MANUFACTURER"`
	Supplier         string  `xml:"SUPPLIER"`
	ShortDescription string  `xml:"SHORT_DESCRIPTION"`
	Description      string  `xml:"DESCRIPTION"`
	PriceVAT         float64 `xml:"PRICE_VAT"`
	StandardPrice    float64 `xml:"STANDARD_PRICE"`

	Stock    *Stock    `xml:"STOCK"`
	Logistic *Logistic `xml:"LOGISTIC"`

	Images []string `xml:"IMAGES>IMAGE"`

	InformationParameters []InformationParameter `xml:"INFORMATION_PARAMETERS>INFORMATION_PARAMETER"`
	TextProperties        []TextProperty         `xml:"TEXT_PROPERTIES>TEXT_PROPERTY"`

	Variants []Variant `xml:"VARIANTS>VARIANT"`
}

type Variant struct {
	ID            string  `xml:"id,attr"`
	Code          string  `xml:"CODE"`
	EAN           string  `xml:"EAN"`
	PriceVAT      float64 `xml:"PRICE_VAT"`
	StandardPrice float64 `xml:"STANDARD_PRICE"`

	Stock    *Stock    `xml:"STOCK"`
	Logistic *Logistic `xml:"LOGISTIC"`
	ImageRef string    `xml:"IMAGE_REF"`

	Parameters []Parameter `xml:"PARAMETERS>PARAMETER"`
}

type Stock struct {
	Amount int `xml:"AMOUNT"`
}

type Logistic struct {
	Weight float64 `xml:"WEIGHT"`
}

type Parameter struct {
	Name  string `xml:"NAME"`
	Value string `xml:"VALUE"`
}

type InformationParameter struct {
	Name   string   `xml:"NAME"`
	Values []string `xml:"VALUE"`
}

type TextProperty struct {
	Name  string `xml:"NAME"`
	Value string `xml:"VALUE"`
}

// The variant parameter that drives shop variations.
const sizeParameterName = "Velikost"

// Size returns the variant's size parameter, "" when absent.
func (v Variant) Size() string {
	for _, p := range v.Parameters {
		if strings.EqualFold(strings.TrimSpace(p.Name), sizeParameterName) {
			return strings.TrimSpace(p.Value)
		}
	}
	return ""
}

func (s ShopItem) HasVariants() bool {
	return len(s.Variants) > 0
}

// StockAmount is 0 when the feed omits STOCK.
func (s ShopItem) StockAmount() int {
	if s.Stock == nil {
		return 0
	}
	return s.Stock.Amount
}

func (v Variant) StockAmount() int {
	if v.Stock == nil {
		return 0
	}
	return v.Stock.Amount
}

// Fetcher downloads and decodes the feed.
type Fetcher struct {
	url   string
	httpc *http.Client
}

func NewFetcher(url string) *Fetcher {
	return &Fetcher{
		url: url,
		httpc: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (f *Fetcher) Fetch(ctx context.Context) (*Feed, error) {
	if f.url == "" {
		return nil, errors.New("feed url is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}

	resp, err := f.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch feed")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("feed http %d", resp.StatusCode)
	}

	return Decode(resp.Body)
}

// Decode parses the document and rejects feeds without a single SHOPITEM;
// an empty export almost always means a broken source, not an empty shop.
func Decode(r io.Reader) (*Feed, error) {
	var f Feed
	if err := xml.NewDecoder(r).Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decode feed")
	}
	if len(f.Items) == 0 {
		return nil, errors.New("feed has no SHOPITEM elements")
	}
	return &f, nil
}
