package elogist

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const (
	soap12Namespace = "http://www.w3.org/2003/05/soap-envelope"
	elsNamespace    = "http://www.elogist.cz/els/ws"
)

// SOAPClient talks SOAP 1.2 with HTTP basic auth to the eLogist WS
// endpoint. The surface is four operations with a fixed schema, so the
// envelopes are built directly with encoding/xml.
type SOAPClient struct {
	endpoint  string
	username  string
	password  string
	projectID string
	httpc     *http.Client
}

func NewSOAPClient(endpoint, username, password, projectID string) *SOAPClient {
	return &SOAPClient{
		endpoint:  endpoint,
		username:  username,
		password:  password,
		projectID: projectID,
		httpc: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type soapEnvelope struct {
	XMLName xml.Name `xml:"soap:Envelope"`
	NS      string   `xml:"xmlns:soap,attr"`
	Body    soapBody `xml:"soap:Body"`
}

type soapBody struct {
	Payload any
}

type respEnvelope struct {
	Body respBody `xml:"Body"`
}

type respBody struct {
	Fault *soapFault `xml:"Fault"`

	CarrierListGetResponse             *carrierListGetResponse `xml:"CarrierListGetResponse"`
	DeliveryOrderResponse              *deliveryOrderResponse  `xml:"DeliveryOrderResponse"`
	DeliveryOrderStatusGetResponse     *deliveryOrderResponse  `xml:"DeliveryOrderStatusGetResponse"`
	DeliveryOrderStatusGetNewsResponse *statusGetNewsResponse  `xml:"DeliveryOrderStatusGetNewsResponse"`
}

type soapFault struct {
	Code   string `xml:"Code>Value"`
	Reason string `xml:"Reason>Text"`
}

type resultXML struct {
	Code        int    `xml:"code"`
	Description string `xml:"description"`
}

type statusXML struct {
	OrderID         string `xml:"orderId"`
	SysOrderID      string `xml:"sysOrderId"`
	Status          string `xml:"status"`
	TrackingNo      string `xml:"trackingNo"`
	ChangedDateTime string `xml:"changedDateTime"`
}

func (s statusXML) toStatus() DeliveryOrderStatus {
	out := DeliveryOrderStatus{
		OrderID:    s.OrderID,
		SysOrderID: s.SysOrderID,
		Status:     s.Status,
		TrackingNo: s.TrackingNo,
	}
	if s.ChangedDateTime != "" {
		if t, err := time.Parse(time.RFC3339, s.ChangedDateTime); err == nil {
			t = t.UTC()
			out.ChangedAt = &t
		}
	}
	return out
}

type carrierListGetResponse struct {
	Result   resultXML `xml:"result"`
	Carriers []struct {
		CarrierID string `xml:"carrierId"`
		Name      string `xml:"name"`
	} `xml:"carriers>carrier"`
}

type deliveryOrderResponse struct {
	Result resultXML `xml:"result"`
	Status statusXML `xml:"deliveryOrderStatus"`
}

type statusGetNewsResponse struct {
	Result   resultXML   `xml:"result"`
	Statuses []statusXML `xml:"deliveryOrderStatuses>deliveryOrderStatus"`
}

type carrierListGetRequest struct {
	XMLName   xml.Name `xml:"CarrierListGet"`
	XMLNS     string   `xml:"xmlns,attr"`
	ProjectID string   `xml:"projectId"`
}

type deliveryOrderStatusGetRequest struct {
	XMLName   xml.Name `xml:"DeliveryOrderStatusGet"`
	XMLNS     string   `xml:"xmlns,attr"`
	ProjectID string   `xml:"projectId"`
	OrderID   string   `xml:"orderId"`
}

type deliveryOrderStatusGetNewsRequest struct {
	XMLName       xml.Name `xml:"DeliveryOrderStatusGetNews"`
	XMLNS         string   `xml:"xmlns,attr"`
	ProjectID     string   `xml:"projectId"`
	AfterDateTime string   `xml:"afterDateTime"`
}

func (c *SOAPClient) call(ctx context.Context, payload any) (*respBody, error) {
	env := soapEnvelope{NS: soap12Namespace, Body: soapBody{Payload: payload}}
	reqXML, err := xml.Marshal(env)
	if err != nil {
		return nil, errors.Wrap(err, "marshal envelope")
	}

	body := append([]byte(xml.Header), reqXML...)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	// SOAP 1.2 faults arrive as HTTP 500 with an envelope body.
	if resp.StatusCode/100 != 2 && resp.StatusCode != http.StatusInternalServerError {
		return nil, fmt.Errorf("elogist http %d", resp.StatusCode)
	}

	var out respEnvelope
	if err := xml.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode envelope")
	}
	if out.Body.Fault != nil {
		return nil, fmt.Errorf("elogist soap fault %s: %s", out.Body.Fault.Code, out.Body.Fault.Reason)
	}
	return &out.Body, nil
}

func checkResult(r resultXML) error {
	if r.Code == resultCodeOK {
		return nil
	}
	return &APIError{Code: r.Code, Description: r.Description}
}

func (c *SOAPClient) CarrierListGet(ctx context.Context) ([]Carrier, error) {
	body, err := c.call(ctx, carrierListGetRequest{XMLNS: elsNamespace, ProjectID: c.projectID})
	if err != nil {
		return nil, err
	}
	if body.CarrierListGetResponse == nil {
		return nil, errors.New("elogist: missing CarrierListGetResponse")
	}
	if err := checkResult(body.CarrierListGetResponse.Result); err != nil {
		return nil, err
	}
	out := make([]Carrier, 0, len(body.CarrierListGetResponse.Carriers))
	for _, cr := range body.CarrierListGetResponse.Carriers {
		out = append(out, Carrier{CarrierID: cr.CarrierID, Name: cr.Name})
	}
	return out, nil
}

func (c *SOAPClient) DeliveryOrder(ctx context.Context, req *DeliveryOrderRequest) (*DeliveryOrderStatus, error) {
	r := *req
	r.XMLNS = elsNamespace
	if r.ProjectID == "" {
		r.ProjectID = c.projectID
	}

	body, err := c.call(ctx, r)
	if err != nil {
		return nil, err
	}
	if body.DeliveryOrderResponse == nil {
		return nil, errors.New("elogist: missing DeliveryOrderResponse")
	}
	if err := checkResult(body.DeliveryOrderResponse.Result); err != nil {
		return nil, err
	}
	st := body.DeliveryOrderResponse.Status.toStatus()
	return &st, nil
}

func (c *SOAPClient) DeliveryOrderStatusGet(ctx context.Context, orderID string) (*DeliveryOrderStatus, error) {
	body, err := c.call(ctx, deliveryOrderStatusGetRequest{
		XMLNS: elsNamespace, ProjectID: c.projectID, OrderID: orderID,
	})
	if err != nil {
		return nil, err
	}
	if body.DeliveryOrderStatusGetResponse == nil {
		return nil, errors.New("elogist: missing DeliveryOrderStatusGetResponse")
	}
	if err := checkResult(body.DeliveryOrderStatusGetResponse.Result); err != nil {
		return nil, err
	}
	st := body.DeliveryOrderStatusGetResponse.Status.toStatus()
	return &st, nil
}

func (c *SOAPClient) DeliveryOrderStatusGetNews(ctx context.Context, after time.Time) ([]DeliveryOrderStatus, error) {
	body, err := c.call(ctx, deliveryOrderStatusGetNewsRequest{
		XMLNS: elsNamespace, ProjectID: c.projectID,
		AfterDateTime: after.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	if body.DeliveryOrderStatusGetNewsResponse == nil {
		return nil, errors.New("elogist: missing DeliveryOrderStatusGetNewsResponse")
	}
	if err := checkResult(body.DeliveryOrderStatusGetNewsResponse.Result); err != nil {
		return nil, err
	}
	out := make([]DeliveryOrderStatus, 0, len(body.DeliveryOrderStatusGetNewsResponse.Statuses))
	for _, s := range body.DeliveryOrderStatusGetNewsResponse.Statuses {
		out = append(out, s.toStatus())
	}
	return out, nil
}
