// Package hubspot provides a client for the HubSpot CRM v3/v4 APIs.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Default base URL for the HubSpot API.
const defaultBaseURL = "https://api.hubapi.com"

// defaultPageLimit is the association page size requested per call.
// The remote side may return fewer; the paginator never assumes a bound.
const defaultPageLimit = 100

// dealProperties is the fixed attribute projection for deal fetches.
var dealProperties = []string{
	"dealname", "amount", "dealstage", "pipeline", "closedate", "createdate",
	"hubspot_owner_id", "description", "hs_lastmodifieddate",
}

// Client defines the HubSpot CRM operations used by the deal pipeline.
type Client interface {
	// GetDeal fetches a single deal with the fixed property projection.
	GetDeal(ctx context.Context, dealID string) (*Object, error)
	// ListAssociations fetches one page of association edges from a deal
	// to the given object type. Pass after="" for the first page.
	ListAssociations(ctx context.Context, dealID, toObjectType, after string) (*AssociationPage, error)
	// BatchRead resolves object IDs into full records in a single
	// batched request. An empty id list returns an empty slice without
	// making a network call.
	BatchRead(ctx context.Context, objectType string, ids, properties []string) ([]Object, error)
}

// Object is a CRM record: an ID plus its requested property projection.
// Properties not set on the record are absent from the map.
type Object struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

// Prop returns the named property, or "" when absent.
func (o Object) Prop(name string) string {
	return o.Properties[name]
}

// AssociationPage is one page of association edges.
type AssociationPage struct {
	Results []Association `json:"results"`
	Paging  *Paging       `json:"paging,omitempty"`
}

// Association is an edge from the queried object to a related record.
type Association struct {
	ToObjectID int64             `json:"toObjectId"`
	Types      []AssociationType `json:"associationTypes,omitempty"`
}

// AssociationType describes the label of an association edge.
type AssociationType struct {
	Category string `json:"category"`
	TypeID   int    `json:"typeId"`
	Label    string `json:"label,omitempty"`
}

// Paging carries the cursor for the next page, absent on the last page.
type Paging struct {
	Next *PagingNext `json:"next,omitempty"`
}

// PagingNext holds the opaque continuation cursor.
type PagingNext struct {
	After string `json:"after"`
	Link  string `json:"link,omitempty"`
}

// TargetIDs extracts the related-record IDs from association edges,
// skipping edges without a target.
func TargetIDs(assocs []Association) []string {
	ids := make([]string, 0, len(assocs))
	for _, a := range assocs {
		if a.ToObjectID != 0 {
			ids = append(ids, strconv.FormatInt(a.ToObjectID, 10))
		}
	}
	return ids
}

// batchReadRequest is the body for POST /crm/v3/objects/{type}/batch/read.
type batchReadRequest struct {
	Inputs     []batchReadInput `json:"inputs"`
	Properties []string         `json:"properties"`
}

type batchReadInput struct {
	ID string `json:"id"`
}

type batchReadResponse struct {
	Results []Object `json:"results"`
}

// APIError is returned when HubSpot responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hubspot: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets a per-second request rate limit.
// A burst equal to the integer portion of rps is allowed.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new HubSpot client authenticated with a private
// app access token. The default limiter stays under HubSpot's
// 10 req/s burst window.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(9, 9),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) GetDeal(ctx context.Context, dealID string) (*Object, error) {
	path := fmt.Sprintf("/crm/v3/objects/deals/%s?properties=%s", dealID, strings.Join(dealProperties, ","))
	var deal Object
	if err := c.get(ctx, path, &deal); err != nil {
		return nil, eris.Wrapf(err, "hubspot: get deal %s", dealID)
	}
	return &deal, nil
}

func (c *httpClient) ListAssociations(ctx context.Context, dealID, toObjectType, after string) (*AssociationPage, error) {
	path := fmt.Sprintf("/crm/v4/objects/deals/%s/associations/%s?limit=%d", dealID, toObjectType, defaultPageLimit)
	if after != "" {
		path += "&after=" + after
	}
	var page AssociationPage
	if err := c.get(ctx, path, &page); err != nil {
		return nil, eris.Wrapf(err, "hubspot: list %s associations for deal %s", toObjectType, dealID)
	}
	return &page, nil
}

func (c *httpClient) BatchRead(ctx context.Context, objectType string, ids, properties []string) ([]Object, error) {
	if len(ids) == 0 {
		return []Object{}, nil
	}

	req := batchReadRequest{
		Inputs:     make([]batchReadInput, len(ids)),
		Properties: properties,
	}
	for i, id := range ids {
		req.Inputs[i] = batchReadInput{ID: id}
	}

	var resp batchReadResponse
	path := fmt.Sprintf("/crm/v3/objects/%s/batch/read", objectType)
	if err := c.post(ctx, path, req, &resp); err != nil {
		return nil, eris.Wrapf(err, "hubspot: batch read %s", objectType)
	}
	return resp.Results, nil
}

// wait blocks until the rate limiter allows one event, or ctx is cancelled.
func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *httpClient) post(ctx context.Context, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	return c.do(ctx, req, out)
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	return c.do(ctx, req, out)
}

func (c *httpClient) do(ctx context.Context, req *http.Request, out any) error {
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "rate limit")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}

	return nil
}
