package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// HTTPDoer describes the HTTP client used to reach the catalog.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client speaks the catalog's REST dialect: collections under /api/v1/, a
// query-by-field filter returning an object list, and JSON POSTs to create.
type Client struct {
	baseURL  string
	username string
	apiKey   string
	client   HTTPDoer
}

// NewClient constructs a catalog client. client may be nil, in which case
// http.DefaultClient is used.
func NewClient(baseURL, username, apiKey string, client HTTPDoer) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		username: strings.TrimSpace(username),
		apiKey:   strings.TrimSpace(apiKey),
		client:   client,
	}
}

func (c *Client) collectionURL(collection string) string {
	return c.baseURL + "/api/v1/" + collection + "/"
}

func (c *Client) authorize(req *http.Request) {
	if c.username != "" && c.apiKey != "" {
		req.Header.Set("Authorization", "ApiKey "+c.username+":"+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
}

func (c *Client) do(req *http.Request) (*http.Response, []byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s %s: %w", ErrUnavailable, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read response from %s: %w", ErrUnavailable, req.URL.Path, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, nil, fmt.Errorf("%w: %s %s returned %d: %s",
			ErrUnavailable, req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, nil, fmt.Errorf("catalog: %s %s returned %d: %s",
			req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, body, nil
}

// filter queries collection by the given parameters and returns every match.
func filter[T any](ctx context.Context, c *Client, collection string, params url.Values) ([]T, error) {
	endpoint := c.collectionURL(collection)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: build %s filter request: %w", collection, err)
	}
	c.authorize(req)
	_, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var list listResponse[T]
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("catalog: decode %s filter response: %w", collection, err)
	}
	return list.Objects, nil
}

// create POSTs payload to collection and returns the stored resource.
func create[T any](ctx context.Context, c *Client, collection string, payload T) (T, error) {
	var zero T
	encoded, err := json.Marshal(payload)
	if err != nil {
		return zero, fmt.Errorf("catalog: encode %s payload: %w", collection, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.collectionURL(collection), bytes.NewReader(encoded))
	if err != nil {
		return zero, fmt.Errorf("catalog: build %s create request: %w", collection, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	resp, body, err := c.do(req)
	if err != nil {
		return zero, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		// Some catalog versions return an empty 201 with only a Location
		// header pointing at the stored resource.
		if loc := resp.Header.Get("Location"); loc != "" {
			type withURI interface{ setResourceURI(string) }
			if r, ok := any(&payload).(withURI); ok {
				r.setResourceURI(loc)
			}
		}
		return payload, nil
	}
	var stored T
	if err := json.Unmarshal(body, &stored); err != nil {
		return zero, fmt.Errorf("catalog: decode %s create response: %w", collection, err)
	}
	return stored, nil
}

func (r *Resource) setResourceURI(uri string) {
	r.ResourceURI = uri
}

// resolveNamed looks up a singleton resource by name and fails with
// ErrSchema when the catalog has no such entity.
func resolveNamed[T any](ctx context.Context, c *Client, collection, name string) (T, error) {
	var zero T
	params := url.Values{}
	params.Set("name", name)
	matches, err := filter[T](ctx, c, collection, params)
	if err != nil {
		return zero, err
	}
	if len(matches) == 0 {
		return zero, fmt.Errorf("%w: no %s named %q", ErrSchema, collection, name)
	}
	return matches[0], nil
}

// InstitutionByName resolves the institution acting as data source.
func (c *Client) InstitutionByName(ctx context.Context, name string) (Institution, error) {
	return resolveNamed[Institution](ctx, c, "institution", name)
}

// DataFormatByName resolves a registered data format.
func (c *Client) DataFormatByName(ctx context.Context, name string) (DataFormat, error) {
	return resolveNamed[DataFormat](ctx, c, "dataformat", name)
}

// ServiceBackendByName resolves a registered service backend.
func (c *Client) ServiceBackendByName(ctx context.Context, name string) (ServiceBackend, error) {
	return resolveNamed[ServiceBackend](ctx, c, "servicebackend", name)
}

// EnsureProduct resolves the product matching key, creating it when the
// catalog has no match.
func (c *Client) EnsureProduct(ctx context.Context, key ProductKey) (Product, error) {
	params := url.Values{}
	params.Set("name", key.Name)
	params.Set("source", key.Source)
	matches, err := filter[Product](ctx, c, "product", params)
	if err != nil {
		return Product{}, err
	}
	if len(matches) > 0 {
		return matches[0], nil
	}
	return create(ctx, c, "product", Product{Name: key.Name, Source: key.Source})
}

// EnsureProductInstance resolves the product instance matching key, creating
// it when the catalog has no match.
func (c *Client) EnsureProductInstance(ctx context.Context, key ProductInstanceKey) (ProductInstance, error) {
	params := url.Values{}
	params.Set("product", key.Product)
	params.Set("reference_time", key.ReferenceTime.Format(timeFormat))
	params.Set("version", strconv.Itoa(key.Version))
	matches, err := filter[ProductInstance](ctx, c, "productinstance", params)
	if err != nil {
		return ProductInstance{}, err
	}
	if len(matches) > 0 {
		return matches[0], nil
	}
	return create(ctx, c, "productinstance", ProductInstance{
		Product:       key.Product,
		ReferenceTime: key.ReferenceTime,
		Version:       key.Version,
	})
}

// EnsureData resolves the data resource matching key, creating it when the
// catalog has no match.
func (c *Client) EnsureData(ctx context.Context, key DataKey) (Data, error) {
	params := url.Values{}
	params.Set("productinstance", key.ProductInstance)
	params.Set("time_period_begin", key.TimePeriodBegin.Format(timeFormat))
	params.Set("time_period_end", key.TimePeriodEnd.Format(timeFormat))
	matches, err := filter[Data](ctx, c, "data", params)
	if err != nil {
		return Data{}, err
	}
	if len(matches) > 0 {
		return matches[0], nil
	}
	return create(ctx, c, "data", Data{
		ProductInstance: key.ProductInstance,
		TimePeriodBegin: key.TimePeriodBegin,
		TimePeriodEnd:   key.TimePeriodEnd,
	})
}

// CreateDataInstance registers a new physical copy of a data resource.
// Data instances are never deduplicated; every publish creates one.
func (c *Client) CreateDataInstance(ctx context.Context, instance DataInstance) (DataInstance, error) {
	return create(ctx, c, "datainstance", instance)
}
