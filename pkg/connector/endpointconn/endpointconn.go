// Package endpointconn implements a Connector that talks to a remote
// ProxyStore endpoint daemon's HTTP surface (spec §4.4), the client-side
// counterpart of pkg/endpoint.
package endpointconn

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/proxystore-go/proxystore/pkg/connector"
)

// Kind is this Connector's registered fully-qualified type identifier.
const Kind = "endpoint"

// Key identifies an object stored on a specific endpoint daemon.
type Key struct {
	ObjectID   string
	EndpointID string
}

func (k Key) String() string { return fmt.Sprintf("endpoint(%s@%s)", k.ObjectID, k.EndpointID) }

// Connector is an HTTP client Connector against one endpoint daemon,
// optionally routing gets for objects owned by other endpoints through
// that daemon's peer fabric (the peer_uuid query parameter).
type Connector struct {
	BaseURL    string
	EndpointID string
	HTTPClient *http.Client
}

// New constructs a Connector pointed at an endpoint daemon's baseURL.
func New(baseURL, endpointID string) *Connector {
	return &Connector{
		BaseURL:    baseURL,
		EndpointID: endpointID,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func init() {
	connector.Register(Kind, fromConfig)
	gob.Register(Key{})
}

func fromConfig(cfg connector.Config) (connector.Connector, error) {
	baseURL, _ := cfg.Data["base_url"].(string)
	endpointID, _ := cfg.Data["endpoint_id"].(string)
	if baseURL == "" {
		return nil, &connector.ConfigurationError{Message: "endpointconn: missing base_url"}
	}
	return New(baseURL, endpointID), nil
}

func (c *Connector) Kind() string { return Kind }

func (c *Connector) Config() connector.Config {
	return connector.Config{Kind: Kind, Data: map[string]any{
		"base_url":    c.BaseURL,
		"endpoint_id": c.EndpointID,
	}}
}

func (c *Connector) Put(ctx context.Context, data []byte) (connector.Key, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/set", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("endpointconn: building request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("endpointconn: put: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusRequestEntityTooLarge {
		return nil, &connector.SerializationError{Message: "endpointconn: object exceeds endpoint's maximum size"}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("endpointconn: put failed: status %d", resp.StatusCode)
	}
	var body struct {
		ObjectID string `json:"object_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("endpointconn: decoding put response: %w", err)
	}
	return Key{ObjectID: body.ObjectID, EndpointID: c.EndpointID}, nil
}

func (c *Connector) PutBatch(ctx context.Context, datas [][]byte) ([]connector.Key, error) {
	keys := make([]connector.Key, len(datas))
	for i, d := range datas {
		k, err := c.Put(ctx, d)
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}
	return keys, nil
}

func (c *Connector) getURL(key Key) string {
	v := url.Values{"object_id": {key.ObjectID}}
	if key.EndpointID != "" && key.EndpointID != c.EndpointID {
		v.Set("peer_uuid", key.EndpointID)
	}
	return c.BaseURL + "/get?" + v.Encode()
}

func (c *Connector) Get(ctx context.Context, key connector.Key) ([]byte, bool, error) {
	ek, ok := key.(Key)
	if !ok {
		return nil, false, fmt.Errorf("endpointconn: wrong key type %T", key)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.getURL(ek), nil)
	if err != nil {
		return nil, false, fmt.Errorf("endpointconn: building request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("endpointconn: get: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("endpointconn: get failed: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("endpointconn: reading response: %w", err)
	}
	return data, true, nil
}

func (c *Connector) GetBatch(ctx context.Context, keys []connector.Key) ([][]byte, []bool, error) {
	datas := make([][]byte, len(keys))
	oks := make([]bool, len(keys))
	for i, k := range keys {
		d, ok, err := c.Get(ctx, k)
		if err != nil {
			return nil, nil, err
		}
		datas[i], oks[i] = d, ok
	}
	return datas, oks, nil
}

func (c *Connector) Exists(ctx context.Context, key connector.Key) (bool, error) {
	ek, ok := key.(Key)
	if !ok {
		return false, fmt.Errorf("endpointconn: wrong key type %T", key)
	}
	v := url.Values{"object_id": {ek.ObjectID}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/exists?"+v.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("endpointconn: building request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("endpointconn: exists: %w", err)
	}
	defer resp.Body.Close()
	var body struct {
		Exists bool `json:"exists"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("endpointconn: decoding exists response: %w", err)
	}
	return body.Exists, nil
}

func (c *Connector) Evict(ctx context.Context, key connector.Key) error {
	ek, ok := key.(Key)
	if !ok {
		return fmt.Errorf("endpointconn: wrong key type %T", key)
	}
	v := url.Values{"object_id": {ek.ObjectID}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/evict?"+v.Encode(), nil)
	if err != nil {
		return fmt.Errorf("endpointconn: building request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("endpointconn: evict: %w", err)
	}
	defer resp.Body.Close()
	return nil
}

func (c *Connector) Close() error { return nil }
