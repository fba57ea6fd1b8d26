package deliveries

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Meta is the pagination envelope of the listing API.
type Meta struct {
	Page      int `json:"page"`
	Limit     int `json:"limit"`
	TotalPage int `json:"totalPage"`
	TotalData int `json:"totalData"`
}

// ListResponse is the wire shape of GET /api/v1/deliveries.
type ListResponse struct {
	Data   []Delivery `json:"data"`
	Status string     `json:"status"`
	Meta   Meta       `json:"meta"`
}

// Client reads the delivery listing API. The API itself is another
// service; this client only consumes order ids and statuses from it.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// List fetches the current assignments. mode is "delivery" or "pickup",
// matching the dashboard's segmented control; empty means no filter.
func (c *Client) List(ctx context.Context, mode Mode) ([]Delivery, error) {
	u, err := url.Parse(c.baseURL + "/api/v1/deliveries")
	if err != nil {
		return nil, fmt.Errorf("bad delivery api url: %v", err)
	}
	if mode != "" {
		q := u.Query()
		q.Set("mode", string(mode))
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("delivery api request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("delivery api returned %s", resp.Status)
	}

	var list ListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode delivery list: %v", err)
	}
	return list.Data, nil
}
