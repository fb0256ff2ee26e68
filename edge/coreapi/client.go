// Package coreapi is the edge-side HTTP client for the core's API.
package coreapi

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors for the core's rejection responses.
var (
	ErrUnauthorized = errors.New("core rejected credentials")
	ErrNotFound     = errors.New("not found")
)

// Client talks to the CheckWeigh core over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the given core base URL. skipTLSVerify is for
// self-signed lab certs only.
func New(baseURL string, skipTLSVerify bool) *Client {
	c := &http.Client{Timeout: 30 * time.Second}
	if skipTLSVerify {
		c.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    c,
	}
}

// Register calls the registration endpoint with the shared secret and
// returns the issued device ID and API key.
func (c *Client) Register(ctx context.Context, deviceName, sharedSecret string) (int64, string, error) {
	form := url.Values{
		"device_name":   {deviceName},
		"shared_secret": {sharedSecret},
	}
	var out struct {
		DeviceID int64  `json:"device_id"`
		APIKey   string `json:"api_key"`
	}
	if err := c.postForm(ctx, "/register_device", form, nil, &out); err != nil {
		return 0, "", err
	}
	return out.DeviceID, out.APIKey, nil
}

// Unregister removes the device's registration.
func (c *Client) Unregister(ctx context.Context, deviceName, apiKey string) error {
	form := url.Values{
		"device_name": {deviceName},
		"api_key":     {apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/unregister_device",
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// Validate submits a claim and returns the core's verdict ("correct" or
// "incorrect") verbatim.
func (c *Client) Validate(ctx context.Context, apiKey string, productID int64, predictedLabel int, weightGrams float64) (string, error) {
	form := url.Values{
		"product_id":      {strconv.FormatInt(productID, 10)},
		"predicted_label": {strconv.Itoa(predictedLabel)},
		"weight":          {strconv.FormatFloat(weightGrams, 'f', 1, 64)},
	}
	headers := map[string]string{"Api-Key": apiKey}
	var out struct {
		Result string `json:"result"`
	}
	if err := c.postForm(ctx, "/validate", form, headers, &out); err != nil {
		return "", err
	}
	return out.Result, nil
}

// ProductInfo is the core's public product listing entry.
type ProductInfo struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	WeightGrams float64 `json:"weight_grams"`
}

// Products fetches the product catalog.
func (c *Client) Products(ctx context.Context) ([]ProductInfo, error) {
	var out []ProductInfo
	if err := c.getJSON(ctx, "/get_products", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ModelVersion fetches the core's current model version tag.
func (c *Client) ModelVersion(ctx context.Context) (string, error) {
	var out struct {
		Version string `json:"version"`
	}
	if err := c.getJSON(ctx, "/get_model_version", &out); err != nil {
		return "", err
	}
	return out.Version, nil
}

// FetchModel streams the current model artifact into w.
func (c *Client) FetchModel(ctx context.Context, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/get_model", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("download model: %w", err)
	}
	return nil
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, readDetail(resp.Body))
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, readDetail(resp.Body))
	default:
		return fmt.Errorf("core returned %d: %s", resp.StatusCode, readDetail(resp.Body))
	}
}

func readDetail(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}
