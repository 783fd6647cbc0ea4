package cli

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
	"time"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) CreateAccount(ctx context.Context, id, name string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/accounts", "", map[string]any{
		"id":   id,
		"name": name,
	}, &out, "")
	return out, err
}

func (c *Client) Transfer(ctx context.Context, accountID, receiverID, amount, currency, description, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/transfers", accountID, map[string]any{
		"receiver_id": receiverID,
		"amount":      amount,
		"currency":    currency,
		"description": description,
	}, &out, idem)
	return out, err
}

func (c *Client) Work(ctx context.Context, accountID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/work", accountID, map[string]any{}, &out, "")
	return out, err
}

func (c *Client) CreateCompany(ctx context.Context, accountID, name, currency, wage string, maxEmployees int) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/companies", accountID, map[string]any{
		"name":          name,
		"currency":      currency,
		"wage":          wage,
		"max_employees": maxEmployees,
	}, &out, "")
	return out, err
}

func (c *Client) GetCompany(ctx context.Context, companyID int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/companies/"+strconv.FormatInt(companyID, 10), "", nil, &out, "")
	return out, err
}

func (c *Client) Hire(ctx context.Context, accountID string, companyID int64, playerID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/companies/"+strconv.FormatInt(companyID, 10)+"/hire", accountID, map[string]any{
		"player_id": playerID,
	}, &out, "")
	return out, err
}

func (c *Client) FundCompany(ctx context.Context, accountID string, companyID int64, amount string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/companies/"+strconv.FormatInt(companyID, 10)+"/deposit", accountID, map[string]any{
		"amount": amount,
	}, &out, "")
	return out, err
}

func (c *Client) Quit(ctx context.Context, accountID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/employment/quit", accountID, map[string]any{}, &out, "")
	return out, err
}

func (c *Client) ListListings(ctx context.Context, limit int) (map[string]any, error) {
	path := "/v1/market/listings"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, path, "", nil, &out, "")
	return out, err
}

func (c *Client) CreateListing(ctx context.Context, accountID, item string, quality, quantity int, unitPrice, currency string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/market/listings", accountID, map[string]any{
		"item":       item,
		"quality":    quality,
		"quantity":   quantity,
		"unit_price": unitPrice,
		"currency":   currency,
	}, &out, "")
	return out, err
}

func (c *Client) Purchase(ctx context.Context, accountID string, listingID int64, quantity int, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/market/purchase", accountID, map[string]any{
		"listing_id": listingID,
		"quantity":   quantity,
	}, &out, idem)
	return out, err
}

func (c *Client) Consume(ctx context.Context, accountID, item string, quality, quantity int) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/consume", accountID, map[string]any{
		"item":     item,
		"quality":  quality,
		"quantity": quantity,
	}, &out, "")
	return out, err
}

func (c *Client) History(ctx context.Context, accountID string, limit int) (map[string]any, error) {
	path := "/v1/accounts/" + url.PathEscape(accountID) + "/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, path, "", nil, &out, "")
	return out, err
}

func (c *Client) VerifyLedger(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/ledger/verify", "", nil, &out, "")
	return out, err
}

func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/stats", "", nil, &out, "")
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path, accountID string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accountID != "" {
		req.Header.Set("X-Account-ID", accountID)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
