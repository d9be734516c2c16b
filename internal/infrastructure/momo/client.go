package momo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"movie-membership/internal/domain"
)

const (
	createPath = "/v2/gateway/api/create"
	queryPath  = "/v2/gateway/api/query"

	maxResponseBytes = 1 << 20
)

type Gateway interface {
	Create(ctx context.Context, p CreateParams) (*CreateResponse, []byte, error)
	Query(ctx context.Context, orderID, requestID string) (*QueryResponse, []byte, error)
}

type Config struct {
	Endpoint    string
	PartnerCode string
	PartnerName string
	StoreID     string
	AccessKey   string
	SecretKey   string
	Lang        string
	Timeout     time.Duration
}

type client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Lang == "" {
		cfg.Lang = "vi"
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *client) Create(ctx context.Context, p CreateParams) (*CreateResponse, []byte, error) {
	body := createRequest{
		PartnerCode: p.PartnerCode,
		PartnerName: c.cfg.PartnerName,
		StoreID:     c.cfg.StoreID,
		RequestID:   p.RequestID,
		Amount:      formatAmount(p.Amount),
		OrderID:     p.OrderID,
		OrderInfo:   p.OrderInfo,
		RedirectURL: p.RedirectURL,
		IPNURL:      p.IPNURL,
		Lang:        c.cfg.Lang,
		RequestType: p.RequestType,
		AutoCapture: true,
		ExtraData:   p.ExtraData,
		Signature:   Sign(CreateFields(c.cfg.AccessKey, p), c.cfg.SecretKey),
	}

	raw, err := c.post(ctx, createPath, body)
	if err != nil {
		return nil, raw, err
	}

	var res CreateResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, raw, fmt.Errorf("%w: decode create response: %v", domain.ErrUpstream, err)
	}
	if res.ResultCode != domain.ResultCodeSuccess {
		return &res, raw, fmt.Errorf("%w: create rejected: resultCode=%d message=%q", domain.ErrUpstream, res.ResultCode, res.Message)
	}
	if res.PayURL == "" {
		return &res, raw, fmt.Errorf("%w: create response has no payUrl", domain.ErrUpstream)
	}
	return &res, raw, nil
}

func (c *client) Query(ctx context.Context, orderID, requestID string) (*QueryResponse, []byte, error) {
	body := queryRequest{
		PartnerCode: c.cfg.PartnerCode,
		RequestID:   requestID,
		OrderID:     orderID,
		Lang:        c.cfg.Lang,
		Signature:   Sign(QueryFields(c.cfg.AccessKey, c.cfg.PartnerCode, orderID, requestID), c.cfg.SecretKey),
	}

	raw, err := c.post(ctx, queryPath, body)
	if err != nil {
		return nil, raw, err
	}

	var res QueryResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, raw, fmt.Errorf("%w: decode query response: %v", domain.ErrUpstream, err)
	}
	return &res, raw, nil
}

func (c *client) post(ctx context.Context, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return raw, fmt.Errorf("%w: %s returned HTTP %d", domain.ErrUpstream, path, resp.StatusCode)
	}
	return raw, nil
}
