package paycom

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"ms-paycom/internal/logger"
)

const (
	// DefaultURL is the production Paycom service endpoint.
	DefaultURL = "https://paycom.credomatic.com/PayComBackEndWeb/common/requestPaycomService.go"

	DefaultTimeout = 5 * time.Second

	maxResponseBytes = 64 << 10
)

type ClientConfig struct {
	URL     string
	Timeout time.Duration
}

// Client posts signed requests to the gateway. It never retries: sale and
// refound are not idempotent and the protocol has no dedup key.
type Client struct {
	url        string
	httpClient *http.Client
	log        *logger.Logger
}

func NewClient(cfg ClientConfig, log *logger.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

// URL returns the endpoint the client posts to.
func (c *Client) URL() string { return c.url }

// Post sends params as a form body and decodes the reply.
func (c *Client) Post(ctx context.Context, params *Params) (Response, error) {
	txType := params.Get(FieldType)
	c.log.LogGateway(txType, fmt.Sprintf("POST %s (%d fields)", c.url, params.Len()))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(EncodeRequest(params)))
	if err != nil {
		return nil, &TransportError{URL: c.url, Err: err}
	}
	req.Header.Set("Content-Type", ContentTypeForm)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("GATEWAY", fmt.Sprintf("[%s] request failed after %s: %v", txType, time.Since(start), err))
		return nil, &TransportError{URL: c.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		c.log.Error("GATEWAY", fmt.Sprintf("[%s] gateway returned status %d", txType, resp.StatusCode))
		return nil, &TransportError{URL: c.url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.log.Error("GATEWAY", fmt.Sprintf("[%s] failed to read response: %v", txType, err))
		return nil, &TransportError{URL: c.url, Err: err}
	}

	decoded, err := DecodeResponse(body)
	if err != nil {
		c.log.Error("GATEWAY", fmt.Sprintf("[%s] failed to decode response: %v", txType, err))
		return nil, err
	}

	c.log.LogGateway(txType, fmt.Sprintf("response=%s response_code=%s transactionid=%s (%s)",
		decoded.Get(FieldResponse), decoded.Get(FieldResponseCode), decoded.Get(FieldTransactionID), time.Since(start)))
	return decoded, nil
}
