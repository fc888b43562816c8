// Package client implements ledger.Client over the node's HTTP/JSON API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/fraudledger/migrate/ledger"
	"github.com/fraudledger/migrate/log"
	"github.com/fraudledger/migrate/metrics"
)

const (
	moduleName = "ledger_client"

	// RequestIDHeader carries the per-request correlation id.
	RequestIDHeader = "X-Request-Id"

	defaultRequestTimeout  = 10 * time.Second
	defaultPollInterval    = 200 * time.Millisecond
	defaultMaxPollInterval = 2 * time.Second
)

// TransactionStatus is the lifecycle state of a submitted transaction.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "Pending"
	StatusCommitted TransactionStatus = "Committed"
	StatusRejected  TransactionStatus = "Rejected"
)

// StatusResponse is the body returned by GET /transaction/{hash}.
type StatusResponse struct {
	Hash   ledger.Hash       `json:"hash"`
	Status TransactionStatus `json:"status"`
	Reason string            `json:"reason,omitempty"`
}

// Options tune the client. Zero values select defaults.
type Options struct {
	// RequestTimeout bounds a single HTTP round-trip.
	RequestTimeout time.Duration
	// PollInterval is the first wait between transaction status polls.
	PollInterval time.Duration
	// MaxPollInterval caps the doubling poll interval.
	MaxPollInterval time.Duration
	// HTTPClient overrides the HTTP client; RequestTimeout is ignored when set.
	HTTPClient *http.Client
}

// Client talks to a single ledger node.
type Client struct {
	endpoint        *url.URL
	httpClient      *http.Client
	pollInterval    time.Duration
	maxPollInterval time.Duration
	logger          *log.Logger
	metrics         metrics.LedgerMetrics
}

var _ ledger.Client = (*Client)(nil)

// New returns a client for the node at endpoint.
func New(endpoint string, opts Options, logger *log.Logger) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ledger endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("ledger endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.MaxPollInterval == 0 {
		opts.MaxPollInterval = defaultMaxPollInterval
	}
	if opts.MaxPollInterval < opts.PollInterval {
		opts.MaxPollInterval = opts.PollInterval
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.RequestTimeout}
	}
	return &Client{
		endpoint:        u,
		httpClient:      httpClient,
		pollInterval:    opts.PollInterval,
		maxPollInterval: opts.MaxPollInterval,
		logger:          logger.WithModule(moduleName),
		metrics:         metrics.NewDefaultLedgerMetrics(metrics.DefaultNamespace),
	}, nil
}

func (c *Client) url(elem ...string) string {
	u := *c.endpoint
	u.Path = path.Join(append([]string{u.Path}, elem...)...)
	return u.String()
}

// callAPI performs one round-trip. A nil body means no request body; a
// 404 answer is reported through found=false rather than as an error.
func (c *Client) callAPI(ctx context.Context, op string, method string, target string, body interface{}) (resp []byte, found bool, err error) {
	timer := c.metrics.RequestLatencies(op)
	defer timer.ObserveDuration()

	requestID := uuid.NewString()
	logger := c.logger.With("operation", op, "request_id", requestID)

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, false, fmt.Errorf("%s: encoding request: %w", op, err)
		}
		reqBody = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger.Debug("ledger API call", "method", method, "url", target)
	res, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.Requests(op, "transport_error").Inc()
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, false, &ledger.RemoteError{Op: op, Message: err.Error()}
	}
	defer res.Body.Close()
	resp, err = io.ReadAll(res.Body)
	if err != nil {
		c.metrics.Requests(op, "transport_error").Inc()
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, false, &ledger.RemoteError{Op: op, Status: res.StatusCode, Message: fmt.Sprintf("failed to read response body: %s", err)}
	}
	c.metrics.Requests(op, strconv.Itoa(res.StatusCode)).Inc()
	logger.Debug("ledger API call response", "status", res.Status, "response_bytes", len(resp))

	switch {
	case res.StatusCode == http.StatusNotFound:
		return nil, false, nil
	case res.StatusCode < 200 || res.StatusCode > 299:
		return nil, false, &ledger.RemoteError{Op: op, Status: res.StatusCode, Message: string(bytes.TrimSpace(resp))}
	}
	return resp, true, nil
}

// SendQuery implements ledger.Client.
func (c *Client) SendQuery(ctx context.Context, query *ledger.SignedQuery, result interface{}) error {
	op := "query " + query.Payload.Query.Kind()
	body, found, err := c.callAPI(ctx, op, http.MethodPost, c.url("query"), query)
	if err != nil {
		return err
	}
	if !found {
		return &ledger.RemoteError{Op: op, Status: http.StatusNotFound, Message: "not found"}
	}
	if err := json.Unmarshal(body, result); err != nil {
		return &ledger.RemoteError{Op: op, Status: http.StatusOK, Message: fmt.Sprintf("failed to parse result: %s", err)}
	}
	return nil
}

// SendTransaction implements ledger.Client.
func (c *Client) SendTransaction(ctx context.Context, tx *ledger.SignedTransaction) (ledger.Pending, error) {
	hash, err := tx.Hash()
	if err != nil {
		return nil, fmt.Errorf("hashing transaction: %w", err)
	}
	const op = "submit transaction"
	_, found, err := c.callAPI(ctx, op, http.MethodPost, c.url("transaction"), tx)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &ledger.RemoteError{Op: op, Status: http.StatusNotFound, Message: "transaction endpoint not found"}
	}
	c.logger.Info("transaction submitted", "hash", hash, "account", tx.Payload.Account, "instructions", len(tx.Payload.Instructions))
	return &pending{client: c, hash: hash}, nil
}

// Status returns the node's view of a submitted transaction. A transaction
// the node does not know yet is reported as pending.
func (c *Client) Status(ctx context.Context, hash ledger.Hash) (*StatusResponse, error) {
	const op = "transaction status"
	body, found, err := c.callAPI(ctx, op, http.MethodGet, c.url("transaction", hash.Hex()), nil)
	if err != nil {
		return nil, err
	}
	if !found {
		return &StatusResponse{Hash: hash, Status: StatusPending}, nil
	}
	var status StatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, &ledger.RemoteError{Op: op, Status: http.StatusOK, Message: fmt.Sprintf("failed to parse status: %s", err)}
	}
	return &status, nil
}

type pending struct {
	client *Client
	hash   ledger.Hash
}

func (p *pending) Hash() ledger.Hash {
	return p.hash
}

// Await polls the transaction status until it leaves Pending.
func (p *pending) Await(ctx context.Context) error {
	b, err := newBackoff(p.client.pollInterval, p.client.maxPollInterval)
	if err != nil {
		return err
	}
	for {
		status, err := p.client.Status(ctx, p.hash)
		if err != nil {
			return err
		}
		switch status.Status {
		case StatusCommitted:
			p.client.logger.Info("transaction committed", "hash", p.hash)
			return nil
		case StatusRejected:
			return &ledger.RemoteError{Op: "transaction " + p.hash.Hex(), Message: "rejected: " + status.Reason}
		case StatusPending, "":
		default:
			return &ledger.RemoteError{Op: "transaction " + p.hash.Hex(), Message: fmt.Sprintf("unknown status %q", status.Status)}
		}
		p.client.logger.Debug("transaction pending", "hash", p.hash, "next_poll", b.Timeout())
		if err := b.Wait(ctx); err != nil {
			return err
		}
	}
}
