package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithAPIKey sends X-API-Key on every request.
func WithAPIKey(key string) Option {
	return func(cl *Client) {
		cl.apiKey = strings.TrimSpace(key)
	}
}

// StatusError is a non-2xx reply. Code is one of the Code* constants when the node sent one.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %s %s: status %d: %s (%s)", e.Method, e.Path, e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("http %s %s: status %d", e.Method, e.Path, e.Status)
}

// HasCode reports whether err is a StatusError carrying code.
func HasCode(err error, code string) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("baseURL must not be empty")
	}
	baseURL = strings.TrimRight(baseURL, "/")

	cl := &Client{
		baseURL: baseURL,
		http: &http.Client{
			// mining requests can legitimately take a while
			Timeout: 2 * time.Minute,
		},
	}
	for _, o := range opts {
		o(cl)
	}
	return cl, nil
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, &out); err != nil {
		return Health{}, err
	}
	return out, nil
}

func (c *Client) Version(ctx context.Context) (VersionInfo, error) {
	var out VersionInfo
	if err := c.do(ctx, http.MethodGet, "/version", nil, &out); err != nil {
		return VersionInfo{}, err
	}
	return out, nil
}

func (c *Client) Status(ctx context.Context) (NodeStatus, error) {
	var out NodeStatus
	if err := c.do(ctx, http.MethodGet, "/status", nil, &out); err != nil {
		return NodeStatus{}, err
	}
	return out, nil
}

func (c *Client) Chain(ctx context.Context) (ChainView, error) {
	var out ChainView
	if err := c.do(ctx, http.MethodGet, "/chain", nil, &out); err != nil {
		return ChainView{}, err
	}
	return out, nil
}

func (c *Client) Valid(ctx context.Context) (Validity, error) {
	var out Validity
	if err := c.do(ctx, http.MethodGet, "/chain/valid", nil, &out); err != nil {
		return Validity{}, err
	}
	return out, nil
}

// Tip returns ok=false when the chain is empty.
func (c *Client) Tip(ctx context.Context) (Block, bool, error) {
	var out Block
	err := c.do(ctx, http.MethodGet, "/chain/tip", nil, &out)
	if HasCode(err, CodeIndexOutOfRange) {
		return Block{}, false, nil
	}
	if err != nil {
		return Block{}, false, err
	}
	return out, true, nil
}

func (c *Client) Block(ctx context.Context, index int) (Block, error) {
	var out Block
	if err := c.do(ctx, http.MethodGet, "/blocks/"+strconv.Itoa(index), nil, &out); err != nil {
		return Block{}, err
	}
	return out, nil
}

func (c *Client) Draft(ctx context.Context, req DraftRequest) (DraftResponse, error) {
	var out DraftResponse
	if err := c.do(ctx, http.MethodPost, "/drafts", req, &out); err != nil {
		return DraftResponse{}, err
	}
	return out, nil
}

func (c *Client) Mine(ctx context.Context, req MineRequest) (MineResponse, error) {
	var out MineResponse
	if err := c.do(ctx, http.MethodPost, "/mine", req, &out); err != nil {
		return MineResponse{}, err
	}
	return out, nil
}

func (c *Client) Append(ctx context.Context, b Block) (AppendResponse, error) {
	var out AppendResponse
	if err := c.do(ctx, http.MethodPost, "/blocks", b, &out); err != nil {
		return AppendResponse{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Method: method, Path: path, Status: resp.StatusCode}
		var er ErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&er); err == nil {
			se.Code = er.Code
			se.Message = er.Error
		}
		return se
	}

	dec := json.NewDecoder(resp.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}
