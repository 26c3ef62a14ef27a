// Package integration is a client of the pipecast HTTP API, used to drive a
// running service end to end.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"

	"github.com/go-sod/pipecast/internal/feature"
	"github.com/go-sod/pipecast/internal/record/model"
)

type prefixRoundTripper struct {
	addr string
	rt   http.RoundTripper
}

func (p *prefixRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	u := r.URL
	if u.Scheme == "" {
		u.Scheme = "http"
	}
	if u.Host == "" {
		u.Host = p.addr
	}

	return p.rt.RoundTrip(r)
}

func NewClient(addr string) *Client {
	return &Client{client: &http.Client{Transport: &prefixRoundTripper{addr: addr, rt: http.DefaultTransport}}}
}

type Client struct {
	client *http.Client
}

// StatusError is returned for any non-2xx answer.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

type PredictItem struct {
	Features feature.Vector `json:"features"`
	Extra    interface{}    `json:"extra,omitempty"`
}

type Prediction struct {
	WillFail     bool        `json:"willFail"`
	Confidence   float64     `json:"confidence"`
	DecisionPath []string    `json:"decisionPath"`
	Extra        interface{} `json:"extra,omitempty"`
}

type ModelSummary struct {
	ID                string                   `json:"id"`
	TrainingAccuracy  float64                  `json:"trainingAccuracy"`
	FeatureImportance map[feature.Name]float64 `json:"featureImportance"`
	NodeCount         int                      `json:"nodeCount"`
	Depth             int                      `json:"depth"`
}

// Collect posts one labelled batch and returns how many records were taken.
func (c *Client) Collect(ctx context.Context, batch model.Batch) (int, error) {
	var resp struct {
		Collected int `json:"collected"`
	}
	if err := c.do(ctx, http.MethodPost, "/collect", &batch, &resp); err != nil {
		return 0, err
	}
	return resp.Collected, nil
}

func (c *Client) Predict(ctx context.Context, pipelineID string, items ...PredictItem) ([]Prediction, error) {
	req := struct {
		PipelineID string        `json:"pipeline"`
		Data       []PredictItem `json:"data"`
	}{PipelineID: pipelineID, Data: items}
	var resp struct {
		Data []Prediction `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/predict", &req, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) Model(ctx context.Context) (*ModelSummary, error) {
	var m ModelSummary
	if err := c.do(ctx, http.MethodGet, "/model", nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) Retrain(ctx context.Context) (*ModelSummary, error) {
	var m ModelSummary
	if err := c.do(ctx, http.MethodPost, "/model/retrain", nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("unable marshal %s request: %w", path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("create new request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("error with sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		data, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = string(data)
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		_, _ = io.Copy(ioutil.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
