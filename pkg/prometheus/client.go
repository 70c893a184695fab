package prometheus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/api"
	"github.com/prometheus/common/model"

	"github.com/meiking/cpu-anomaly-monitor/pkg/common"
	"github.com/meiking/cpu-anomaly-monitor/pkg/config"
)

// CPUUtilizationQuery computes busy CPU percentage per instance as
// 100 minus the idle-mode rate.
const CPUUtilizationQuery = `100 - (avg by(instance)(irate(node_cpu_seconds_total{mode="idle"}[5m])) * 100)`

// Client defines the interface for fetching CPU readings
type Client interface {
	Address() string
	FetchCPU(ctx context.Context) ([]common.Reading, error)
}

// promClient implements the Client interface
type promClient struct {
	address string
	client  api.Client
	timeout time.Duration
	now     func() time.Time
}

// queryResponse is the Prometheus API envelope for an instant query
type queryResponse struct {
	Status    string     `json:"status"`
	Data      *queryData `json:"data"`
	ErrorType string     `json:"errorType"`
	Error     string     `json:"error"`
	Warnings  []string   `json:"warnings"`
}

type queryData struct {
	ResultType model.ValueType `json:"resultType"`
	Result     json.RawMessage `json:"result"`
}

// vectorItem keeps value raw so a missing or short pair can be rejected;
// model.Sample would decode both as a zero value.
type vectorItem struct {
	Metric model.Metric      `json:"metric"`
	Value  []json.RawMessage `json:"value"`
}

// NewClient creates a new Prometheus client
func NewClient(cfg config.PrometheusConfig) (Client, error) {
	if cfg.Address == "" {
		return nil, errors.New("prometheus address is required")
	}

	client, err := api.NewClient(api.Config{
		Address:      cfg.Address,
		RoundTripper: newAuthTransport(cfg.Username, cfg.Password, cfg.BearerToken, http.DefaultTransport),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &promClient{
		address: cfg.Address,
		client:  client,
		timeout: cfg.Timeout,
		now:     time.Now,
	}, nil
}

// Address returns the backend address
func (c *promClient) Address() string {
	return c.address
}

// FetchCPU runs CPUUtilizationQuery once with a GET and returns one reading
// per result item, in backend order. It does not retry.
func (c *promClient) FetchCPU(ctx context.Context) ([]common.Reading, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u := c.client.URL("/api/v1/query", nil)
	q := u.Query()
	q.Set("query", CPUUtilizationQuery)
	q.Set("time", strconv.FormatFloat(float64(c.now().UnixMilli())/1e3, 'f', -1, 64))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &common.FetchError{Op: "build request", Err: err}
	}

	resp, body, err := c.client.Do(ctx, req)
	if err != nil {
		return nil, &common.FetchError{Op: "query " + c.address, Err: err}
	}
	if resp.StatusCode/100 != 2 {
		return nil, &common.FetchError{
			Op:  "query " + c.address,
			Err: fmt.Errorf("unexpected HTTP status %d", resp.StatusCode),
		}
	}

	readings, err := decodeQueryResponse(c.address, body)
	if err != nil {
		return nil, &common.FetchError{Op: "decode " + c.address, Err: err}
	}
	return readings, nil
}

// decodeQueryResponse validates the response shape and converts the vector
// result to readings
func decodeQueryResponse(address string, body []byte) ([]common.Reading, error) {
	var qr queryResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return nil, err
	}

	// Log warnings but don't treat them as errors
	for _, w := range qr.Warnings {
		slog.Warn("prometheus: query warning", "address", address, "warning", w)
	}

	if qr.Status == "error" {
		return nil, fmt.Errorf("backend error %s: %s", qr.ErrorType, qr.Error)
	}
	if qr.Data == nil {
		return nil, errors.New("missing data")
	}
	if len(qr.Data.Result) == 0 || string(qr.Data.Result) == "null" {
		return nil, errors.New("missing data.result")
	}
	if qr.Data.ResultType != model.ValVector {
		return nil, fmt.Errorf("unsupported result type: %q", qr.Data.ResultType)
	}

	var items []vectorItem
	if err := json.Unmarshal(qr.Data.Result, &items); err != nil {
		return nil, fmt.Errorf("data.result: %w", err)
	}

	readings := make([]common.Reading, 0, len(items))
	for i, item := range items {
		instance, ok := item.Metric[model.InstanceLabel]
		if !ok || instance == "" {
			return nil, fmt.Errorf("result %d: missing %q label", i, model.InstanceLabel)
		}

		if len(item.Value) != 2 {
			return nil, fmt.Errorf("result %d (%s): value must be [timestamp, value], got %d elements", i, instance, len(item.Value))
		}
		var raw string
		if err := json.Unmarshal(item.Value[1], &raw); err != nil {
			return nil, fmt.Errorf("result %d (%s): value[1] is not a string: %w", i, instance, err)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("result %d (%s): non-numeric value %q", i, instance, raw)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("result %d (%s): non-numeric value %v", i, instance, raw)
		}

		readings = append(readings, common.Reading{
			Instance: string(instance),
			Value:    v,
		})
	}
	return readings, nil
}
