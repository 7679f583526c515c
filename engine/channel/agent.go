package channel

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/pkg/logger"
)

// Agent delivers one request on its channel. Agents own their transport
// retries; the coordinator never retries an agent.
type Agent interface {
	Name() string
	Channel() Channel
	Execute(ctx context.Context, req *Request) (*Result, error)
}

const (
	defaultAgentRetryCount   = 3
	defaultAgentRetryWait    = 100 * time.Millisecond
	defaultAgentRetryMaxWait = 2 * time.Second
)

// HTTPAgentConfig configures one HTTP delivery agent.
type HTTPAgentConfig struct {
	Name             string        `json:"name"                yaml:"name"                mapstructure:"name"`
	Channel          Channel       `json:"channel"             yaml:"channel"             mapstructure:"channel"`
	BaseURL          string        `json:"base_url"            yaml:"base_url"            mapstructure:"base_url"`
	Token            string        `json:"token"               yaml:"token"               mapstructure:"token"`
	Timeout          time.Duration `json:"timeout"             yaml:"timeout"             mapstructure:"timeout"`
	RetryCount       int           `json:"retry_count"         yaml:"retry_count"         mapstructure:"retry_count"`
	RetryWaitTime    time.Duration `json:"retry_wait_time"     yaml:"retry_wait_time"     mapstructure:"retry_wait_time"`
	RetryMaxWaitTime time.Duration `json:"retry_max_wait_time" yaml:"retry_max_wait_time" mapstructure:"retry_max_wait_time"`
}

// HTTPAgent posts deliveries to an external channel service. Transient
// failures (5xx, 429, transport errors) are retried with exponential
// backoff; 4xx responses are terminal.
type HTTPAgent struct {
	name    string
	channel Channel
	client  *resty.Client
}

type deliveryRequest struct {
	ExecutionID core.ID        `json:"execution_id"`
	WorkspaceID core.ID        `json:"workspace_id"`
	ClientID    core.ID        `json:"client_id"`
	Channel     Channel        `json:"channel"`
	Recipient   Recipient      `json:"recipient"`
	Subject     string         `json:"subject,omitempty"`
	Body        string         `json:"body"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type agentError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *agentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewHTTPAgent builds the resty client for one channel service.
func NewHTTPAgent(cfg *HTTPAgentConfig) (*HTTPAgent, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("agent base URL is required")
	}
	if !cfg.Channel.Valid() {
		return nil, fmt.Errorf("unknown channel: %q", cfg.Channel)
	}
	name := cfg.Name
	if name == "" {
		name = fmt.Sprintf("%s-agent", cfg.Channel)
	}
	retryCount := cfg.RetryCount
	if retryCount <= 0 {
		retryCount = defaultAgentRetryCount
	}
	retryWait := cfg.RetryWaitTime
	if retryWait <= 0 {
		retryWait = defaultAgentRetryWait
	}
	retryMaxWait := cfg.RetryMaxWaitTime
	if retryMaxWait <= 0 {
		retryMaxWait = defaultAgentRetryMaxWait
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(retryCount).
		SetRetryWaitTime(retryWait).
		SetRetryMaxWaitTime(retryMaxWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= http.StatusInternalServerError ||
				r.StatusCode() == http.StatusTooManyRequests
		})
	if cfg.Token != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.Token)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &HTTPAgent{name: name, channel: cfg.Channel, client: client}, nil
}

func (a *HTTPAgent) Name() string {
	return a.name
}

func (a *HTTPAgent) Channel() Channel {
	return a.channel
}

// Execute posts the delivery. A reachable service that declines the delivery
// yields a Result with OK=false and no transport error; the caller decides
// what a declined delivery means for the workflow.
func (a *HTTPAgent) Execute(ctx context.Context, req *Request) (*Result, error) {
	var result Result
	apiErr := &agentError{}
	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("X-Execution-ID", req.Exec.RequestID.String()).
		SetBody(deliveryRequest{
			ExecutionID: req.Exec.RequestID,
			WorkspaceID: req.Exec.WorkspaceID,
			ClientID:    req.Exec.ClientID,
			Channel:     a.channel,
			Recipient:   req.Recipient,
			Subject:     req.Subject,
			Body:        req.Body,
			Metadata:    req.Metadata,
		}).
		SetResult(&result).
		SetError(apiErr).
		Post("/deliveries")
	if err != nil {
		return nil, fmt.Errorf("delivery request via %s failed: %w", a.name, err)
	}
	if resp.StatusCode() >= 400 {
		logger.FromContext(ctx).Warn("channel agent rejected delivery",
			"agent", a.name,
			"channel", a.channel,
			"status", resp.StatusCode(),
			"execution_id", req.Exec.RequestID,
		)
		if apiErr.Code != "" {
			return nil, fmt.Errorf("delivery via %s rejected: %w", a.name, apiErr)
		}
		return nil, fmt.Errorf(
			"delivery via %s rejected: status %d: %s", a.name, resp.StatusCode(), resp.String(),
		)
	}
	return &result, nil
}
