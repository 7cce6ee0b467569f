// Package directory calls the API an environment issues tokens for, using an
// authentication result as the bearer credential.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"

	tberrors "github.com/systmms/tokenbroker/internal/errors"
	"github.com/systmms/tokenbroker/internal/logging"
	"github.com/systmms/tokenbroker/pkg/account"
	"github.com/systmms/tokenbroker/pkg/token"
)

const moduleName = "tokenbroker/directory"

// Version is reported in the User-Agent of directory requests.
var Version = "dev"

// Client sends authenticated requests to an environment's API endpoint.
type Client struct {
	endpoint string
	pipeline runtime.Pipeline
	logger   *logging.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	transport policy.Transporter
	logger    *logging.Logger
	retries   int32
}

// WithTransport replaces the HTTP transport.
func WithTransport(t policy.Transporter) Option {
	return func(o *clientOptions) { o.transport = t }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// WithRetries sets the retry budget. A negative value disables retries.
func WithRetries(n int32) Option {
	return func(o *clientOptions) { o.retries = n }
}

// New builds a client for env's API endpoint that authorizes every request
// with result's access token.
func New(env account.Environment, result token.Result, opts ...Option) (*Client, error) {
	if env.APIEndpoint == "" {
		return nil, tberrors.Configuration(nil, "environment %s has no API endpoint", env.Name)
	}
	return NewWithCredential(env.APIEndpoint, env.DefaultScopes(), result.Credential(), opts...)
}

// NewWithCredential builds a client over an arbitrary credential.
func NewWithCredential(endpoint string, scopes []string, cred azcore.TokenCredential, opts ...Option) (*Client, error) {
	if cred == nil {
		return nil, tberrors.Configuration(nil, "directory client requires a credential")
	}
	o := clientOptions{logger: logging.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Nop()
	}

	clientOpts := &policy.ClientOptions{Transport: o.transport}
	clientOpts.Retry.MaxRetries = o.retries
	bearer := runtime.NewBearerTokenPolicy(cred, scopes, nil)
	pl := runtime.NewPipeline(moduleName, Version, runtime.PipelineOptions{
		PerRetry: []policy.Policy{bearer},
	}, clientOpts)

	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		pipeline: pl,
		logger:   o.logger,
	}, nil
}

// Get fetches path relative to the API endpoint and returns the raw JSON
// body.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	url := c.endpoint + "/" + strings.TrimLeft(path, "/")
	req, err := runtime.NewRequest(ctx, http.MethodGet, url)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Raw().Header.Set("Accept", "application/json")

	c.logger.Debug("GET %s", url)
	resp, err := c.pipeline.Do(req)
	if err != nil {
		return nil, classify(err, url)
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return nil, classify(runtime.NewResponseError(resp), url)
	}

	body, err := runtime.Payload(resp)
	if err != nil {
		return nil, tberrors.Network(err, "read response from %s", url)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%s returned a non-JSON body", url)
	}
	return json.RawMessage(body), nil
}

// Profile is the signed-in principal as the directory reports it.
type Profile struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	UserPrincipalName string `json:"userPrincipalName"`
	Mail              string `json:"mail"`
}

// Me returns the profile of the principal the token belongs to.
func (c *Client) Me(ctx context.Context) (Profile, error) {
	raw, err := c.Get(ctx, "v1.0/me")
	if err != nil {
		return Profile{}, err
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return p, nil
}

func classify(err error, url string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusUnauthorized:
			return tberrors.TokenExpired(err, "%s rejected the access token", url)
		case http.StatusForbidden:
			return tberrors.Authentication(err, "%s denied access", url)
		}
		return fmt.Errorf("GET %s: %w", url, err)
	}
	if tberrors.CategoryOf(err) != tberrors.CategoryUnknown {
		return err
	}
	return tberrors.Network(err, "%s unreachable", url)
}
