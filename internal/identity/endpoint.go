package identity

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	tberrors "github.com/systmms/tokenbroker/internal/errors"
	"github.com/systmms/tokenbroker/internal/logging"
	"github.com/systmms/tokenbroker/pkg/token"
)

// EndpointClient calls identity provider endpoints directly.
type EndpointClient struct {
	http         *resty.Client
	logger       *logging.Logger
	pollInterval time.Duration
	maxPolls     int
	now          func() time.Time
}

// EndpointOption configures an EndpointClient.
type EndpointOption func(*EndpointClient)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) EndpointOption {
	return func(c *EndpointClient) {
		c.http = newResty(hc, c.logger)
	}
}

// WithPollInterval sets the bulk token poll interval.
func WithPollInterval(d time.Duration) EndpointOption {
	return func(c *EndpointClient) {
		c.pollInterval = d
	}
}

// WithMaxPolls bounds the number of bulk token polls.
func WithMaxPolls(n int) EndpointOption {
	return func(c *EndpointClient) {
		c.maxPolls = n
	}
}

// NewEndpointClient creates a client with retries on transient failures.
func NewEndpointClient(logger *logging.Logger, opts ...EndpointOption) *EndpointClient {
	if logger == nil {
		logger = logging.Nop()
	}
	c := &EndpointClient{
		logger:       logger,
		pollInterval: 2 * time.Second,
		maxPolls:     150,
		now:          time.Now,
	}
	c.http = newResty(nil, logger)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newResty(hc *http.Client, logger *logging.Logger) *resty.Client {
	var rc *resty.Client
	if hc != nil {
		rc = resty.NewWithClient(hc)
	} else {
		rc = resty.New().SetTimeout(30 * time.Second)
	}
	return rc.
		SetLogger(restyLogger{logger}).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return tberrors.IsRetryable(err)
			}
			return resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= http.StatusInternalServerError
		})
}

// restyLogger routes resty diagnostics through the broker logger.
type restyLogger struct {
	l *logging.Logger
}

func (r restyLogger) Errorf(format string, v ...interface{}) { r.l.Error(format, v...) }
func (r restyLogger) Warnf(format string, v ...interface{})  { r.l.Warn(format, v...) }
func (r restyLogger) Debugf(format string, v ...interface{}) { r.l.Debug(format, v...) }

// RefreshRequest is a refresh token grant.
type RefreshRequest struct {
	Authority    string
	ClientID     string
	RefreshToken string
	Scopes       []string
	Claims       string
}

// TokenResponse is the token endpoint response.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	ClientInfo   string `json:"client_info"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
	FamilyID     string `json:"foci"`

	// ExpiresOn is computed from ExpiresIn when the response arrives.
	ExpiresOn time.Time `json:"-"`
}

type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCodes       []int  `json:"error_codes"`
}

// ExchangeRefreshToken redeems a refresh token at the authority's v2 token
// endpoint.
func (c *EndpointClient) ExchangeRefreshToken(ctx context.Context, req RefreshRequest) (TokenResponse, error) {
	if err := ctx.Err(); err != nil {
		return TokenResponse{}, err
	}

	scopes := append([]string{}, req.Scopes...)
	scopes = append(scopes, "openid", "profile", "offline_access")

	form := map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     req.ClientID,
		"refresh_token": req.RefreshToken,
		"scope":         strings.Join(scopes, " "),
		"client_info":   "1",
	}
	if req.Claims != "" {
		form["claims"] = req.Claims
	}

	var out TokenResponse
	var oerr oauthError
	endpoint := strings.TrimRight(req.Authority, "/") + "/oauth2/v2.0/token"
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&out).
		SetError(&oerr).
		ForceContentType("application/json").
		Post(endpoint)
	if err != nil {
		return TokenResponse{}, tberrors.Network(err, "token endpoint %s unreachable", endpoint)
	}
	if resp.IsError() {
		return TokenResponse{}, tberrors.IdentityProviderError("refresh token exchange",
			fmt.Errorf("%s: %s (HTTP %d)", oerr.Error, oerr.ErrorDescription, resp.StatusCode()))
	}
	if out.AccessToken == "" {
		return TokenResponse{}, tberrors.Authentication(nil, "token endpoint returned no access token")
	}
	if out.TokenType == "" {
		out.TokenType = token.DefaultTokenType
	}
	out.ExpiresOn = c.now().Add(time.Duration(out.ExpiresIn) * time.Second)
	return out, nil
}
