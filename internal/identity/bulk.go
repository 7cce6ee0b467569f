package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	tberrors "github.com/systmms/tokenbroker/internal/errors"
	"github.com/systmms/tokenbroker/pkg/token"
)

// Bulk enrollment token flow constants.
const (
	BulkTokenClientID = "b90d5b8f-5503-4153-b545-b31cecfaece2"
	BulkTokenScope    = "urn:ms-drs:enterpriseregistration.windows.net/.default"
)

// Bulk flow states reported by the poll endpoint.
const (
	bulkStateStarted    = "Started"
	bulkStateInProgress = "InProgress"
	bulkStateSuccess    = "CompleteSuccess"
)

// BulkRequest begins a bulk enrollment flow.
type BulkRequest struct {
	// AuthorityHost is scheme://host of the authority.
	AuthorityHost string
	AccessToken   string
	PackageID     string
	Name          string
	ExpiresOn     time.Time
}

type bulkBeginBody struct {
	PackageID string `json:"pid"`
	Name      string `json:"name"`
	Expires   string `json:"exp"`
}

type bulkState struct {
	FlowToken  string `json:"flowToken"`
	State      string `json:"state"`
	ResultData string `json:"resultData"`
}

type bulkResult struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int64  `json:"refresh_token_expires_in"`
}

// BulkToken runs the bulk enrollment flow: begin, then poll until the flow
// leaves the in-progress states, the poll budget is spent or ctx is done.
func (c *EndpointClient) BulkToken(ctx context.Context, req BulkRequest) (token.BulkRefreshToken, error) {
	base := strings.TrimRight(req.AuthorityHost, "/") + "/webapp/bulkaadjtoken"
	auth := token.DefaultTokenType + " " + req.AccessToken

	var state bulkState
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", auth).
		SetBody(bulkBeginBody{
			PackageID: req.PackageID,
			Name:      req.Name,
			Expires:   req.ExpiresOn.UTC().Format("2006-01-02 15:04:05"),
		}).
		SetResult(&state).
		ForceContentType("application/json").
		Post(base + "/begin")
	if err != nil {
		return token.BulkRefreshToken{}, tberrors.Network(err, "bulk token endpoint unreachable")
	}
	if resp.IsError() {
		return token.BulkRefreshToken{}, tberrors.Authentication(nil, "bulk token flow rejected (HTTP %d): %s", resp.StatusCode(), resp.String())
	}
	if state.State == "" {
		return token.BulkRefreshToken{}, tberrors.Authentication(nil, "bulk token flow returned no state")
	}
	c.logger.Debug("Bulk token flow %s started for package %s", state.State, req.PackageID)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for polls := 0; inProgress(state.State); polls++ {
		if state.FlowToken == "" {
			return token.BulkRefreshToken{}, tberrors.Authentication(nil, "bulk token flow returned no flow token")
		}
		if polls >= c.maxPolls {
			return token.BulkRefreshToken{}, tberrors.Authentication(nil, "bulk token flow still %s after %d polls", state.State, polls)
		}
		select {
		case <-ctx.Done():
			return token.BulkRefreshToken{}, ctx.Err()
		case <-ticker.C:
		}

		next := bulkState{}
		resp, err := c.http.R().
			SetContext(ctx).
			SetHeader("Authorization", auth).
			SetQueryParam("flowToken", state.FlowToken).
			SetResult(&next).
			ForceContentType("application/json").
			Get(base + "/poll")
		if err != nil {
			return token.BulkRefreshToken{}, tberrors.Network(err, "bulk token poll failed")
		}
		if resp.IsError() {
			return token.BulkRefreshToken{}, tberrors.Authentication(nil, "bulk token poll rejected (HTTP %d)", resp.StatusCode())
		}
		if next.State == "" {
			return token.BulkRefreshToken{}, tberrors.Authentication(nil, "bulk token poll returned no state")
		}
		if next.FlowToken == "" {
			next.FlowToken = state.FlowToken
		}
		state = next
	}

	var result bulkResult
	if state.ResultData != "" {
		if err := json.Unmarshal([]byte(state.ResultData), &result); err != nil {
			return token.BulkRefreshToken{}, fmt.Errorf("decode bulk token result: %w", err)
		}
	}
	out := token.BulkRefreshToken{
		Error:            result.Error,
		ErrorDescription: result.ErrorDescription,
		RefreshToken:     result.RefreshToken,
	}
	if result.ExpiresIn > 0 {
		out.ExpiresOn = c.now().Add(time.Duration(result.ExpiresIn) * time.Second)
	} else {
		out.ExpiresOn = req.ExpiresOn
	}
	if state.State != bulkStateSuccess && out.Error == "" {
		out.Error = "flow_failed"
		out.ErrorDescription = fmt.Sprintf("bulk token flow ended in state %s", state.State)
	}
	return out, nil
}

func inProgress(state string) bool {
	return state == bulkStateStarted || state == bulkStateInProgress
}
