// Package callgateway talks to the outbound voice call provider.
package callgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"presales_backend/platform/apperr"
	"presales_backend/platform/config"
	"presales_backend/platform/logger"
	"presales_backend/platform/phone"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Dialer places and inspects outbound calls. The orchestrator and the
// reconciler depend on this interface; tests substitute fakes.
type Dialer interface {
	// PlaceCall hands a call to the provider and returns its call ID.
	PlaceCall(ctx context.Context, p PlaceCallParams) (string, error)
	// GetCall returns the provider's view of a call.
	GetCall(ctx context.Context, callID string) (CallDetails, error)
}

// PlaceCallParams identifies who to call and which lead the call belongs to.
type PlaceCallParams struct {
	LeadID  uuid.UUID
	Phone   string
	Name    string
	Attempt int
}

// CallDetails is the provider's record of a call.
type CallDetails struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	EndedReason string     `json:"endedReason"`
	AnsweredAt  *time.Time `json:"answeredAt"`
	EndedAt     *time.Time `json:"endedAt"`
}

// Client is the HTTP Dialer implementation. A process-wide rate limiter
// caps how fast calls are handed to the provider.
type Client struct {
	baseURL     string
	apiKey      string
	assistantID string
	callerID    string
	http        *http.Client
	limiter     *rate.Limiter
	log         *logger.Logger
}

// NewClient builds a gateway client from configuration. Returns nil when the
// gateway is not configured; callers treat a nil client as disabled.
func NewClient(cfg config.CallGatewayConfig, log *logger.Logger) *Client {
	if !cfg.IsCallGatewayEnabled() {
		return nil
	}

	rps := cfg.GetCallRatePerSecond()
	if rps <= 0 {
		rps = 2
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.GetCallGatewayURL(), "/"),
		apiKey:      cfg.GetCallGatewayAPIKey(),
		assistantID: cfg.GetCallAssistantID(),
		callerID:    cfg.GetCallerNumber(),
		http:        &http.Client{Timeout: 15 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		log:         log,
	}
}

var _ Dialer = (*Client)(nil)

type placeCallRequest struct {
	AssistantID   string            `json:"assistantId"`
	PhoneNumberID string            `json:"phoneNumberId"`
	Customer      customerPayload   `json:"customer"`
	Metadata      map[string]string `json:"metadata"`
}

type customerPayload struct {
	Number string `json:"number"`
	Name   string `json:"name,omitempty"`
}

// PlaceCall validates and normalizes the destination number, then posts the
// call to the provider. An undiallable number is a permanent failure; the
// caller escalates instead of retrying.
func (c *Client) PlaceCall(ctx context.Context, p PlaceCallParams) (string, error) {
	if c == nil {
		return "", apperr.Unavailable("call gateway not configured")
	}

	if !phone.IsDiallable(p.Phone) {
		return "", apperr.Validation(fmt.Sprintf("phone number %q is not diallable", p.Phone))
	}
	normalized := phone.NormalizeE164(p.Phone)

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	now := time.Now()
	payload := placeCallRequest{
		AssistantID:   c.assistantID,
		PhoneNumberID: c.callerID,
		Customer:      customerPayload{Number: normalized, Name: p.Name},
		Metadata: map[string]string{
			"lead_uuid":    p.LeadID.String(),
			"attempt":      fmt.Sprintf("%d", p.Attempt),
			"initiated_at": now.Format(time.RFC3339),
			"today_iso":    now.Format("2006-01-02"),
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal call payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/call", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnavailable, "call gateway unreachable", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		msg := fmt.Sprintf("call gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			// Provider rejected the request itself. Retrying the same
			// payload cannot succeed.
			return "", apperr.Validation(msg)
		}
		return "", apperr.New(apperr.KindUnavailable, msg)
	}

	var details CallDetails
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return "", fmt.Errorf("decode call response: %w", err)
	}
	if details.ID == "" {
		return "", fmt.Errorf("call gateway returned no call id")
	}

	c.log.CallEvent("call placed", p.LeadID.String(), details.ID)
	return details.ID, nil
}

// GetCall fetches the provider's current record of a call, used by the
// reconciler to resolve stuck leads.
func (c *Client) GetCall(ctx context.Context, callID string) (CallDetails, error) {
	if c == nil {
		return CallDetails{}, apperr.Unavailable("call gateway not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/call/"+callID, nil)
	if err != nil {
		return CallDetails{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return CallDetails{}, apperr.Wrap(apperr.KindUnavailable, "call gateway unreachable", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return CallDetails{}, apperr.NotFound("call not found at gateway")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return CallDetails{}, apperr.New(apperr.KindUnavailable,
			fmt.Sprintf("call gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}

	var details CallDetails
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return CallDetails{}, fmt.Errorf("decode call details: %w", err)
	}
	return details, nil
}
