package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// SandboxBaseURL is the PayPal sandbox REST endpoint
	SandboxBaseURL = "https://api-m.sandbox.paypal.com"
	// DefaultTimeout is the default HTTP client timeout for API calls
	DefaultTimeout = 30 * time.Second

	// ProviderName is stored on every payment created through this client
	ProviderName = "paypal"

	StatusCompleted = "COMPLETED"

	// IssueOrderAlreadyCaptured is reported when a capture is repeated for a settled order
	IssueOrderAlreadyCaptured = "ORDER_ALREADY_CAPTURED"
)

// Client talks to the PayPal Orders v2 API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config holds configuration for the PayPal client
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	Timeout      time.Duration
}

// NewClient creates a PayPal client. Access tokens are fetched and refreshed
// through the OAuth2 client credentials grant.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = SandboxBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	baseURL := strings.TrimRight(config.BaseURL, "/")

	credentials := clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	// The token source uses this client for its own requests
	base := &http.Client{Timeout: config.Timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	httpClient := credentials.Client(ctx)
	httpClient.Timeout = config.Timeout

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// Name identifies the provider on persisted payments
func (c *Client) Name() string {
	return ProviderName
}

// CreateOrderInput describes a single-item checkout order
type CreateOrderInput struct {
	// RequestID makes a retried create return the same order; generated when empty
	RequestID   string
	Amount      decimal.Decimal
	Currency    string
	Description string
	ReferenceID string
	ReturnURL   string
	CancelURL   string
}

// Order is the subset of the PayPal order resource the API relies on
type Order struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Links  []Link          `json:"links"`
	Raw    json.RawMessage `json:"-"`
}

// Link is a HATEOAS link returned by PayPal
type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

// ApprovalURL returns the link the buyer must visit to approve the order
func (o *Order) ApprovalURL() string {
	for _, l := range o.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return l.Href
		}
	}
	return ""
}

// Capture is the outcome of capturing an approved order
type Capture struct {
	OrderID   string
	Status    string
	CaptureID string
	Raw       json.RawMessage
}

// Completed reports whether the provider confirmed the funds
func (c *Capture) Completed() bool {
	return c.Status == StatusCompleted
}

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	Description string `json:"description,omitempty"`
	Amount      money  `json:"amount"`
}

type applicationContext struct {
	ReturnURL  string `json:"return_url,omitempty"`
	CancelURL  string `json:"cancel_url,omitempty"`
	UserAction string `json:"user_action"`
}

type createOrderRequest struct {
	Intent             string             `json:"intent"`
	PurchaseUnits      []purchaseUnit     `json:"purchase_units"`
	ApplicationContext applicationContext `json:"application_context"`
}

type captureResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// CreateOrder creates a CAPTURE-intent order and returns it with its approval link
func (c *Client) CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error) {
	body := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			ReferenceID: input.ReferenceID,
			Description: input.Description,
			Amount: money{
				CurrencyCode: input.Currency,
				Value:        input.Amount.StringFixed(2),
			},
		}},
		ApplicationContext: applicationContext{
			ReturnURL:  input.ReturnURL,
			CancelURL:  input.CancelURL,
			UserAction: "PAY_NOW",
		},
	}

	requestID := input.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	var order Order
	raw, err := c.doRequest(ctx, http.MethodPost, "/v2/checkout/orders", requestID, body, &order)
	if err != nil {
		return nil, err
	}
	if order.ID == "" {
		return nil, fmt.Errorf("paypal returned an order without id")
	}
	order.Raw = raw
	return &order, nil
}

// CaptureOrder captures the funds of an approved order. The request id is derived
// from the order id, so a retry after a lost response replays the first capture.
// An order PayPal reports as already captured is reconciled from its current state.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*Capture, error) {
	var resp captureResponse
	raw, err := c.doRequest(ctx, http.MethodPost, orderPath(orderID)+"/capture", "capture-"+orderID, struct{}{}, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.HasIssue(IssueOrderAlreadyCaptured) {
			return c.GetOrder(ctx, orderID)
		}
		return nil, err
	}
	return resp.toCapture(raw), nil
}

// GetOrder fetches the current state of an order with any captures it holds
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Capture, error) {
	var resp captureResponse
	raw, err := c.doRequest(ctx, http.MethodGet, orderPath(orderID), "", nil, &resp)
	if err != nil {
		return nil, err
	}
	return resp.toCapture(raw), nil
}

func orderPath(orderID string) string {
	return "/v2/checkout/orders/" + url.PathEscape(orderID)
}

func (r *captureResponse) toCapture(raw json.RawMessage) *Capture {
	capture := &Capture{
		OrderID: r.ID,
		Status:  r.Status,
		Raw:     raw,
	}
	for _, unit := range r.PurchaseUnits {
		for _, cp := range unit.Payments.Captures {
			capture.CaptureID = cp.ID
		}
	}
	return capture
}

// doRequest performs an HTTP request to the PayPal API and returns the raw body
// A non-empty requestID is sent as PayPal-Request-Id.
func (c *Client) doRequest(ctx context.Context, method, endpoint, requestID string, body interface{}, result interface{}) (json.RawMessage, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if requestID != "" {
		req.Header.Set("PayPal-Request-Id", requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr APIError
		if err := json.Unmarshal(respBody, &apiErr); err != nil || apiErr.Name == "" {
			return nil, fmt.Errorf("paypal API error (status %d): %s", resp.StatusCode, string(respBody))
		}
		apiErr.StatusCode = resp.StatusCode
		return nil, &apiErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return respBody, nil
}

// APIError represents a PayPal API error response
type APIError struct {
	Name       string        `json:"name"`
	Message    string        `json:"message"`
	DebugID    string        `json:"debug_id"`
	Details    []ErrorDetail `json:"details"`
	StatusCode int           `json:"-"`
}

// ErrorDetail is a single issue reported by PayPal
type ErrorDetail struct {
	Issue       string `json:"issue"`
	Description string `json:"description"`
}

// HasIssue reports whether PayPal listed the given issue code
func (e *APIError) HasIssue(issue string) bool {
	for _, d := range e.Details {
		if d.Issue == issue {
			return true
		}
	}
	return false
}

// Error implements the error interface
func (e *APIError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("paypal API error: %s: %s (debug_id: %s)", e.Name, e.Details[0].Issue, e.DebugID)
	}
	return fmt.Sprintf("paypal API error: %s: %s (debug_id: %s)", e.Name, e.Message, e.DebugID)
}
