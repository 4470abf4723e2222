package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sahilchouksey/coursemart-api/services/paypal"
	"github.com/sahilchouksey/coursemart-api/utils/auth"
)

// testClock is a manually advanced time source
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentOTP struct {
	email string
	code  string
}

// fakeNotifier records every code it is asked to deliver
type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentOTP
	err  error
}

func (n *fakeNotifier) SendOTP(_ context.Context, email, _, code string, _ time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentOTP{email: email, code: code})
	return n.err
}

func (n *fakeNotifier) lastCode() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return ""
	}
	return n.sent[len(n.sent)-1].code
}

// fakeRevoker is an in-memory token blacklist
type fakeRevoker struct {
	mu      sync.Mutex
	revoked map[string]string
}

func newFakeRevoker() *fakeRevoker {
	return &fakeRevoker{revoked: map[string]string{}}
}

func (r *fakeRevoker) RevokeToken(_ context.Context, jti string, _ uint, _ time.Time, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[jti] = reason
	return nil
}

func (r *fakeRevoker) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.revoked[jti]
	return ok, nil
}

// fakeProvider scripts PayPal responses
type fakeProvider struct {
	mu            sync.Mutex
	nextOrderID   string
	createErr     error
	captureErr    error
	captureStatus string
	created       []paypal.CreateOrderInput
	captures      int
	// onCapture runs before a capture is answered
	onCapture func(orderID string)
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) CreateOrder(_ context.Context, input paypal.CreateOrderInput) (*paypal.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.created = append(p.created, input)
	return &paypal.Order{
		ID:     p.nextOrderID,
		Status: "CREATED",
		Links:  []paypal.Link{{Href: "https://pay.test/approve/" + p.nextOrderID, Rel: "approve"}},
		Raw:    []byte(`{"id":"` + p.nextOrderID + `","status":"CREATED"}`),
	}, nil
}

func (p *fakeProvider) CaptureOrder(_ context.Context, orderID string) (*paypal.Capture, error) {
	if p.onCapture != nil {
		p.onCapture(orderID)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captures++
	if p.captureErr != nil {
		return nil, p.captureErr
	}
	status := p.captureStatus
	if status == "" {
		status = paypal.StatusCompleted
	}
	return &paypal.Capture{OrderID: orderID, Status: status, CaptureID: "CAP-" + orderID}, nil
}

var errProviderDown = errors.New("provider unavailable")

func newTestJWT() *auth.JWTManager {
	return auth.NewJWTManager(auth.JWTConfig{
		Secret:        "test-secret",
		Expiry:        time.Hour,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "coursemart-test",
	})
}
