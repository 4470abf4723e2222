package order

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursemart-api/model"
	"github.com/sahilchouksey/coursemart-api/repository"
	"github.com/sahilchouksey/coursemart-api/services"
	"github.com/sahilchouksey/coursemart-api/services/paypal"
	"github.com/sahilchouksey/coursemart-api/utils/auth"
	"github.com/sahilchouksey/coursemart-api/utils/middleware"
	"github.com/sahilchouksey/coursemart-api/utils/response"
	"github.com/sahilchouksey/coursemart-api/utils/validation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noRevocations struct{}

func (noRevocations) IsTokenRevoked(context.Context, string) (bool, error) { return false, nil }

// paypalStub answers the sandbox endpoints; captureStatus controls the capture outcome
type paypalStub struct {
	orders        int32
	captureStatus atomic.Value
}

func (s *paypalStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&s.orders, 1)
		id := "ORDER-" + string(rune('A'+n-1))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"` + id + `","status":"CREATED","links":[{"href":"https://paypal.test/approve/` + id + `","rel":"approve","method":"GET"}]}`))
	})
	mux.HandleFunc("/v2/checkout/orders/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v2/checkout/orders/"), "/capture")
		status, _ := s.captureStatus.Load().(string)
		if status == "" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","message":"The requested action could not be performed","details":[{"issue":"INSTRUMENT_DECLINED"}]}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"` + id + `","status":"` + status + `","purchase_units":[{"payments":{"captures":[{"id":"CAP-` + id + `","status":"` + status + `"}]}}]}`))
	})
	return mux
}

type fixture struct {
	app    *fiber.App
	store  *repository.MemoryStore
	stub   *paypalStub
	course *model.Course
	buyer  string
	other  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	stub := &paypalStub{}
	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	store := repository.NewMemoryStore()
	jwt := auth.NewJWTManager(auth.JWTConfig{Secret: "s", Expiry: time.Hour, RefreshExpiry: time.Hour, Issuer: "test"})

	users := []*model.User{
		{Email: "instructor@x.com", Role: model.RoleInstructor, Status: model.UserStatusActive},
		{Email: "buyer@x.com", Role: model.RoleStudent, Status: model.UserStatusActive},
		{Email: "other@x.com", Role: model.RoleStudent, Status: model.UserStatusActive},
	}
	for _, u := range users {
		require.NoError(t, store.Users().Create(ctx, u))
	}

	course := &model.Course{InstructorID: users[0].ID, Title: "Go", Price: decimal.RequireFromString("49.99"), Published: true}
	require.NoError(t, store.Courses().Create(ctx, course))

	tokens := make([]string, 3)
	for i, u := range users {
		pair, err := jwt.IssueTokenPair(u)
		require.NoError(t, err)
		tokens[i] = pair.AccessToken
	}

	provider := paypal.NewClient(paypal.Config{ClientID: "id", ClientSecret: "secret", BaseURL: server.URL, Timeout: 5 * time.Second})
	settlement := services.NewSettlementService(store, provider, services.SettlementConfig{Currency: "USD"})
	h := NewOrderHandler(settlement, validation.NewValidator(nil))
	authMiddleware := middleware.NewAuthMiddleware(jwt, noRevocations{}, store.Users())

	app := fiber.New()
	app.Post("/orders", authMiddleware.Required(), h.CreateOrder)
	app.Post("/orders/:orderId/capture", authMiddleware.Required(), h.CaptureOrder)
	app.Get("/payments/me", authMiddleware.Required(), h.ListMyPayments)

	return &fixture{app: app, store: store, stub: stub, course: course, buyer: tokens[1], other: tokens[2]}
}

func (f *fixture) call(t *testing.T, method, path, token string, body interface{}) (int, response.Response) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out response.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestCheckoutFlow(t *testing.T) {
	f := newFixture(t)

	status, body := f.call(t, fiber.MethodPost, "/orders", f.buyer, fiber.Map{"course_id": f.course.ID})
	require.Equal(t, fiber.StatusOK, status)
	payment := body.Data.(map[string]interface{})
	orderID := payment["provider_order_id"].(string)
	assert.Equal(t, "PENDING", payment["status"])
	assert.Equal(t, "https://paypal.test/approve/"+orderID, payment["approval_url"])

	status, _ = f.call(t, fiber.MethodPost, "/orders/"+orderID+"/capture", f.other, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	// Declined by the provider: the order is FAILED but can be retried
	status, body = f.call(t, fiber.MethodPost, "/orders/"+orderID+"/capture", f.buyer, nil)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "Payment capture failed", body.Message)

	f.stub.captureStatus.Store(paypal.StatusCompleted)
	status, body = f.call(t, fiber.MethodPost, "/orders/"+orderID+"/capture", f.buyer, nil)
	require.Equal(t, fiber.StatusOK, status)
	result := body.Data.(map[string]interface{})
	assert.Equal(t, "COMPLETED", result["payment"].(map[string]interface{})["status"])
	assert.Equal(t, "ACTIVE", result["enrollment"].(map[string]interface{})["status"])

	status, _ = f.call(t, fiber.MethodPost, "/orders/"+orderID+"/capture", f.buyer, nil)
	assert.Equal(t, fiber.StatusConflict, status)

	status, _ = f.call(t, fiber.MethodPost, "/orders", f.buyer, fiber.Map{"course_id": f.course.ID})
	assert.Equal(t, fiber.StatusConflict, status, "already enrolled")

	status, body = f.call(t, fiber.MethodGet, "/payments/me", f.buyer, nil)
	require.Equal(t, fiber.StatusOK, status)
	payments := body.Data.([]interface{})
	require.Len(t, payments, 1)
	assert.EqualValues(t, 2, payments[0].(map[string]interface{})["capture_attempts"])
}

func TestCreateOrder_Errors(t *testing.T) {
	f := newFixture(t)

	status, _ := f.call(t, fiber.MethodPost, "/orders", "", fiber.Map{"course_id": f.course.ID})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body := f.call(t, fiber.MethodPost, "/orders", f.buyer, fiber.Map{})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.NotEmpty(t, body.Errors)

	status, _ = f.call(t, fiber.MethodPost, "/orders", f.buyer, fiber.Map{"course_id": 999})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = f.call(t, fiber.MethodPost, "/orders/UNKNOWN/capture", f.buyer, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}
