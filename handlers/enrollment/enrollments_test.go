package enrollment

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursemart-api/model"
	"github.com/sahilchouksey/coursemart-api/repository"
	"github.com/sahilchouksey/coursemart-api/services"
	"github.com/sahilchouksey/coursemart-api/utils/auth"
	"github.com/sahilchouksey/coursemart-api/utils/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noRevocations struct{}

func (noRevocations) IsTokenRevoked(context.Context, string) (bool, error) { return false, nil }

func TestListMyEnrollments(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	jwt := auth.NewJWTManager(auth.JWTConfig{Secret: "s", Expiry: time.Hour, RefreshExpiry: time.Hour, Issuer: "test"})

	student := &model.User{Email: "s@x.com", Role: model.RoleStudent, Status: model.UserStatusActive}
	require.NoError(t, store.Users().Create(ctx, student))
	course := &model.Course{InstructorID: 99, Title: "Go", Published: true}
	require.NoError(t, store.Courses().Create(ctx, course))
	require.NoError(t, store.Enrollments().Create(ctx, &model.Enrollment{UserID: student.ID, CourseID: course.ID, Status: model.EnrollmentStatusActive}))

	pair, err := jwt.IssueTokenPair(student)
	require.NoError(t, err)

	h := NewEnrollmentHandler(services.NewSettlementService(store, nil, services.SettlementConfig{}))
	authMiddleware := middleware.NewAuthMiddleware(jwt, noRevocations{}, store.Users())
	app := fiber.New()
	app.Get("/enrollments/me", authMiddleware.Required(), h.ListMyEnrollments)

	req := httptest.NewRequest(fiber.MethodGet, "/enrollments/me", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(fiber.MethodGet, "/enrollments/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data []struct {
			CourseID uint `json:"course_id"`
			Course   struct {
				Title string `json:"title"`
			} `json:"course"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, course.ID, body.Data[0].CourseID)
	assert.Equal(t, "Go", body.Data[0].Course.Title)
}
