package router

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sahilchouksey/coursemart-api/config"
	"github.com/sahilchouksey/coursemart-api/database"
	"github.com/sahilchouksey/coursemart-api/handlers"
	auth_handlers "github.com/sahilchouksey/coursemart-api/handlers/auth"
	course_handlers "github.com/sahilchouksey/coursemart-api/handlers/course"
	enrollment_handlers "github.com/sahilchouksey/coursemart-api/handlers/enrollment"
	order_handlers "github.com/sahilchouksey/coursemart-api/handlers/order"
	"github.com/sahilchouksey/coursemart-api/model"
	"github.com/sahilchouksey/coursemart-api/repository"
	"github.com/sahilchouksey/coursemart-api/services"
	"github.com/sahilchouksey/coursemart-api/services/paypal"
	"github.com/sahilchouksey/coursemart-api/utils/auth"
	"github.com/sahilchouksey/coursemart-api/utils/cache"
	"github.com/sahilchouksey/coursemart-api/utils/middleware"
	"github.com/sahilchouksey/coursemart-api/utils/validation"
)

// SetupRoutes builds the services on top of the database and mounts the HTTP API
func SetupRoutes(app *fiber.App, store database.Storage, env *config.EnviornmentVariable) error {
	if env.JWT_SECRET == "" {
		return errors.New("JWT_SECRET environment variable is not set")
	}

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret:        env.JWT_SECRET,
		Expiry:        24 * time.Hour,     // Access token expires in 24 hours
		RefreshExpiry: 7 * 24 * time.Hour, // Refresh token expires in 7 days
		Issuer:        env.JWT_ISSUER,
	})

	db := store.DB()
	repos := repository.NewGormStore(db)
	blacklist := auth.NewBlacklistService(db)

	// Redis backs brute force protection and the course cache; both degrade to disabled
	var (
		bruteForceProtection *middleware.BruteForceProtection
		courseCache          cache.Cache
	)
	redisCache, err := cache.NewRedisCache(env.REDIS_URL)
	if err != nil {
		log.Warnw("failed to connect to redis, brute force protection and course cache disabled", "error", err)
	} else {
		bruteForceProtection = middleware.NewBruteForceProtection(redisCache)
		courseCache = redisCache
	}

	emailService := services.NewEmailService(services.EmailConfig{
		Host:     env.SMTP_HOST,
		Port:     env.SMTP_PORT,
		Username: env.SMTP_USERNAME,
		Password: env.SMTP_PASSWORD,
		From:     env.SMTP_FROM,
		LogCodes: !env.IsProduction(),
	})

	paymentProvider := paypal.NewClient(paypal.Config{
		ClientID:     env.PAYPAL_CLIENT_ID,
		ClientSecret: env.PAYPAL_CLIENT_SECRET,
		BaseURL:      env.PAYPAL_BASE_URL,
		Timeout:      env.PAYMENT_PROVIDER_TIMEOUT,
	})
	if env.PAYPAL_CLIENT_ID == "" {
		log.Warn("PAYPAL_CLIENT_ID is not set, paid checkout will fail")
	}

	accountService := services.NewAccountService(repos, auth.NewBcryptHasher(0), emailService, jwtManager, blacklist, services.AccountConfig{
		OTPTTL:         env.OTP_TTL,
		ResendCooldown: env.OTP_RESEND_COOLDOWN,
		MaxAttempts:    env.OTP_MAX_ATTEMPTS,
	})
	courseService := services.NewCourseService(repos, courseCache, env.COURSE_CACHE_TTL)
	settlementService := services.NewSettlementService(repos, paymentProvider, services.SettlementConfig{
		Currency:        env.PAYMENT_CURRENCY,
		ReturnURL:       env.PAYMENT_RETURN_URL,
		CancelURL:       env.PAYMENT_CANCEL_URL,
		ProviderTimeout: env.PAYMENT_PROVIDER_TIMEOUT,
	})

	validator := validation.NewValidator(auth.DefaultPasswordPolicy)
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, blacklist, repos.Users())

	authHandler := auth_handlers.NewAuthHandler(accountService, bruteForceProtection, validator)
	courseHandler := course_handlers.NewCourseHandler(courseService, settlementService, validator)
	orderHandler := order_handlers.NewOrderHandler(settlementService, validator)
	enrollmentHandler := enrollment_handlers.NewEnrollmentHandler(settlementService)

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    env.ALLOWED_ORIGINS,
		RateLimitRequests: 100,             // 100 requests
		RateLimitWindow:   1 * time.Minute, // per minute
		StackTraces:       !env.IsProduction(),
	})

	// Health check endpoint (public)
	app.Get("/ping", handlers.HandleCheckHealth(store))

	api := app.Group("/api/v1")

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/verify-otp", authHandler.VerifyOTP)
	authGroup.Post("/resend-otp", authHandler.ResendOTP)

	// Login with brute force protection
	if bruteForceProtection != nil {
		authGroup.Post("/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.Login)
	} else {
		authGroup.Post("/login", authHandler.Login)
	}

	authGroup.Post("/refresh", authHandler.RefreshToken)

	// Protected auth routes
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)
	authGroup.Post("/logout-all", authMiddleware.Required(), authHandler.LogoutAll)
	authGroup.Get("/me", authMiddleware.Required(), authHandler.Me)

	// Courses routes
	courses := api.Group("/courses")
	courses.Get("/", courseHandler.ListCourses)                                                                                                 // Public: published catalogue
	courses.Get("/:id", authMiddleware.Optional(), courseHandler.GetCourse)                                                                     // Public, owners also see drafts
	courses.Post("/", authMiddleware.Required(), authMiddleware.RequireRole(model.RoleInstructor, model.RoleAdmin), courseHandler.CreateCourse) // Instructor or admin
	courses.Put("/:id", authMiddleware.Required(), courseHandler.UpdateCourse)                                                                  // Owner or admin
	courses.Delete("/:id", authMiddleware.Required(), courseHandler.DeleteCourse)                                                               // Owner or admin
	courses.Post("/:id/enroll", authMiddleware.Required(), courseHandler.EnrollFree)                                                            // Free courses only
	courses.Get("/:id/enrollments", authMiddleware.Required(), courseHandler.CourseEnrollments)                                                 // Owner or admin
	courses.Get("/:id/payments", authMiddleware.Required(), courseHandler.CoursePayments)                                                       // Owner or admin

	// Enrollments routes
	api.Get("/enrollments/me", authMiddleware.Required(), enrollmentHandler.ListMyEnrollments)

	// Checkout routes
	orders := api.Group("/orders", authMiddleware.Required())
	orders.Post("/", orderHandler.CreateOrder)
	orders.Post("/:orderId/capture", orderHandler.CaptureOrder)

	api.Get("/payments/me", authMiddleware.Required(), orderHandler.ListMyPayments)

	log.Infow("routes registered", "origins", strings.Split(env.ALLOWED_ORIGINS, ","))
	return nil
}
