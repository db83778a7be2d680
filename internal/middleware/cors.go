package middleware

import (
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORS restricts cross-origin access to the send API. The webhook endpoint
// is called server-to-server and never needs CORS, but the CRM frontend
// calls /api/messages directly in development.
func CORS() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:     allowedOrigins(),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		AllowCredentials: false,
		ExposeHeaders:    "Content-Length,X-Request-ID",
		MaxAge:           3600,
	})
}

func allowedOrigins() string {
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		return v
	}
	return "http://localhost:3000,http://localhost:8080"
}
