package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// LoggerMiddleware writes one access log line per request.
func LoggerMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			path := req.URL.Path
			if req.URL.RawQuery != "" {
				path += "?" + req.URL.RawQuery
			}

			entry := log.WithFields(log.Fields{
				"method":     req.Method,
				"path":       path,
				"status":     res.Status,
				"latency_ms": time.Since(start).Milliseconds(),
				"ip":         c.RealIP(),
			})

			// GET /api/nodes -> 200 OK
			msg := req.Method + " " + req.URL.Path + " -> " + http.StatusText(res.Status)
			switch {
			case res.Status >= 500:
				entry.Error(msg)
			case res.Status >= 400:
				entry.Warn(msg)
			default:
				entry.Info(msg)
			}

			return nil
		}
	}
}

// RecoverMiddleware turns a handler panic into a 500.
func RecoverMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("Recovered from panic: %v", r)
					err = c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				}
			}()
			return next(c)
		}
	}
}
