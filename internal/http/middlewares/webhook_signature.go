package middleware

import (
	"bytes"
	"io"

	"github.com/labstack/echo/v4"

	apperrors "insightforge.com/insightforge/internal/errors"
	"insightforge.com/insightforge/internal/webhook"
)

const (
	rawBodyKey     = "raw_body"
	maxWebhookBody = 1 << 20
)

// WebhookSignature rejects requests whose X-Webhook-Signature header is not
// the HMAC-SHA256 of the raw body. The body is restored for binding and kept
// on the context for auditing.
func WebhookSignature(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			body, err := io.ReadAll(io.LimitReader(req.Body, maxWebhookBody))
			if err != nil {
				return apperrors.ErrInvalidSignature
			}
			_ = req.Body.Close()

			if !webhook.Verify(secret, body, req.Header.Get(webhook.HeaderSignature)) {
				return apperrors.ErrInvalidSignature
			}

			req.Body = io.NopCloser(bytes.NewReader(body))
			c.Set(rawBodyKey, body)
			return next(c)
		}
	}
}

func RawBody(c echo.Context) []byte {
	body, _ := c.Get(rawBodyKey).([]byte)
	return body
}
