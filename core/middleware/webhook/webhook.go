package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"github.com/gofiber/fiber/v2"
)

// HeaderName carries the base64 HMAC-SHA256 of the raw request body.
const HeaderName = "X-Shopify-Hmac-Sha256"

// Sign returns the signature expected for body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches body under secret.
func Verify(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(want, mac.Sum(nil))
}

// New returns a middleware rejecting unsigned or mis-signed requests.
// It fails closed: with no secret configured every request is rejected.
func New(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !Verify(secret, c.Body(), c.Get(HeaderName)) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid webhook signature",
			})
		}
		return c.Next()
	}
}
