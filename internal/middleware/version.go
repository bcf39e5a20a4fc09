package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const currentApiVersion = "1.0.0"

// VersionMiddleware parses the X-Api-Version header and stores the
// normalized value in context
func VersionMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		version := c.Get("X-Api-Version", currentApiVersion)

		// Short forms alias to the full semver
		switch strings.Count(version, ".") {
		case 0:
			version += ".0.0"
		case 1:
			version += ".0"
		}

		c.Locals("apiVersion", version)

		return c.Next()
	}
}

// ApiVersion returns the negotiated version for the request.
func ApiVersion(c *fiber.Ctx) string {
	v, _ := c.Locals("apiVersion").(string)
	if v == "" {
		return currentApiVersion
	}
	return v
}
