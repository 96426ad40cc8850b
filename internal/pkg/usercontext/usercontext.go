package usercontext

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const userContextKey = "USER_CONTEXT"

// UserContext represents the authenticated user of a request. The identity
// itself is established upstream (API gateway / auth proxy) and handed to
// this service via the X-User-ID header.
type UserContext struct {
	UserID     uint `json:"user_id"`
	IsLoggedIn bool `json:"is_logged_in"`
}

// Middleware extracts the caller identity from the X-User-ID header and
// stores it in the request locals for the controllers.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := UserContext{}
		if raw := c.Get("X-User-ID"); raw != "" {
			if id, err := strconv.ParseUint(raw, 10, 64); err == nil && id > 0 {
				ctx.UserID = uint(id)
				ctx.IsLoggedIn = true
			}
		}
		c.Locals(userContextKey, ctx)
		return c.Next()
	}
}

// GetUserContext retrieves the user context from fiber context.
// Returns a default anonymous context if none is set.
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx := c.Locals(userContextKey); ctx != nil {
		return ctx.(UserContext)
	}
	return UserContext{IsLoggedIn: false}
}

// IsLoggedIn checks if the current user is logged in.
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// GetUserID returns the current user's ID, or 0 if not logged in.
func GetUserID(c *fiber.Ctx) uint {
	return GetUserContext(c).UserID
}
