package middleware

import (
	"errors"

	config "github.com/anjiri1684/school_cbt/configs"
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

var ErrNoUser = errors.New("no authenticated user")

type User struct {
	ID   uuid.UUID
	Role string
}

// Protected verifies bearer tokens issued by the identity service.
func Protected() fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(config.Config("JWT_SECRET")),
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if err.Error() == "Missing or malformed JWT" {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"status": "error", "message": "Missing or malformed JWT", "data": nil})
	}
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"status": "error", "message": "Invalid or expired JWT", "data": nil})
}

// CurrentUser reads the user_id and role claims set by Protected.
func CurrentUser(c *fiber.Ctx) (User, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok || token == nil {
		return User{}, ErrNoUser
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return User{}, ErrNoUser
	}
	rawID, _ := claims["user_id"].(string)
	id, err := uuid.Parse(rawID)
	if err != nil {
		return User{}, ErrNoUser
	}
	role, _ := claims["role"].(string)
	return User{ID: id, Role: role}, nil
}

func requireRole(role, message string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := CurrentUser(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
		}
		if user.Role != role {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": message})
		}
		return c.Next()
	}
}

func AdminRequired() fiber.Handler {
	return requireRole(RoleAdmin, "Forbidden: Admin access required")
}

func StudentRequired() fiber.Handler {
	return requireRole(RoleStudent, "Forbidden: Student access required")
}
