package controllers

import (
	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v4"

	"greenvale_go/config"
	"greenvale_go/database"
	"greenvale_go/middleware"
	"greenvale_go/models"
	wshub "greenvale_go/services/websocket"
)

type WebSocketController struct {
	hub *wshub.Hub
}

func NewWebSocketController(hub *wshub.Hub) *WebSocketController {
	return &WebSocketController{hub: hub}
}

// UpgradeCheck authenticates the connection before the protocol upgrade.
// Browsers cannot set an Authorization header on WebSocket requests, so the
// token rides in the token query parameter.
func (wc *WebSocketController) UpgradeCheck(c *fiber.Ctx) error {
	if !fiberws.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	tokenString := c.Query("token")
	if tokenString == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "token is required"})
	}

	if rc := database.GetRedisClient(); rc != nil {
		if exists, err := rc.Exists(c.Context(), "blacklist:jwt:"+tokenString).Result(); err == nil && exists > 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token has been revoked"})
		}
	}

	token, err := jwt.ParseWithClaims(tokenString, &middleware.Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(config.AppConfig.JWTSecret), nil
	})
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	claims, ok := token.Claims.(*middleware.Claims)
	if !ok || !token.Valid {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}

	var user models.User
	if err := database.DB.Where("id = ? AND status = ?", claims.UserID, "active").First(&user).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found or inactive"})
	}

	c.Locals("ws_user_id", user.ID)
	return c.Next()
}

// Handler serves the upgraded WebSocket connection
func (wc *WebSocketController) Handler() fiber.Handler {
	return fiberws.New(func(c *fiberws.Conn) {
		userID, ok := c.Locals("ws_user_id").(uint)
		if !ok {
			c.Close()
			return
		}
		wc.hub.ServeFiberWS(c, userID)
	})
}

// Stats reports connected client count
func (wc *WebSocketController) Stats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"connected_clients": wc.hub.GetClientCount()})
}
