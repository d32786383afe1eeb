package stream

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// TokenValidator resolves an access token to a user id.
type TokenValidator interface {
	ValidateAccessToken(token string) (string, error)
}

// UpgradeAuth authenticates a websocket upgrade. Browsers cannot set headers
// on websocket requests, so the token may also come from ?access_token=.
func UpgradeAuth(tokens TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		token := c.Query("access_token")
		if token == "" {
			token = bearer(c.Get("Authorization"))
		}
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing access token")
		}
		userID, err := tokens.ValidateAccessToken(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		c.Locals("user_id", userID)
		return c.Next()
	}
}

func RegisterRoutes(r fiber.Router, hub *Hub, tokens TokenValidator) {
	r.Get("/ws", UpgradeAuth(tokens), websocket.New(func(c *websocket.Conn) {
		userID, _ := c.Locals("user_id").(string)
		client := hub.Register(UserTopic(userID))

		done := make(chan struct{})
		go func() {
			defer close(done)
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		hub.Unregister(client)
		<-done
	}))
}

func bearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
