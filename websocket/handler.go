package websocket

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TokenVerifier resolves a bearer token to a member id.
type TokenVerifier func(token string) (primitive.ObjectID, error)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades the request and registers the connection with hub. The
// client authenticates with a ?token= query parameter or by sending
// "AUTH:<token>" after connecting.
func Handler(hub *Hub, verify TokenVerifier) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := primitive.NilObjectID
		if token := c.QueryParam("token"); token != "" {
			id, err := verify(token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Invalid token"})
			}
			userID = id
		}

		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return err
		}

		client := &Client{
			UserID:        userID,
			Conn:          conn,
			Authenticated: !userID.IsZero(),
		}
		if !hub.Register(client) {
			conn.Close()
			return nil
		}

		if client.Authenticated {
			client.Send(Notification{
				Type:    NotificationTypeConnected,
				Message: "WebSocket connection established",
				UserID:  userID.Hex(),
			})
		} else {
			client.Send(Notification{
				Type:         NotificationTypeConnected,
				Message:      "WebSocket connection established. Please authenticate to receive notifications.",
				RequiresAuth: true,
			})
		}

		go readLoop(hub, client, verify)
		return nil
	}
}

func readLoop(hub *Hub, client *Client, verify TokenVerifier) {
	defer hub.Unregister(client)

	for {
		messageType, message, err := client.Conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		token, ok := strings.CutPrefix(string(message), "AUTH:")
		if !ok {
			continue
		}
		userID, err := verify(strings.TrimSpace(token))
		if err != nil {
			client.Send(Notification{
				Type:         NotificationTypeAuthResponse,
				Message:      "Authentication failed",
				RequiresAuth: true,
			})
			continue
		}
		hub.AuthenticateClient(client, userID)
		client.Send(Notification{
			Type:    NotificationTypeAuthResponse,
			Message: "Authenticated",
			UserID:  userID.Hex(),
		})
	}
}
