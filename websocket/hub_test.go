package websocket

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/barrim_matching/models"
)

func startServer(t *testing.T, verify TokenVerifier) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	e := echo.New()
	e.GET("/ws", Handler(hub, verify))
	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readNotification(t *testing.T, conn *websocket.Conn) Notification {
	t.Helper()
	var n Notification
	if err := conn.ReadJSON(&n); err != nil {
		t.Fatalf("read: %v", err)
	}
	return n
}

func waitConnected(t *testing.T, hub *Hub, userID primitive.ObjectID) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !hub.IsConnected(userID) {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func staticVerifier(tokens map[string]primitive.ObjectID) TokenVerifier {
	return func(token string) (primitive.ObjectID, error) {
		if id, ok := tokens[token]; ok {
			return id, nil
		}
		return primitive.NilObjectID, errors.New("bad token")
	}
}

func TestHubDeliversMatchingBonus(t *testing.T) {
	userID := primitive.NewObjectID()
	hub, url := startServer(t, staticVerifier(map[string]primitive.ObjectID{"good": userID}))

	conn := dial(t, url+"?token=good")
	if n := readNotification(t, conn); n.Type != NotificationTypeConnected || n.RequiresAuth {
		t.Fatalf("welcome = %+v", n)
	}
	waitConnected(t, hub, userID)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	record := models.NewMatchingBonusRecord(userID, decimal.RequireFromString("130"), start, start.AddDate(0, 1, 0), start)
	if err := hub.NotifyMatchingBonus(context.Background(), record, 3); err != nil {
		t.Fatalf("NotifyMatchingBonus() error = %v", err)
	}

	n := readNotification(t, conn)
	if n.Type != NotificationTypeMatchingBonus || n.UserID != userID.Hex() {
		t.Fatalf("notification = %+v", n)
	}
}

func TestHubAuthMessage(t *testing.T) {
	userID := primitive.NewObjectID()
	hub, url := startServer(t, staticVerifier(map[string]primitive.ObjectID{"good": userID}))

	conn := dial(t, url)
	if n := readNotification(t, conn); !n.RequiresAuth {
		t.Fatalf("welcome = %+v, want auth required", n)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("AUTH:bad")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if n := readNotification(t, conn); n.Type != NotificationTypeAuthResponse || !n.RequiresAuth {
		t.Fatalf("auth response = %+v, want failure", n)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("AUTH:good")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if n := readNotification(t, conn); n.Type != NotificationTypeAuthResponse || n.UserID != userID.Hex() {
		t.Fatalf("auth response = %+v", n)
	}
	if !hub.IsConnected(userID) {
		t.Fatal("client not authenticated in hub")
	}
}

func TestReauthenticateMovesClient(t *testing.T) {
	hub := NewHub()
	first, second := primitive.NewObjectID(), primitive.NewObjectID()
	client := &Client{}

	hub.AuthenticateClient(client, first)
	hub.AuthenticateClient(client, second)

	if hub.IsConnected(first) {
		t.Error("client still registered under its previous user")
	}
	if !hub.IsConnected(second) {
		t.Error("client not registered under its new user")
	}
	if err := hub.SendToUser(first, Notification{Type: NotificationTypeMatchingBonus}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendToUser(previous user) error = %v, want ErrNotConnected", err)
	}
}

func TestHubRejectsBadQueryToken(t *testing.T) {
	_, url := startServer(t, staticVerifier(nil))
	if _, _, err := websocket.DefaultDialer.Dial(url+"?token=bad", nil); err == nil {
		t.Fatal("dial succeeded with bad token")
	}
}

func TestNotifyOfflineUserIsNotAnError(t *testing.T) {
	hub := NewHub()
	record := models.NewMatchingBonusRecord(primitive.NewObjectID(), decimal.NewFromInt(1), time.Now(), time.Now(), time.Now())
	if err := hub.NotifyMatchingBonus(context.Background(), record, 1); err != nil {
		t.Fatalf("NotifyMatchingBonus() error = %v", err)
	}
	if err := hub.SendToUser(record.OwnerID, Notification{}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("SendToUser() error = %v, want ErrNotConnected", err)
	}
}
