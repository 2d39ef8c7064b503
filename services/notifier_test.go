package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gopkg.in/gomail.v2"

	"github.com/HSouheill/barrim_matching/models"
)

type stubMembers map[primitive.ObjectID]*models.Member

func (s stubMembers) FindMember(_ context.Context, id primitive.ObjectID) (*models.Member, error) {
	if m, ok := s[id]; ok {
		return m, nil
	}
	return nil, models.ErrNotFound
}

type recordingStore struct {
	saved []*models.Notification
}

func (s *recordingStore) Create(_ context.Context, n *models.Notification) error {
	s.saved = append(s.saved, n)
	return nil
}

type recordingSender struct {
	messages []*messaging.Message
	err      error
}

func (s *recordingSender) Send(_ context.Context, m *messaging.Message) (string, error) {
	s.messages = append(s.messages, m)
	return "projects/test/messages/1", s.err
}

type recordingMailer struct {
	sent []*gomail.Message
}

func (s *recordingMailer) DialAndSend(m ...*gomail.Message) error {
	s.sent = append(s.sent, m...)
	return nil
}

type notifierFunc func(ctx context.Context, record *models.MatchingBonusRecord, detailsCount int) error

func (f notifierFunc) NotifyMatchingBonus(ctx context.Context, record *models.MatchingBonusRecord, detailsCount int) error {
	return f(ctx, record, detailsCount)
}

func testRecord(owner primitive.ObjectID) *models.MatchingBonusRecord {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)
	return models.NewMatchingBonusRecord(owner, decimal.RequireFromString("130"), start, end, end.Add(time.Hour))
}

func TestBonusMessage(t *testing.T) {
	title, body := bonusMessage(testRecord(primitive.NewObjectID()), 3)
	if title != "Matching Bonus Earned" {
		t.Errorf("title = %q", title)
	}
	want := "You earned a matching bonus of $130.00 from 3 downline commissions for 2024-03-01 to 2024-03-31."
	if body != want {
		t.Errorf("body = %q, want %q", body, want)
	}
}

func TestInAppNotifier(t *testing.T) {
	store := &recordingStore{}
	owner := primitive.NewObjectID()
	record := testRecord(owner)

	if err := NewInAppNotifier(store).NotifyMatchingBonus(context.Background(), record, 2); err != nil {
		t.Fatalf("NotifyMatchingBonus() error = %v", err)
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved %d notifications, want 1", len(store.saved))
	}
	n := store.saved[0]
	if n.UserID != owner || n.Type != models.NotificationTypeMatchingBonus {
		t.Errorf("notification = %+v", n)
	}
}

func TestPushNotifier(t *testing.T) {
	owner := primitive.NewObjectID()
	tests := []struct {
		name      string
		token     string
		wantSends int
	}{
		{"sends to device token", "device-token", 1},
		{"skips member without token", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &recordingSender{}
			n := &PushNotifier{client: sender, members: stubMembers{owner: {ID: owner, FCMToken: tt.token}}}

			if err := n.NotifyMatchingBonus(context.Background(), testRecord(owner), 1); err != nil {
				t.Fatalf("NotifyMatchingBonus() error = %v", err)
			}
			if len(sender.messages) != tt.wantSends {
				t.Fatalf("sent %d messages, want %d", len(sender.messages), tt.wantSends)
			}
			if tt.wantSends > 0 {
				m := sender.messages[0]
				if m.Token != tt.token || m.Data["amount"] != "130.00" || m.Data["type"] != models.NotificationTypeMatchingBonus {
					t.Errorf("message = %+v", m)
				}
			}
		})
	}
}

func TestPushNotifierUnknownMember(t *testing.T) {
	n := &PushNotifier{client: &recordingSender{}, members: stubMembers{}}
	if err := n.NotifyMatchingBonus(context.Background(), testRecord(primitive.NewObjectID()), 1); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("NotifyMatchingBonus() error = %v, want ErrNotFound", err)
	}
}

func TestEmailNotifier(t *testing.T) {
	owner := primitive.NewObjectID()
	mailer := &recordingMailer{}
	n := &EmailNotifier{
		sender:  mailer,
		from:    "bonus@barrim.test",
		members: stubMembers{owner: {ID: owner, Email: "alice@example.com", FullName: "Alice"}},
	}

	if err := n.NotifyMatchingBonus(context.Background(), testRecord(owner), 4); err != nil {
		t.Fatalf("NotifyMatchingBonus() error = %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(mailer.sent))
	}
	if to := mailer.sent[0].GetHeader("To"); len(to) != 1 || to[0] != "alice@example.com" {
		t.Errorf("To = %v", to)
	}
}

func TestMultiNotifierContinuesAfterFailure(t *testing.T) {
	var calls []string
	failing := notifierFunc(func(context.Context, *models.MatchingBonusRecord, int) error {
		calls = append(calls, "failing")
		return errors.New("push unavailable")
	})
	ok := notifierFunc(func(context.Context, *models.MatchingBonusRecord, int) error {
		calls = append(calls, "ok")
		return nil
	})

	err := MultiNotifier{failing, nil, ok}.NotifyMatchingBonus(context.Background(), testRecord(primitive.NewObjectID()), 1)
	if err == nil || !strings.Contains(err.Error(), "push unavailable") {
		t.Fatalf("error = %v, want push unavailable", err)
	}
	if strings.Join(calls, ",") != "failing,ok" {
		t.Errorf("calls = %v", calls)
	}
}
