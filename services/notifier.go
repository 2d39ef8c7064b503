package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"firebase.google.com/go/v4/messaging"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gopkg.in/gomail.v2"

	"github.com/HSouheill/barrim_matching/models"
	"github.com/HSouheill/barrim_matching/services/matching"
)

// MemberLookup resolves the contact details of a bonus owner.
type MemberLookup interface {
	FindMember(ctx context.Context, id primitive.ObjectID) (*models.Member, error)
}

// NotificationStore persists in-app notifications.
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
}

// bonusMessage is the title and body shared by every channel.
func bonusMessage(record *models.MatchingBonusRecord, detailsCount int) (string, string) {
	title := "Matching Bonus Earned"
	body := fmt.Sprintf("You earned a matching bonus of $%s from %d downline commissions", record.Amount.StringFixed(2), detailsCount)
	if record.CycleStart != nil && record.CycleEnd != nil {
		body += fmt.Sprintf(" for %s to %s", record.CycleStart.Format("2006-01-02"), record.CycleEnd.Format("2006-01-02"))
	}
	return title, body + "."
}

func bonusData(record *models.MatchingBonusRecord, detailsCount int) map[string]string {
	data := map[string]string{
		"type":             models.NotificationTypeMatchingBonus,
		"matchingRecordId": record.ID.Hex(),
		"amount":           record.Amount.StringFixed(2),
		"detailsCount":     fmt.Sprint(detailsCount),
		"timestamp":        record.CreatedAt.Format(time.RFC3339),
	}
	if record.CycleStart != nil && record.CycleEnd != nil {
		data["cycleStart"] = record.CycleStart.Format(time.RFC3339)
		data["cycleEnd"] = record.CycleEnd.Format(time.RFC3339)
	}
	return data
}

// InAppNotifier saves a notification document for the bonus owner.
type InAppNotifier struct {
	store NotificationStore
}

func NewInAppNotifier(store NotificationStore) *InAppNotifier {
	return &InAppNotifier{store: store}
}

func (n *InAppNotifier) NotifyMatchingBonus(ctx context.Context, record *models.MatchingBonusRecord, detailsCount int) error {
	title, body := bonusMessage(record, detailsCount)
	return n.store.Create(ctx, &models.Notification{
		UserID:    record.OwnerID,
		Title:     title,
		Message:   body,
		Type:      models.NotificationTypeMatchingBonus,
		Data:      bonusData(record, detailsCount),
		CreatedAt: record.CreatedAt,
	})
}

type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushNotifier sends a Firebase Cloud Messaging notification to the owner's device.
type PushNotifier struct {
	client  messageSender
	members MemberLookup
}

func NewPushNotifier(client *messaging.Client, members MemberLookup) *PushNotifier {
	return &PushNotifier{client: client, members: members}
}

func (n *PushNotifier) NotifyMatchingBonus(ctx context.Context, record *models.MatchingBonusRecord, detailsCount int) error {
	member, err := n.members.FindMember(ctx, record.OwnerID)
	if err != nil {
		return fmt.Errorf("find member: %w", err)
	}
	if member.FCMToken == "" {
		return nil
	}

	title, body := bonusMessage(record, detailsCount)
	message := &messaging.Message{
		Token: member.FCMToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: bonusData(record, detailsCount),
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:     "default",
				ChannelID: "barrim_fcm_channel",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{Title: title, Body: body},
					Sound: "default",
				},
			},
		},
	}

	if _, err := n.client.Send(ctx, message); err != nil {
		return fmt.Errorf("send push notification: %w", err)
	}
	return nil
}

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier emails the owner about a posted bonus.
type EmailNotifier struct {
	sender  mailSender
	from    string
	members MemberLookup
}

func NewEmailNotifier(host string, port int, user, pass string, members MemberLookup) *EmailNotifier {
	return &EmailNotifier{
		sender:  gomail.NewDialer(host, port, user, pass),
		from:    user,
		members: members,
	}
}

func (n *EmailNotifier) NotifyMatchingBonus(ctx context.Context, record *models.MatchingBonusRecord, detailsCount int) error {
	member, err := n.members.FindMember(ctx, record.OwnerID)
	if err != nil {
		return fmt.Errorf("find member: %w", err)
	}
	if member.Email == "" {
		return nil
	}

	title, body := bonusMessage(record, detailsCount)
	name := member.FullName
	if name == "" {
		name = member.Username
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", member.Email)
	m.SetHeader("Subject", title)
	m.SetBody("text/plain", fmt.Sprintf("Dear %s,\n\n%s\nThe bonus is pending approval.\n\nBest regards,\nBarrim", name, body))
	if err := n.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// MultiNotifier fans a notification out to every channel. A failing channel
// does not stop the others.
type MultiNotifier []matching.Notifier

func (m MultiNotifier) NotifyMatchingBonus(ctx context.Context, record *models.MatchingBonusRecord, detailsCount int) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.NotifyMatchingBonus(ctx, record, detailsCount); err != nil {
			log.Printf("Failed to send matching bonus notification via %T: %v", n, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
