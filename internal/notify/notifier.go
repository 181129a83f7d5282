// Package notify tells students about decisions on their applications by
// email and, when they have a phone number, by SMS.
package notify

import (
	"context"
	"fmt"
	"time"

	"admissions-workers/internal/common/errors"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/common/metrics"
	"admissions-workers/internal/models"

	"github.com/google/uuid"
)

// EmailSender is implemented by aws.SESClient.
type EmailSender interface {
	SendText(ctx context.Context, to, subject, body string) (string, error)
}

// SMSSender is implemented by aws.SNSClient.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

// Notifier sends decision messages. A nil sender disables its channel.
type Notifier struct {
	email  EmailSender
	sms    SMSSender
	now    func() time.Time
	logger logger.Logger
}

func NewNotifier(email EmailSender, sms SMSSender, log logger.Logger) *Notifier {
	return &Notifier{
		email:  email,
		sms:    sms,
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.WithFields(map[string]interface{}{"component": "notify"}),
	}
}

// RenderDecision builds the message for a decided application.
func RenderDecision(app *models.Application) models.DecisionMessage {
	body := fmt.Sprintf("Dear %s, Your application for %s has been %s.", app.StudentName, app.CourseName, app.Status)
	return models.DecisionMessage{
		Subject: "Application Update - " + app.CourseName,
		Body:    body,
		SMS:     fmt.Sprintf("%s: your application for %s has been %s.", app.InstitutionName, app.CourseName, app.Status),
	}
}

// NotifyDecision sends the decision of app to student. It returns one
// record per channel; if any enabled channel failed the error is
// NotificationSendFailed and the records are still returned. The error is
// retryable only when nothing was delivered, since a retry sends on every
// channel again.
func (n *Notifier) NotifyDecision(ctx context.Context, app *models.Application, student models.StudentProfile) ([]models.Notification, error) {
	if !app.Status.IsTerminal() {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("application %s is still %s", app.ID, app.Status))
	}
	if student.Email == "" {
		student.Email = app.StudentEmail
	}
	if student.Name == "" {
		student.Name = app.StudentName
	}
	msg := RenderDecision(app)

	emailRec := n.record(app, student.ID, models.ChannelEmail)
	var firstErr error
	switch {
	case n.email == nil:
		emailRec.Status = models.DeliveryDisabled
	case student.Email == "":
		emailRec.Status = models.DeliverySkipped
	default:
		id, err := n.email.SendText(ctx, student.Email, msg.Subject, msg.Body)
		firstErr = n.settle(&emailRec, id, err)
	}

	smsRec := n.record(app, student.ID, models.ChannelSMS)
	switch {
	case n.sms == nil:
		smsRec.Status = models.DeliveryDisabled
	case student.Phone == "":
		smsRec.Status = models.DeliverySkipped
	default:
		id, err := n.sms.SendSMS(ctx, student.Phone, msg.SMS)
		if err := n.settle(&smsRec, id, err); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	out := []models.Notification{emailRec, smsRec}
	var delivered []string
	for _, rec := range out {
		metrics.NotificationsSent.WithLabelValues(rec.Channel, rec.Status).Inc()
		if rec.Status == models.DeliverySent {
			delivered = append(delivered, rec.Channel)
		}
	}
	if se, ok := firstErr.(*errors.StandardError); ok && len(delivered) > 0 {
		se.Retryable = false
		se.WithMetadata("deliveredChannels", delivered)
	}
	n.logger.Info("decision notification processed", map[string]interface{}{
		"applicationId": app.ID,
		"email":         emailRec.Status,
		"sms":           smsRec.Status,
	})
	return out, firstErr
}

func (n *Notifier) record(app *models.Application, recipient, channel string) models.Notification {
	return models.Notification{
		ID:            uuid.NewString(),
		ApplicationID: app.ID,
		RecipientID:   recipient,
		Channel:       channel,
		SentAt:        n.now(),
	}
}

func (n *Notifier) settle(rec *models.Notification, messageID string, err error) error {
	if err != nil {
		rec.Status = models.DeliveryFailed
		rec.Error = errors.UserMessage(errors.NewNotificationSendFailedError(rec.Channel, err))
		n.logger.Warn("notification send failed", map[string]interface{}{
			"applicationId": rec.ApplicationID,
			"channel":       rec.Channel,
			"error":         err,
		})
		return errors.NewNotificationSendFailedError(rec.Channel, err)
	}
	rec.Status = models.DeliverySent
	rec.MessageID = messageID
	return nil
}
