package notify

import (
	"context"

	"getlog/lib/apperr"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/sirupsen/logrus"
)

// SESClientInterface defines the SES operation used by the mailer.
type SESClientInterface interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Mailer sends plain-text result mail through SES. It is the fallback
// channel when no Teams relay URL is configured.
type Mailer struct {
	SES    SESClientInterface
	Source string
	Logger *logrus.Logger
}

func NewMailer(svc SESClientInterface, source string, logger *logrus.Logger) *Mailer {
	return &Mailer{SES: svc, Source: source, Logger: logger}
}

// Send delivers one UTF-8 plain-text mail.
func (m *Mailer) Send(ctx context.Context, to []string, subject, body string) error {
	out, err := m.SES.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(m.Source),
		Destination: &types.Destination{
			ToAddresses: to,
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return apperr.Wrap(err, apperr.KindNotify, "ses send to %v failed", to)
	}

	m.Logger.WithFields(logrus.Fields{
		"messageId": aws.ToString(out.MessageId),
		"subject":   subject,
		"operation": "Send",
	}).Info("SES mail sent")
	return nil
}
