// Package mailer delivers transactional and campaign email through AWS
// SES, renders message bodies with Liquid templates, and falls back to a
// log-only sender when no credentials are configured.
package mailer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/inkwell-hq/inkwell/internal/pkg/logger"
)

// Sender delivers a single HTML email.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// SESSender sends email through AWS SES using the SDK v2.
type SESSender struct {
	client    *sesv2.Client
	fromEmail string
	fromName  string
}

// NewSESSender builds an SES sender with static credentials. Returns an
// error rather than a half-initialized client when credentials are absent.
func NewSESSender(accessKey, secretKey, region, fromEmail, fromName string) (*SESSender, error) {
	if accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("ses credentials not configured")
	}
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return &SESSender{
		client:    sesv2.NewFromConfig(cfg),
		fromEmail: fromEmail,
		fromName:  fromName,
	}, nil
}

// Send delivers one email through SES.
func (s *SESSender) Send(ctx context.Context, to, subject, html string) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(html), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send to %s: %w", logger.RedactEmail(to), err)
	}

	messageID := ""
	if result.MessageId != nil {
		messageID = *result.MessageId
	}
	logger.Debug("email sent", "to", to, "message_id", messageID)
	return nil
}

// LogSender logs instead of sending. Used in development and tests when no
// SES credentials are configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to, subject, html string) error {
	logger.Info("email send skipped (no sender configured)",
		"to", to, "subject", subject, "bytes", len(html))
	return nil
}
