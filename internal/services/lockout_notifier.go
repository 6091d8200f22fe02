package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/eishro/storeguard/internal/models"
	"github.com/eishro/storeguard/pkg/logger"
)

// sesSender is the subset of the SES client the notifier uses
type sesSender interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESLockoutNotifier e-mails the security contact when an identifier is locked out
type SESLockoutNotifier struct {
	client      sesSender
	fromAddress string
	toAddress   string
	logger      *slog.Logger
}

// NewSESLockoutNotifier creates a notifier backed by AWS SES
func NewSESLockoutNotifier(ctx context.Context, region, fromAddress, toAddress string, logger *slog.Logger) (*SESLockoutNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newSESLockoutNotifier(ses.NewFromConfig(cfg), fromAddress, toAddress, logger), nil
}

func newSESLockoutNotifier(client sesSender, fromAddress, toAddress string, logger *slog.Logger) *SESLockoutNotifier {
	return &SESLockoutNotifier{
		client:      client,
		fromAddress: fromAddress,
		toAddress:   toAddress,
		logger:      logger,
	}
}

// NotifyLockout sends the alert. The identifier is masked in the message body.
func (n *SESLockoutNotifier) NotifyLockout(ctx context.Context, identifier string, policy models.LockoutPolicy) error {
	masked := logger.MaskIdentifier(identifier)

	textBody := fmt.Sprintf(`Login lockout triggered

The identifier %s reached %d failed login attempts and is locked out for %s.

If this was not expected, review the security audit log for the originating addresses.

This is an automated message. Please do not reply to this email.
`, masked, policy.MaxAttempts, policy.LockoutDuration)

	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{n.toAddress},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Login lockout triggered"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := n.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send lockout email: %w", err)
	}

	n.logger.Info("lockout notice sent",
		slog.String("identifier", masked),
		slog.String("message_id", aws.ToString(result.MessageId)))
	return nil
}
