package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/masthead-news/masthead/pkg/logger"
)

// EmailService defines the interface for outbound authentication email
type EmailService interface {
	SendLoginCode(ctx context.Context, email, code string) error
	SendPasswordResetLink(ctx context.Context, email, resetID, token string) error
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient    *ses.Client
	fromAddress  string
	resetBaseURL string
	logger       *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress, resetBaseURL string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:    ses.NewFromConfig(cfg),
		fromAddress:  fromAddress,
		resetBaseURL: resetBaseURL,
		logger:       logger,
	}, nil
}

// SendLoginCode emails a one-time login code. The plaintext code never
// reaches log output; only its hash is stored server-side.
func (s *AWSSESEmailService) SendLoginCode(ctx context.Context, email, code string) error {
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h1 style="font-size: 20px;">Your sign-in code</h1>
        <p>Enter this code to finish signing in to Masthead:</p>
        <p style="font-size: 32px; letter-spacing: 8px; font-weight: bold;">%s</p>
        <p>The code expires in 5 minutes. If you did not try to sign in, you can ignore this email and your password still protects your account.</p>
        <p style="color: #666; font-size: 12px; border-top: 1px solid #eee; padding-top: 12px;">This is an automated message. Please do not reply.</p>
    </div>
</body>
</html>
`, code)

	textBody := fmt.Sprintf(`Your sign-in code

Enter this code to finish signing in to Masthead:

    %s

The code expires in 5 minutes. If you did not try to sign in, you can
ignore this email and your password still protects your account.
`, code)

	return s.send(ctx, email, "Your Masthead sign-in code", htmlBody, textBody)
}

// SendPasswordResetLink emails a single-use password reset link.
func (s *AWSSESEmailService) SendPasswordResetLink(ctx context.Context, email, resetID, token string) error {
	resetLink := fmt.Sprintf("%s?rid=%s&token=%s", s.resetBaseURL, resetID, token)

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h1 style="font-size: 20px;">Reset your password</h1>
        <p>Someone requested a password reset for this address. If that was you, use the link below:</p>
        <p><a href="%s" style="display: inline-block; background-color: #0066cc; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px;">Reset password</a></p>
        <p>Or copy and paste this link in your browser:<br><code>%s</code></p>
        <p>The link expires in 30 minutes and can only be used once. Resetting your password signs you out of every device.</p>
        <p>If you did not request this, no action is needed.</p>
        <p style="color: #666; font-size: 12px; border-top: 1px solid #eee; padding-top: 12px;">This is an automated message. Please do not reply.</p>
    </div>
</body>
</html>
`, resetLink, resetLink)

	textBody := fmt.Sprintf(`Reset your password

Someone requested a password reset for this address. If that was you, open
the link below:

%s

The link expires in 30 minutes and can only be used once. Resetting your
password signs you out of every device.

If you did not request this, no action is needed.
`, resetLink)

	return s.send(ctx, email, "Reset your Masthead password", htmlBody, textBody)
}

func (s *AWSSESEmailService) send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	if _, err := s.sesClient.SendEmail(ctx, input); err != nil {
		s.logger.Error("failed to send email",
			slog.String("to", pkglogger.SanitizedEmail(to)),
			slog.String("subject", subject),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		slog.String("to", pkglogger.SanitizedEmail(to)),
		slog.String("subject", subject))
	return nil
}
