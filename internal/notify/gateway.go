// Package notify delivers account emails (verification and password reset)
// outside the request path.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-feed-identity/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-feed-identity/internal/session"
)

// Message is the snapshot of an account an email is addressed to.
type Message struct {
	AccountID    string
	Username     string
	EmailAddress string
	FirstName    string
}

func messageFor(a *entity.Account) Message {
	return Message{
		AccountID:    a.ID,
		Username:     a.Username,
		EmailAddress: a.EmailAddress,
		FirstName:    a.FirstName,
	}
}

// Gateway is the delivery backend.
type Gateway interface {
	SendVerificationEmail(ctx context.Context, msg Message) error
	SendPasswordResetEmail(ctx context.Context, msg Message) error
}

// Email is a rendered message ready for delivery.
type Email struct {
	To      string
	Subject string
	Link    string
}

// LinkIssuer mints the token embedded in email links, scoped to the one
// route the link is for.
type LinkIssuer interface {
	IssueFor(audience, subject string, ttl time.Duration) (string, error)
}

// LogGateway renders each email with a signed link and writes it to the log
// instead of an SMTP relay. The link token authenticates the recipient for
// the verify/reset call that follows and is never written to the log.
type LogGateway struct {
	// Outbox, when set, receives every rendered email, link included.
	Outbox func(ctx context.Context, e Email) error

	issuer  LinkIssuer
	baseURL string
	linkTTL time.Duration
	logger  *zap.SugaredLogger
}

func NewLogGateway(issuer LinkIssuer, baseURL string, linkTTL time.Duration, logger *zap.SugaredLogger) *LogGateway {
	return &LogGateway{
		issuer:  issuer,
		baseURL: strings.TrimRight(baseURL, "/"),
		linkTTL: linkTTL,
		logger:  logger,
	}
}

func (g *LogGateway) SendVerificationEmail(ctx context.Context, msg Message) error {
	return g.send(ctx, msg, "Verify your email", "/verify-email", session.AudienceVerifyEmail)
}

func (g *LogGateway) SendPasswordResetEmail(ctx context.Context, msg Message) error {
	return g.send(ctx, msg, "Reset your password", "/reset-password", session.AudiencePasswordReset)
}

func (g *LogGateway) send(ctx context.Context, msg Message, subject, path, audience string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	link, err := g.link(msg.Username, path, audience)
	if err != nil {
		return err
	}
	if g.Outbox != nil {
		if err := g.Outbox(ctx, Email{To: msg.EmailAddress, Subject: subject, Link: link}); err != nil {
			return fmt.Errorf("outbox: %w", err)
		}
	}
	g.logger.Infow("email sent",
		"to", msg.EmailAddress,
		"account_id", msg.AccountID,
		"subject", subject,
		"link", g.baseURL+path,
	)
	return nil
}

func (g *LogGateway) link(username, path, audience string) (string, error) {
	token, err := g.issuer.IssueFor(audience, username, g.linkTTL)
	if err != nil {
		return "", fmt.Errorf("issue link token: %w", err)
	}
	return g.baseURL + path + "?token=" + url.QueryEscape(token), nil
}
