package notify

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"ledgercheck/internal/log"
)

// Attachment is a file sent along with a report, typically the new and old
// PDF ledgers.
type Attachment struct {
	Filename string
	Data     []byte
}

// MailerConfig carries the SMTP settings for sending reports.
type MailerConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// To is a comma-separated recipient list.
	To string
}

// Mailer sends rendered reports over SMTP with implicit TLS. Every message
// gets its own Message-ID so later reports can thread onto earlier ones via
// In-Reply-To.
type Mailer struct {
	cfg    MailerConfig
	logger *log.Logger
}

func NewMailer(cfg MailerConfig, logger *log.Logger) *Mailer {
	return &Mailer{cfg: cfg, logger: logger.WithComponent(log.ComponentNotify)}
}

// Send delivers a report and returns the Message-ID it was sent under.
// A non-empty inReplyTo threads the message under an earlier report.
func (m *Mailer) Send(ctx context.Context, report *Report, attachments []Attachment, inReplyTo string) (string, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return "", fmt.Errorf("set sender %q: %w", m.cfg.From, err)
	}
	if err := msg.To(recipients(m.cfg.To)...); err != nil {
		return "", fmt.Errorf("set recipients %q: %w", m.cfg.To, err)
	}
	msg.Subject(report.Subject)

	msg.SetBodyString(mail.TypeTextPlain, report.Text)
	if report.HTML != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, report.HTML)
	}
	for _, a := range attachments {
		if err := msg.AttachReader(a.Filename, bytes.NewReader(a.Data)); err != nil {
			return "", fmt.Errorf("attach %q: %w", a.Filename, err)
		}
	}

	id := newMessageID()
	msg.SetMessageIDWithValue(id)
	if inReplyTo != "" {
		msg.SetGenHeader(mail.HeaderInReplyTo, "<"+inReplyTo+">")
		msg.SetGenHeader(mail.HeaderReferences, "<"+inReplyTo+">")
	}

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
	)
	if err != nil {
		return "", fmt.Errorf("create SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}

	m.logger.InfoContext(ctx, "Sent report",
		log.FieldOperation, log.OpNotify,
		log.FieldMessageID, id,
		"subject", report.Subject,
		"attachments", len(attachments))
	return id, nil
}

func recipients(to string) []string {
	var out []string
	for _, addr := range strings.Split(to, ",") {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func newMessageID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read does not fail on supported platforms.
		panic(err)
	}
	return fmt.Sprintf("%d.%s@ledgercheck", time.Now().Unix(), hex.EncodeToString(buf))
}
