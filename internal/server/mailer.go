package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/smtp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/restoku/restoku-server/internal/events"
	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/storage"
	"github.com/restoku/restoku-server/pkg/crypto"
)

// ErrMailNotConfigured is returned when a tenant has no SMTP settings
var ErrMailNotConfigured = errors.New("email is not configured for this tenant")

// EmailSettingsStore loads tenant SMTP settings
type EmailSettingsStore interface {
	GetEmailSettings(ctx context.Context, tenantID uuid.UUID) (*models.EmailSettings, error)
}

// SendFunc delivers one message; smtp.SendMail by default
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer delivers mail.outbound events through each tenant's SMTP server
type Mailer struct {
	bus      events.Bus
	settings EmailSettingsStore
	tenants  TenantDirectory
	key      []byte
	send     SendFunc
	sub      events.Subscription
}

// NewMailer creates the mailer. key decrypts stored SMTP passwords.
func NewMailer(bus events.Bus, settings EmailSettingsStore, tenants TenantDirectory, key []byte) *Mailer {
	return &Mailer{
		bus:      bus,
		settings: settings,
		tenants:  tenants,
		key:      key,
		send:     smtp.SendMail,
	}
}

// Name implements appstate.Provider
func (m *Mailer) Name() string { return "mailer" }

// Start subscribes to outbound mail
func (m *Mailer) Start(ctx context.Context) error {
	sub, err := m.bus.QueueSubscribe("*", events.TopicMailOutbound, mailerQueue, m.handle)
	if err != nil {
		return fmt.Errorf("subscribe outbound mail: %w", err)
	}
	m.sub = sub
	return nil
}

// Close unsubscribes
func (m *Mailer) Close() error {
	if m.sub != nil {
		m.sub.Unsubscribe()
		m.sub = nil
	}
	return nil
}

func (m *Mailer) handle(e events.Event) {
	var msg events.MailMessage
	if err := e.Decode(&msg); err != nil {
		log.Error().Err(err).Str("subject", e.Subject).Msg("Failed to unmarshal outbound mail")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	t, err := m.tenants.Resolve(ctx, e.Tenant)
	if err != nil {
		log.Error().Err(err).Str("tenant", e.Tenant).Msg("Failed to resolve tenant of outbound mail")
		return
	}

	if err := m.Deliver(ctx, t, msg); err != nil {
		if errors.Is(err, ErrMailNotConfigured) {
			log.Debug().Str("tenant", t.Slug).Msg("Skipping mail, SMTP not configured")
			return
		}
		log.Error().Err(err).Str("tenant", t.Slug).Str("to", msg.To).Msg("Failed to send mail")
		return
	}

	log.Info().
		Str("tenant", t.Slug).
		Str("to", msg.To).
		Msg("Mail sent")
}

// Deliver sends msg with the SMTP settings of t
func (m *Mailer) Deliver(ctx context.Context, t *models.Tenant, msg events.MailMessage) error {
	settings, err := m.settings.GetEmailSettings(ctx, t.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrMailNotConfigured
	}
	if err != nil {
		return fmt.Errorf("get email settings: %w", err)
	}
	if settings.SMTPHost == "" || settings.SenderEmail == "" {
		return ErrMailNotConfigured
	}

	var auth smtp.Auth
	if settings.SMTPUsername != "" {
		password, err := m.password(settings)
		if err != nil {
			return err
		}
		auth = smtp.PlainAuth("", settings.SMTPUsername, password, settings.SMTPHost)
	}

	port := settings.SMTPPort
	if port == 0 {
		port = 587
	}
	addr := settings.SMTPHost + ":" + strconv.Itoa(port)

	if err := m.send(addr, auth, settings.SenderEmail, []string{msg.To}, compose(settings, msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (m *Mailer) password(settings *models.EmailSettings) (string, error) {
	if len(settings.SMTPPassword) == 0 {
		return "", nil
	}
	if len(m.key) == 0 {
		return "", fmt.Errorf("decrypt smtp password: no secrets key configured")
	}
	plain, err := crypto.Open(m.key, settings.SMTPPassword)
	if err != nil {
		return "", fmt.Errorf("decrypt smtp password: %w", err)
	}
	return plain, nil
}

func compose(settings *models.EmailSettings, msg events.MailMessage) []byte {
	from := settings.SenderEmail
	if settings.SenderName != "" {
		from = mime.QEncoding.Encode("utf-8", settings.SenderName) + " <" + settings.SenderEmail + ">"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(msg.Body)
	return buf.Bytes()
}
