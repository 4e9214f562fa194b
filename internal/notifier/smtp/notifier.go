// Package smtp delivers monitor notifications over SMTP.
package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io/fs"
	"net"
	netsmtp "net/smtp"
	"os"
	"strconv"
	"strings"

	"github.com/jordan-wright/email"
	"go.uber.org/zap"

	"github.com/JakeFAU/pagewatch/internal/monitor"
)

// DefaultPort is the submission port used when none is configured.
const DefaultPort = 587

// Config captures the SMTP connection settings.
type Config struct {
	Host string
	Port int
	// Username doubles as the From address.
	Username string
	Password string
	// StartTLS selects plain connect + STARTTLS; false means implicit TLS.
	StartTLS bool
}

// Addr returns host:port.
func (c Config) Addr() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

type sendFunc func(e *email.Email, addr string, auth netsmtp.Auth, tlsConfig *tls.Config) error

// Notifier implements monitor.Notifier.
type Notifier struct {
	cfg    Config
	send   sendFunc
	logger *zap.Logger
}

// New validates cfg and returns a Notifier.
func New(cfg Config, logger *zap.Logger) (*Notifier, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp host is required")
	}
	if strings.TrimSpace(cfg.Username) == "" {
		return nil, errors.New("smtp username is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Notifier{cfg: cfg, logger: logger}
	n.send = n.transport()
	return n, nil
}

func (n *Notifier) transport() sendFunc {
	if n.cfg.StartTLS {
		return func(e *email.Email, addr string, auth netsmtp.Auth, tlsConfig *tls.Config) error {
			return e.SendWithStartTLS(addr, auth, tlsConfig)
		}
	}
	return func(e *email.Email, addr string, auth netsmtp.Auth, tlsConfig *tls.Config) error {
		return e.SendWithTLS(addr, auth, tlsConfig)
	}
}

// Send delivers msg. An AttachmentPath that does not exist is skipped and the
// message goes out body-only.
func (n *Notifier) Send(ctx context.Context, msg monitor.Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("notification recipient is required")
	}
	e, err := n.build(msg)
	if err != nil {
		return err
	}

	auth := netsmtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	tlsConfig := &tls.Config{ServerName: n.cfg.Host, MinVersion: tls.VersionTLS12}

	done := make(chan error, 1)
	go func() {
		done <- n.send(e, n.cfg.Addr(), auth, tlsConfig)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("send email: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email via %s: %w", n.cfg.Addr(), err)
		}
		return nil
	}
}

func (n *Notifier) build(msg monitor.Message) (*email.Email, error) {
	e := email.NewEmail()
	e.From = n.cfg.Username
	e.To = []string{msg.To}
	e.Subject = msg.Subject
	e.Text = []byte(msg.Body)

	if msg.AttachmentPath == "" {
		return e, nil
	}
	if _, err := os.Stat(msg.AttachmentPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			n.logger.Warn("attachment missing; sending without it", zap.String("path", msg.AttachmentPath))
			return e, nil
		}
		return nil, fmt.Errorf("stat attachment: %w", err)
	}
	if _, err := e.AttachFile(msg.AttachmentPath); err != nil {
		return nil, fmt.Errorf("attach %s: %w", msg.AttachmentPath, err)
	}
	return e, nil
}
