// Package email delivers digests over SMTP.
package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"ArxivDigest/internal/config"
	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ports"
)

// implicitTLSPort is the SMTPS port; any other port upgrades with STARTTLS
// when the server offers it.
const implicitTLSPort = 465

// Notifier sends a digest as a multipart HTML/JSON mail.
type Notifier struct {
	cfg     config.EmailConfig
	now     func() time.Time
	deliver func(ctx context.Context, from string, to []string, msg []byte) error
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier binds SMTP settings.
func NewNotifier(cfg config.EmailConfig) *Notifier {
	n := &Notifier{cfg: cfg, now: time.Now}
	n.deliver = n.sendSMTP
	return n
}

// Notify builds the message and hands it to the SMTP server.
func (n *Notifier) Notify(ctx context.Context, digest domain.Digest) error {
	if !n.cfg.Enabled() {
		return fmt.Errorf("email notifier misconfigured")
	}

	from := n.cfg.Sender()
	msg, err := BuildMessage(from, n.cfg.To, digest, n.now())
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}
	if err := n.deliver(ctx, from, n.cfg.To, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (n *Notifier) sendSMTP(ctx context.Context, from string, to []string, msg []byte) error {
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	tlsConfig := &tls.Config{ServerName: n.cfg.Host}

	var (
		conn net.Conn
		err  error
	)
	if n.cfg.Port == implicitTLSPort {
		conn, err = (&tls.Dialer{Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("handshake: %w", err)
	}
	defer client.Close()

	if n.cfg.Port != implicitTLSPort {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}
	if err := client.Auth(smtp.PlainAuth("", n.cfg.User, n.cfg.Password, n.cfg.Host)); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}
	return client.Quit()
}
