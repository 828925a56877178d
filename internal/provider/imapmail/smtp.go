package imapmail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/nhle/mailbridge/internal/account"
	"github.com/nhle/mailbridge/internal/model"
	"github.com/nhle/mailbridge/internal/provider/rfc822"
)

// SendEmail composes a MIME message and submits it over SMTP.
func (a *Adapter) SendEmail(
	_ context.Context, msg model.OutgoingMessage,
) (*model.Ack, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(msg.To) == 0 {
		return nil, fmt.Errorf("message has no recipients")
	}

	raw, err := rfc822.Build(a.email, msg)
	if err != nil {
		return nil, err
	}

	recipients := make([]string, 0, len(msg.To)+len(msg.CC)+len(msg.BCC))
	recipients = append(recipients, msg.To...)
	recipients = append(recipients, msg.CC...)
	recipients = append(recipients, msg.BCC...)

	if err := a.sendMail(a.endpoints, a.email, a.password, recipients, raw); err != nil {
		return nil, fmt.Errorf("sending mail: %w", err)
	}

	return &model.Ack{
		Status: "sent",
		Detail: fmt.Sprintf("%d recipients", len(recipients)),
	}, nil
}

// submitSMTP delivers raw message bytes over the account's SMTP
// endpoint, using implicit TLS or STARTTLS per the endpoint setting.
func submitSMTP(ep *account.Endpoints, from, password string, to []string, raw []byte) error {
	addr := ep.SMTPHost + ":" + ep.SMTPPort

	var client *smtp.Client
	if ep.StartTLS {
		conn, err := net.DialTimeout("tcp", addr, 30*time.Second)
		if err != nil {
			return fmt.Errorf("dial to %s: %w", addr, err)
		}
		client, err = smtp.NewClient(conn, ep.SMTPHost)
		if err != nil {
			conn.Close()
			return fmt.Errorf("creating SMTP client: %w", err)
		}
		tlsConfig := &tls.Config{ServerName: ep.SMTPHost}
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return fmt.Errorf("SMTP STARTTLS: %w", err)
		}
	} else {
		tlsConfig := &tls.Config{ServerName: ep.SMTPHost}
		conn, err := tls.Dial("tcp", addr, tlsConfig)
		if err != nil {
			return fmt.Errorf("TLS dial to %s: %w", addr, err)
		}
		client, err = smtp.NewClient(conn, ep.SMTPHost)
		if err != nil {
			conn.Close()
			return fmt.Errorf("creating SMTP client: %w", err)
		}
	}
	defer client.Close()

	auth := smtp.PlainAuth("", from, password, ep.SMTPHost)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth: %w", err)
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("SMTP RCPT TO %s: %w", rcpt, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}
	if _, err := writer.Write(raw); err != nil {
		return fmt.Errorf("writing message body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing message body: %w", err)
	}

	return client.Quit()
}
