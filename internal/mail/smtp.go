package mail

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/gomail.v2"
)

// SMTPConfig describes the relay that delivers security alerts. The
// certificate fields switch the connection to mutual TLS for relays
// that require a client certificate.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	TLS      bool
	CertFile string
	KeyFile  string
	CAFile   string
}

// SMTPMailSender delivers messages through a gomail dialer, one
// connection per message. The queue in front of it already serializes
// sends and spaces them out, so no connection reuse is needed here.
type SMTPMailSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailSender(cfg SMTPConfig, from string) (*SMTPMailSender, error) {
	tlsConfig, err := relayTLSConfig(cfg)
	if err != nil {
		return nil, err
	}
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.TLSConfig = tlsConfig
	return &SMTPMailSender{dialer: dialer, from: from}, nil
}

func (s *SMTPMailSender) Send(message *Message) error {
	msg := s.compose(message)
	started := time.Now()
	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp delivery %s: %w", message.ID, err)
	}
	slog.Debug("Mail delivered",
		"id", message.ID,
		"to", message.To,
		"subject", message.Subject,
		"elapsed", time.Since(started))
	return nil
}

func (s *SMTPMailSender) compose(message *Message) *gomail.Message {
	from := message.From
	if from == "" {
		from = s.from
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", message.To...)
	if len(message.Cc) > 0 {
		msg.SetHeader("Cc", message.Cc...)
	}
	if len(message.Bcc) > 0 {
		msg.SetHeader("Bcc", message.Bcc...)
	}
	msg.SetHeader("Subject", message.Subject)
	contentType := "text/plain"
	if message.IsHTML {
		contentType = "text/html"
	}
	msg.SetBody(contentType, message.Body)
	for cid, file := range message.Embeds {
		msg.Embed(file, gomail.SetHeader(map[string][]string{
			"Content-ID": {"<" + cid + ">"},
		}))
	}
	for _, file := range message.Attachments {
		msg.Attach(file)
	}
	return msg
}

// relayTLSConfig builds the TLS settings for the relay connection.
// Internal relays without the TLS flag are trusted as-is; mutual TLS
// verifies the relay against the configured CA bundle.
func relayTLSConfig(cfg SMTPConfig) (*tls.Config, error) {
	if !cfg.TLS {
		return &tls.Config{ServerName: cfg.Host, InsecureSkipVerify: true}, nil
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load smtp client certificate: %w", err)
	}
	tlsConfig := &tls.Config{
		ServerName:   cfg.Host,
		Certificates: []tls.Certificate{cert},
	}
	if cfg.CAFile != "" {
		caCert, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read smtp ca bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("smtp ca bundle %s has no certificates", cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}
