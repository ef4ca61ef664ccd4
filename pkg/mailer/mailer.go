package mailer

import (
	"net"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config holds SMTP connection details.
type Config struct {
	Addr     string
	User     string
	Password string
	From     string
	Timeout  time.Duration
}

// Mailer sends one message to one recipient over SMTP.
type Mailer struct {
	addr    string
	auth    smtp.Auth
	from    string
	timeout time.Duration
	logger  *zap.Logger
}

// New builds a Mailer. Auth is plain and only configured when credentials
// are present.
func New(cfg Config, logger *zap.Logger) *Mailer {
	var auth smtp.Auth
	if cfg.User != "" || cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, host(cfg.Addr))
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Mailer{
		addr:    cfg.Addr,
		auth:    auth,
		from:    cfg.From,
		timeout: timeout,
		logger:  logger,
	}
}

// Send delivers a single HTML message. Each call is independent; a failure
// for one recipient never affects another.
func (m *Mailer) Send(to, subject, htmlBody string) error {
	msg := []byte(
		"From: " + m.from + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=utf-8\r\n" +
			"\r\n" + htmlBody + "\r\n")

	start := time.Now()
	if err := m.sendMail(to, msg); err != nil {
		m.logger.Warn("sendmail failed",
			zap.String("smtp_addr", m.addr),
			zap.String("to", to),
			zap.Error(err))
		return err
	}
	m.logger.Info("email sent",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (m *Mailer) sendMail(to string, msg []byte) error {
	dialer := net.Dialer{Timeout: m.timeout}
	conn, err := dialer.Dial("tcp", m.addr)
	if err != nil {
		return err
	}

	c, err := smtp.NewClient(conn, host(m.addr))
	if err != nil {
		conn.Close()
		return err
	}
	defer func() { _ = c.Close() }()

	if m.auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(m.auth); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(m.from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err = w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func host(addr string) string {
	if i := strings.Index(addr, ":"); i >= 0 {
		return addr[:i]
	}
	return addr
}
