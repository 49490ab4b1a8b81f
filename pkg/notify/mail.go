package notify

import (
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// MailConfig configures the SMTP server and the addresses of operator mails.
type MailConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	Sender    string
	Recipient string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer is a Mailer sending mails over SMTP. Mails are sent in the
// background.
type SMTPMailer struct {
	cfg  MailConfig
	send sendFunc
	wg   sync.WaitGroup
}

// NewSMTPMailer creates a new mailer with the given configuration.
func NewSMTPMailer(cfg MailConfig) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 25
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

func (m *SMTPMailer) SendMail(subject, htmlBody, source, metadata string) {
	log.Infof("sending notification mail. Info: %s", metadata)
	from := m.cfg.Sender
	if from == "" {
		from = fmt.Sprintf("%s <%s@localhost>", source, source)
	}
	msg := buildMessage(from, m.cfg.Recipient, subject, htmlBody)
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		err := m.send(addr, auth, envelopeAddress(from), []string{m.cfg.Recipient}, []byte(msg))
		if err != nil {
			mailCounter.WithLabelValues("failure").Inc()
			log.Errorf("failed to send notification mail: %s. Failed process info: %s", err.Error(), metadata)
			return
		}
		mailCounter.WithLabelValues("success").Inc()
	}()
}

// Close waits for all mails, which are still being sent.
func (m *SMTPMailer) Close() {
	m.wg.Wait()
}

// envelopeAddress extracts the plain address of "Name <address>".
func envelopeAddress(from string) string {
	start := strings.LastIndex(from, "<")
	end := strings.LastIndex(from, ">")
	if start >= 0 && end > start {
		return from[start+1 : end]
	}
	return from
}

func buildMessage(from, to, subject, htmlBody string) string {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)
	return msg.String()
}

// LogMailer is a Mailer, which only logs the mails. It is used, if no mail
// recipient has been configured.
type LogMailer struct{}

func (LogMailer) SendMail(subject, htmlBody, source, metadata string) {
	log.WithFields(log.Fields{
		"source":  source,
		"subject": subject,
	}).Warnf("notification mail: %s", metadata)
}
