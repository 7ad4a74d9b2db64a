package mail

import (
	"fmt"
	"html"
	"strings"

	"whisp/config"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Sender 发送一封 HTML 邮件
type Sender interface {
	Send(to, subject, htmlBody string) error
}

// SMTPSender 通过 SMTP 发送邮件
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender 创建SMTP发送器
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *SMTPSender) Send(to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)
	return s.dialer.DialAndSend(m)
}

// LogSender 未配置SMTP时只记录日志
type LogSender struct {
	log *zap.Logger
}

// NewLogSender 创建日志发送器
func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(to, subject, htmlBody string) error {
	s.log.Info("邮件未启用，跳过发送",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}

// Mailer 业务邮件模板
type Mailer struct {
	sender  Sender
	baseURL string
}

// NewMailer 按配置选择发送器
func NewMailer(cfg config.MailConfig, log *zap.Logger) *Mailer {
	var sender Sender = NewLogSender(log)
	if cfg.Enabled {
		sender = NewSMTPSender(cfg)
	}
	return NewMailerWithSender(sender, cfg.BaseURL)
}

// NewMailerWithSender 使用指定发送器创建Mailer
func NewMailerWithSender(sender Sender, baseURL string) *Mailer {
	return &Mailer{sender: sender, baseURL: strings.TrimRight(baseURL, "/")}
}

// VerificationLink 邮箱验证链接
func (m *Mailer) VerificationLink(token string) string {
	return fmt.Sprintf("%s/verify-email/%s", m.baseURL, token)
}

// SendVerification 发送邮箱验证邮件
func (m *Mailer) SendVerification(to, username, token string) error {
	link := m.VerificationLink(token)
	body := fmt.Sprintf(`<h2>Welcome to Whisp, %s!</h2>
<p>Please verify your email address by clicking the link below:</p>
<p><a href="%s">Verify Email</a></p>
<p>This link expires in 24 hours.</p>`, html.EscapeString(username), link)
	return m.sender.Send(to, "Verify your Whisp email", body)
}
