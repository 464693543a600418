package delivery

import (
	"context"
	"errors"
	"strings"
	"text/template"

	"golang.org/x/time/rate"

	"notifyd/internal/notification"
)

// Config carries the sending identities and the outbound rate limit
// shared by all dispatchers.
type Config struct {
	// FromEmail is the address email notifications are sent from.
	FromEmail string
	// SMSNumber is the number SMS notifications are sent from.
	SMSNumber string
	// RatePerSec caps outbound sends across channels. 0 means unlimited.
	RatePerSec int
}

// Sender is the base dispatchers build on: it renders message templates,
// applies the outbound rate limit, and converts delivery errors into
// failed DispatchResults so a transport problem never aborts the run.
type Sender struct {
	svc     Service
	cfg     Config
	limiter *rate.Limiter
}

func NewSender(svc Service, cfg Config) *Sender {
	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	return &Sender{svc: svc, cfg: cfg, limiter: limiter}
}

// RenderTemplate executes a text/template body against data.
func (s *Sender) RenderTemplate(tmpl string, data any) (string, error) {
	t, err := template.New("message").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// SendEmail dispatches an email and reports the outcome as a
// DispatchResult.
func (s *Sender) SendEmail(ctx context.Context, to, subject, body string) notification.DispatchResult {
	if err := s.wait(ctx); err != nil {
		return failedResult(body, to, err)
	}
	details, err := s.svc.SendEmail(ctx, s.cfg.FromEmail, to, subject, body)
	if err != nil {
		return failedResult(body, to, err)
	}
	return notification.DispatchResult{
		Successful:      true,
		MessageContent:  body,
		Recipient:       to,
		DeliveryDetails: details,
	}
}

// SendSMS dispatches a text message and reports the outcome as a
// DispatchResult.
func (s *Sender) SendSMS(ctx context.Context, to, body string) notification.DispatchResult {
	if err := s.wait(ctx); err != nil {
		return failedResult(body, to, err)
	}
	details, err := s.svc.SendSMS(ctx, s.cfg.SMSNumber, to, body)
	if err != nil {
		return failedResult(body, to, err)
	}
	return notification.DispatchResult{
		Successful:      true,
		MessageContent:  body,
		Recipient:       to,
		DeliveryDetails: details,
	}
}

func (s *Sender) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

func failedResult(body, to string, err error) notification.DispatchResult {
	msg := err.Error()
	var de *Error
	if errors.As(err, &de) {
		msg = de.Response
	}
	return notification.DispatchResult{
		Successful:     false,
		MessageContent: body,
		Recipient:      to,
		ErrorMessage:   msg,
	}
}
