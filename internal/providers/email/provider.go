package email

import "context"

// Provider delivers HTML mail.
type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
	SendTemplate(ctx context.Context, to []string, templateName string, data any) error
}

// NoOpProvider is used when SMTP is not configured.
type NoOpProvider struct{}

func (NoOpProvider) Send(context.Context, []string, string, string) error { return nil }

func (NoOpProvider) SendTemplate(context.Context, []string, string, any) error { return nil }
