package common

// EmailSender abstracts outbound mail so notifications can be faked in tests.
type EmailSender interface {
	Send(to, subject, html string) error
}

// InMemoryEmail captures sent messages for assertions in tests.
type InMemoryEmail struct {
	Outbox []Email
}

// Email is one captured outbound message.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// Send records the email in memory.
func (m *InMemoryEmail) Send(to, subject, html string) error {
	if m == nil {
		return nil
	}
	m.Outbox = append(m.Outbox, Email{To: to, Subject: subject, HTML: html})
	return nil
}

// NopEmailSender discards every message. Used when notifications are disabled.
type NopEmailSender struct{}

// Send implements EmailSender.
func (NopEmailSender) Send(string, string, string) error { return nil }
