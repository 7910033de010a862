package parser

import (
	"strings"
	"time"

	"github.com/felo/classifier-console/internal/api"
)

// Defaults applied when a message lacks a sender or subject
const (
	DefaultSender  = "unknown@email.com"
	DefaultSubject = "No Subject"
)

// ParsedEmail is the subset of a message needed to submit it for classification
type ParsedEmail struct {
	MessageID   string
	Subject     string
	Sender      string
	SenderName  string
	Date        time.Time
	BodyText    string
	BodyHTML    string
	Attachments int
}

// Body returns the plain text body, falling back to the HTML part
// stripped of markup
func (p *ParsedEmail) Body() string {
	if strings.TrimSpace(p.BodyText) != "" {
		return strings.TrimSpace(p.BodyText)
	}
	return htmlToText(p.BodyHTML)
}

// ToEmailCreate maps the message onto a submission payload
func (p *ParsedEmail) ToEmailCreate() api.EmailCreate {
	in := api.EmailCreate{
		FromAddress: p.Sender,
		Subject:     strings.TrimSpace(p.Subject),
		Body:        p.Body(),
	}
	if in.FromAddress == "" {
		in.FromAddress = DefaultSender
	}
	if in.Subject == "" {
		in.Subject = DefaultSubject
	}
	return in
}
