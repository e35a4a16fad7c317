// Package mailparse reads raw RFC 822 / MIME messages into the parts the
// email scorer looks at.
package mailparse

import (
	"fmt"
	"io"
	"strings"

	"github.com/jaytaylor/html2text"
	"github.com/jhillyerd/enmime"

	"github.com/trustnet/trustnet-go/internal/features"
)

// Message is the scoring-relevant view of an email.
type Message struct {
	Subject     string
	From        string
	Body        string
	HTML        bool
	Attachments int
}

// Parse reads a complete message. Bodies that only have an HTML part are
// converted to plain text.
func Parse(r io.Reader) (Message, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return Message{}, fmt.Errorf("parse message: %w", err)
	}

	m := Message{
		Subject:     env.GetHeader("Subject"),
		From:        env.GetHeader("From"),
		Body:        strings.TrimSpace(env.Text),
		HTML:        env.HTML != "",
		Attachments: len(env.Attachments),
	}
	if m.Body == "" && env.HTML != "" {
		text, err := html2text.FromString(env.HTML, html2text.Options{})
		if err != nil {
			return Message{}, fmt.Errorf("convert html body: %w", err)
		}
		m.Body = strings.TrimSpace(text)
	}
	return m, nil
}

// Email returns the message as feature extractor input.
func (m Message) Email() features.Email {
	return features.Email{Subject: m.Subject, Body: m.Body, Attachments: m.Attachments}
}
