package mailparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plainMessage = "From: Security Team <alerts@paypa1-support.com>\r\n" +
	"To: jo@example.com\r\n" +
	"Subject: URGENT: account suspended\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Verify your account now!\r\n"

const multipartMessage = "From: billing@example.com\r\n" +
	"Subject: Invoice\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=XYZ\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><body><p>Your invoice is attached.</p></body></html>\r\n" +
	"--XYZ\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=\"invoice.pdf\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"JVBERi0xLjQK\r\n" +
	"--XYZ--\r\n"

func TestParsePlain(t *testing.T) {
	m, err := Parse(strings.NewReader(plainMessage))
	require.NoError(t, err)

	assert.Equal(t, "URGENT: account suspended", m.Subject)
	assert.Contains(t, m.From, "alerts@paypa1-support.com")
	assert.Equal(t, "Verify your account now!", m.Body)
	assert.False(t, m.HTML)
	assert.Zero(t, m.Attachments)

	e := m.Email()
	assert.Equal(t, m.Subject, e.Subject)
	assert.Equal(t, m.Body, e.Body)
}

func TestParseHTMLWithAttachment(t *testing.T) {
	m, err := Parse(strings.NewReader(multipartMessage))
	require.NoError(t, err)

	assert.Equal(t, "Invoice", m.Subject)
	assert.True(t, m.HTML)
	assert.Equal(t, 1, m.Attachments)
	assert.Contains(t, m.Body, "Your invoice is attached.")
	assert.NotContains(t, m.Body, "<p>")
	assert.Equal(t, 1, m.Email().Attachments)
}
