package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const simpleEML = "From: Alice Example <alice@example.com>\r\n" +
	"To: support@example.com\r\n" +
	"Subject: Refund for invoice 1234\r\n" +
	"Date: Mon, 1 Jan 2024 10:00:00 +0000\r\n" +
	"Message-ID: <simple123@example.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"I was billed twice this month.\r\n"

const multipartEML = `From: bob@example.com
To: support@example.com
Subject: =?UTF-8?Q?Probl=C3=A8me_de_connexion?=
Date: Tue, 2 Jan 2024 08:30:00 +0100
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/html; charset=utf-8

<html><body><h1>Login broken</h1><p>I cannot sign in &amp; reset fails.</p><script>alert(1)</script></body></html>
--inner--

--outer
Content-Type: application/pdf
Content-Disposition: attachment; filename="screenshot.pdf"
Content-Transfer-Encoding: base64

JVBERi0xLjQK
--outer--
`

const windows1252EML = "From: carol@example.com\r\n" +
	"Subject: Feedback\r\n" +
	"Content-Type: text/plain; charset=windows-1252\r\n" +
	"\r\n" +
	"Great caf\xe9 service!\r\n"

const bareEML = "Content-Type: text/plain\r\n\r\nNo headers at all.\r\n"

func TestParseEML_SimpleEmail(t *testing.T) {
	parsed, err := ParseEML(strings.NewReader(simpleEML))

	require.NoError(t, err, "Should parse simple email without error")
	assert.Equal(t, "Refund for invoice 1234", parsed.Subject)
	assert.Equal(t, "alice@example.com", parsed.Sender)
	assert.Equal(t, "Alice Example", parsed.SenderName)
	assert.Equal(t, "<simple123@example.com>", parsed.MessageID)
	assert.Contains(t, parsed.BodyText, "billed twice")
	assert.Empty(t, parsed.BodyHTML)
	assert.Equal(t, 0, parsed.Attachments)
	assert.Equal(t, 2024, parsed.Date.Year())
	assert.Equal(t, time.January, parsed.Date.Month())
}

func TestParseEML_HTMLOnlyWithAttachment(t *testing.T) {
	parsed, err := ParseEML(strings.NewReader(multipartEML))

	require.NoError(t, err)
	assert.Equal(t, "Problème de connexion", parsed.Subject, "MIME-encoded subject should be decoded")
	assert.Empty(t, parsed.BodyText)
	assert.Contains(t, parsed.BodyHTML, "<h1>Login broken</h1>")
	assert.Equal(t, 1, parsed.Attachments)

	body := parsed.Body()
	assert.Contains(t, body, "Login broken")
	assert.Contains(t, body, "I cannot sign in & reset fails.")
	assert.NotContains(t, body, "<")
	assert.NotContains(t, body, "alert", "Script content must be dropped")
}

func TestParseEML_Windows1252Charset(t *testing.T) {
	parsed, err := ParseEML(strings.NewReader(windows1252EML))

	require.NoError(t, err)
	assert.Contains(t, parsed.BodyText, "Great café service!")
}

func TestToEmailCreateDefaults(t *testing.T) {
	parsed, err := ParseEML(strings.NewReader(bareEML))
	require.NoError(t, err)

	in := parsed.ToEmailCreate()
	assert.Equal(t, DefaultSender, in.FromAddress)
	assert.Equal(t, DefaultSubject, in.Subject)
	assert.Equal(t, "No headers at all.", in.Body)
}

func TestToEmailCreate(t *testing.T) {
	parsed, err := ParseEML(strings.NewReader(simpleEML))
	require.NoError(t, err)

	in := parsed.ToEmailCreate()
	assert.Equal(t, "alice@example.com", in.FromAddress)
	assert.Equal(t, "Refund for invoice 1234", in.Subject)
	assert.Equal(t, "I was billed twice this month.", in.Body)
	assert.NoError(t, in.Validate())
}

func TestParseEMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "message.eml")
	require.NoError(t, os.WriteFile(path, []byte(simpleEML), 0644))

	parsed, err := ParseEMLFile(path)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", parsed.Sender)
}

func TestParseEMLFile_Missing(t *testing.T) {
	_, err := ParseEMLFile(filepath.Join(t.TempDir(), "does-not-exist.eml"))

	assert.Error(t, err, "Should return error for non-existent file")
	assert.Contains(t, err.Error(), "failed to open file")
}

func TestDecodeMIMEWord(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"UTF-8 Quoted-Printable", "=?UTF-8?Q?Invitaci=C3=B3n?=", "Invitación"},
		{"UTF-8 Base64", "=?UTF-8?B?SW52aXRhY2nDs24=?=", "Invitación"},
		{"ISO-8859-1", "=?ISO-8859-1?Q?caf=E9?=", "café"},
		{"Plain text (no encoding)", "Simple Subject", "Simple Subject"},
		{"Empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, decodeMIMEWord(tt.input))
		})
	}
}

func TestHTMLToText(t *testing.T) {
	got := htmlToText("<p>First   line</p><p>Second<br>Third</p><style>p{color:red}</style>")
	assert.Equal(t, "First line\nSecond\nThird", got)
	assert.Equal(t, "", htmlToText(""))
}
