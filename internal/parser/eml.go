package parser

import (
	"fmt"
	"html"
	"io"
	"mime"
	"os"
	"regexp"
	"strings"

	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/encoding/charmap"
)

func init() {
	// Register additional charsets that are commonly used in emails
	charset.RegisterEncoding("windows-1252", charmap.Windows1252)
	charset.RegisterEncoding("iso-8859-1", charmap.ISO8859_1)
	charset.RegisterEncoding("iso-8859-15", charmap.ISO8859_15)
}

var (
	stripPolicy = bluemonday.StrictPolicy()

	blockTags   = regexp.MustCompile(`(?i)<\s*(br|/p|/div|/h[1-6]|/li|/tr)\s*/?>`)
	blankLines  = regexp.MustCompile(`\n{3,}`)
	inlineSpace = regexp.MustCompile(`[ \t]+`)
)

// ParseEMLFile parses an .eml file
func ParseEMLFile(filePath string) (*ParsedEmail, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return ParseEML(f)
}

// ParseEML parses a message from r
func ParseEML(r io.Reader) (*ParsedEmail, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail reader: %w", err)
	}
	defer mr.Close()

	parsed := &ParsedEmail{}
	header := mr.Header

	parsed.MessageID = header.Get("Message-Id")
	parsed.Subject = decodeMIMEWord(header.Get("Subject"))

	if fromAddrs, err := header.AddressList("From"); err == nil && len(fromAddrs) > 0 {
		parsed.Sender = fromAddrs[0].Address
		parsed.SenderName = fromAddrs[0].Name
	}

	if date, err := header.Date(); err == nil {
		parsed.Date = date
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read part: %w", err)
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to read body: %w", err)
			}

			if strings.HasPrefix(contentType, "text/plain") || contentType == "" {
				if parsed.BodyText == "" {
					parsed.BodyText = string(body)
				}
			} else if strings.HasPrefix(contentType, "text/html") {
				parsed.BodyHTML = string(body)
			}

		case *mail.AttachmentHeader:
			parsed.Attachments++
		}
	}

	return parsed, nil
}

// htmlToText strips markup, keeping line breaks at block boundaries
func htmlToText(s string) string {
	if s == "" {
		return ""
	}
	s = blockTags.ReplaceAllString(s, "$0\n")
	s = html.UnescapeString(stripPolicy.Sanitize(s))

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(inlineSpace.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// decodeMIMEWord decodes MIME-encoded words (RFC 2047)
func decodeMIMEWord(s string) string {
	dec := new(mime.WordDecoder)
	dec.CharsetReader = charset.Reader
	decoded, err := dec.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}
