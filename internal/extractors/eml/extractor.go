// Package eml provides an Extractor for RFC 822 mail files.
package eml

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"os"
	"strings"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
	"github.com/custodia-labs/redleaf/internal/extractors/html"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles EML documents.
type Extractor struct{}

// New creates a new EML extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedTypes returns the file types this extractor handles.
func (e *Extractor) SupportedTypes() []domain.FileType {
	return []domain.FileType{domain.FileTypeEML}
}

// Extract parses the message headers and body. The body is the first
// text/plain part; when that is empty the first text/html part is reduced
// to text in generic mode.
func (e *Extractor) Extract(_ context.Context, path string, _ domain.ExtractOptions) (*domain.Extraction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}

	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", domain.ErrExtraction, path, err)
	}

	meta := Headers(msg.Header)

	var plain, markup string
	collectBodies(textproto.MIMEHeader(msg.Header), msg.Body, &plain, &markup)

	body := strings.TrimSpace(plain)
	if body == "" && markup != "" {
		body, err = html.Text(strings.NewReader(markup), domain.HTMLModeGeneric)
		if err != nil {
			return nil, fmt.Errorf("%w: reading html body of %s: %v", domain.ErrExtraction, path, err)
		}
	}

	return &domain.Extraction{
		Pages:     map[int]string{1: body},
		PageCount: 1,
		Email:     meta,
	}, nil
}

// Headers decodes the address, subject and date headers of a message.
func Headers(h mail.Header) *domain.EmailMetadata {
	meta := &domain.EmailMetadata{
		From:    decodeHeader(h.Get("From")),
		To:      decodeHeader(h.Get("To")),
		Cc:      decodeHeader(h.Get("Cc")),
		Subject: decodeHeader(h.Get("Subject")),
	}

	if raw := h.Get("Date"); raw != "" {
		if t, err := mail.ParseDate(raw); err == nil {
			meta.SentAt = &t
		}
	}

	return meta
}

// decodeHeader decodes RFC 2047 encoded words.
func decodeHeader(header string) string {
	if header == "" {
		return ""
	}
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(header)
	if err != nil {
		return header // Return original if decoding fails
	}
	return decoded
}

// collectBodies walks a part tree and keeps the first plain and the first
// html body it sees.
func collectBodies(h textproto.MIMEHeader, r io.Reader, plain, markup *string) {
	contentType := h.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		if params["boundary"] == "" {
			return
		}
		mr := multipart.NewReader(r, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err != nil {
				return
			}
			collectBodies(part.Header, part, plain, markup)
			part.Close()
		}
	}

	switch {
	case mediaType == "text/plain" && *plain == "":
		*plain = readBody(h, r)
	case mediaType == "text/html" && *markup == "":
		*markup = readBody(h, r)
	}
}

// readBody undoes the part's transfer encoding. multipart.Reader already
// decodes quoted-printable parts and drops the header when it does.
func readBody(h textproto.MIMEHeader, r io.Reader) string {
	switch strings.ToLower(strings.TrimSpace(h.Get("Content-Transfer-Encoding"))) {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	}

	body, err := io.ReadAll(r)
	if err != nil && len(body) == 0 {
		return ""
	}
	return strings.ToValidUTF8(string(body), "")
}
