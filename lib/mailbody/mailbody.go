// Package mailbody retrieves raw MIME messages stored by the SES
// receipt rule and extracts their plain-text body.
package mailbody

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"getlog/lib/apperr"
	"getlog/lib/clients"

	"github.com/sirupsen/logrus"
)

// Reader fetches a stored message by SES message ID and returns its
// decoded text/plain body.
type Reader struct {
	S3     clients.S3ClientInterface
	Prefix string
	Logger *logrus.Logger
}

func NewReader(s3 clients.S3ClientInterface, prefix string, logger *logrus.Logger) *Reader {
	return &Reader{S3: s3, Prefix: prefix, Logger: logger}
}

// Body downloads the raw message under <prefix><messageID> and returns
// its plain-text content.
func (r *Reader) Body(ctx context.Context, messageID string) (string, error) {
	key := r.Prefix + messageID

	raw, err := r.S3.GetObject(ctx, key)
	if err != nil {
		return "", apperr.Wrap(err, apperr.KindInternal, "failed to fetch stored mail %s", key)
	}

	r.Logger.WithFields(logrus.Fields{
		"key":       key,
		"size":      len(raw),
		"operation": "Body",
	}).Info("Stored mail retrieved")

	body, err := ExtractText(raw)
	if err != nil {
		return "", apperr.Wrap(err, apperr.KindValidation, "stored mail %s has no readable text body", key)
	}
	return body, nil
}

// ExtractText pulls the first text/plain part out of a raw RFC 5322
// message. Non-multipart messages return the whole decoded body.
func ExtractText(raw []byte) (string, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}

	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", err
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return textFromMultipart(msg.Body, params["boundary"])
	}

	return decodePart(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
}

func textFromMultipart(body io.Reader, boundary string) (string, error) {
	if boundary == "" {
		return "", apperr.New(apperr.KindValidation, "multipart message has no boundary")
	}

	reader := multipart.NewReader(body, boundary)
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		partType, params, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			continue
		}

		// Nested multipart/alternative wraps the text part one level
		// down; recurse rather than flatten.
		if strings.HasPrefix(partType, "multipart/") {
			if text, err := textFromMultipart(part, params["boundary"]); err == nil {
				return text, nil
			}
			continue
		}

		if partType == "text/plain" {
			return decodePart(part, part.Header.Get("Content-Transfer-Encoding"))
		}
	}

	return "", apperr.New(apperr.KindValidation, "no text/plain part found")
}

func decodePart(body io.Reader, transferEncoding string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "base64":
		body = base64.NewDecoder(base64.StdEncoding, body)
	case "quoted-printable":
		body = quotedprintable.NewReader(body)
	}

	decoded, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
