// Package publish uploads finished archives and produces the reference
// a requester uses to retrieve them.
package publish

import (
	"context"
	"path/filepath"
	"time"

	"getlog/lib/apperr"
	"getlog/lib/clients"
	"getlog/lib/constants"

	"github.com/sirupsen/logrus"
)

const presignExpiry = time.Hour

// Publisher pushes archives to the bucket and renders download
// references. When SharePath is set the bucket is mirrored to a file
// share and the reference is a UNC path; otherwise a presigned URL is
// handed out.
type Publisher struct {
	S3        clients.S3ClientInterface
	SharePath string
	Logger    *logrus.Logger
}

func NewPublisher(s3 clients.S3ClientInterface, sharePath string, logger *logrus.Logger) *Publisher {
	return &Publisher{S3: s3, SharePath: sharePath, Logger: logger}
}

// Publish uploads one archive and returns the reference to hand to the
// requester.
func (p *Publisher) Publish(ctx context.Context, zipPath string) (string, error) {
	name := filepath.Base(zipPath)
	key := constants.ArchiveKeyPrefix + name

	if err := p.S3.UploadFile(ctx, key, zipPath); err != nil {
		return "", apperr.Wrap(err, apperr.KindPublish, "failed to upload archive %s", name)
	}

	p.Logger.WithFields(logrus.Fields{
		"key":       key,
		"archive":   name,
		"operation": "Publish",
	}).Info("Archive uploaded")

	if p.SharePath != "" {
		return p.SharePath + `\` + name, nil
	}

	url, err := p.S3.GenerateDownloadURL(ctx, key, presignExpiry)
	if err != nil {
		return "", apperr.Wrap(err, apperr.KindPublish, "failed to presign archive %s", name)
	}
	return url, nil
}
