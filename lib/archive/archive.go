// Package archive bundles downloaded log files into AES-256 encrypted
// zip archives.
package archive

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"getlog/lib/apperr"
	"getlog/lib/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yeka/zip"
)

const passwordLength = 10

// NewPassword derives a short shared password for a job's archives.
// Every part of one job uses the same password so the recipient gets a
// single credential.
func NewPassword() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return raw[:passwordLength]
}

// Builder writes encrypted archives into a working directory.
type Builder struct {
	Dir    string
	Logger *logrus.Logger
}

func NewBuilder(dir string, logger *logrus.Logger) *Builder {
	return &Builder{Dir: dir, Logger: logger}
}

// BuildSingle writes <jobName>.zip containing every file. Used when the
// whole job fits in one archive.
func (b *Builder) BuildSingle(jobName, password string, files []models.DownloadedFile) (string, error) {
	return b.build(jobName+".zip", password, files)
}

// BuildPart writes <jobName>_part<number>.zip for jobs split across
// multiple archives.
func (b *Builder) BuildPart(jobName string, number int, password string, files []models.DownloadedFile) (models.ArchivePart, error) {
	zipPath, err := b.build(jobName+"_part"+strconv.Itoa(number)+".zip", password, files)
	if err != nil {
		return models.ArchivePart{}, err
	}
	return models.ArchivePart{Number: number, ZipPath: zipPath, Password: password}, nil
}

// build streams each file into an AES-256 encrypted entry keyed by its
// archive-relative path.
func (b *Builder) build(name, password string, files []models.DownloadedFile) (string, error) {
	if len(files) == 0 {
		return "", apperr.New(apperr.KindArchive, "no files to archive into %s", name)
	}

	zipPath := filepath.Join(b.Dir, name)
	out, err := os.Create(zipPath)
	if err != nil {
		return "", apperr.Wrap(err, apperr.KindArchive, "failed to create archive %s", zipPath)
	}

	writer := zip.NewWriter(out)
	for _, file := range files {
		if err := addEntry(writer, file, password); err != nil {
			writer.Close()
			out.Close()
			os.Remove(zipPath)
			return "", err
		}
	}

	if err := writer.Close(); err != nil {
		out.Close()
		os.Remove(zipPath)
		return "", apperr.Wrap(err, apperr.KindArchive, "failed to finalize archive %s", zipPath)
	}
	if err := out.Close(); err != nil {
		os.Remove(zipPath)
		return "", apperr.Wrap(err, apperr.KindArchive, "failed to flush archive %s", zipPath)
	}

	b.Logger.WithFields(logrus.Fields{
		"archive":   zipPath,
		"files":     len(files),
		"operation": "build",
	}).Info("Encrypted archive written")

	return zipPath, nil
}

func addEntry(writer *zip.Writer, file models.DownloadedFile, password string) error {
	source, err := os.Open(file.LocalPath)
	if err != nil {
		return apperr.Wrap(err, apperr.KindArchive, "failed to open %s for archiving", file.LocalPath)
	}
	defer source.Close()

	entry, err := writer.Encrypt(file.RelativePath, password, zip.AES256Encryption)
	if err != nil {
		return apperr.Wrap(err, apperr.KindArchive, "failed to add archive entry %s", file.RelativePath)
	}

	if _, err := io.Copy(entry, source); err != nil {
		return apperr.Wrap(err, apperr.KindArchive, "failed to write archive entry %s", file.RelativePath)
	}
	return nil
}
