package publish

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"getlog/lib/apperr"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockS3 struct {
	uploadedKeys  []string
	uploadedPaths []string
	uploadErr     error
	presignedKey  string
	presignErr    error
}

func (m *mockS3) GetObject(context.Context, string) ([]byte, error) { return nil, nil }

func (m *mockS3) UploadFile(_ context.Context, key, localPath string) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	m.uploadedKeys = append(m.uploadedKeys, key)
	m.uploadedPaths = append(m.uploadedPaths, localPath)
	return nil
}

func (m *mockS3) GenerateDownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	if m.presignErr != nil {
		return "", m.presignErr
	}
	m.presignedKey = key
	return "https://bucket.s3.amazonaws.com/" + key + "?X-Amz-Signature=abc", nil
}

func (m *mockS3) DeleteObject(context.Context, string) error { return nil }

func tempZip(t *testing.T, name string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(zipPath, []byte("zipbytes"), 0600))
	return zipPath
}

func Test_Publish_SharePathReference(t *testing.T) {
	//Arrange
	s3 := &mockS3{}
	publisher := NewPublisher(s3, `\\fileshare\logs`, logrus.New())

	//Act
	ref, err := publisher.Publish(context.Background(), tempZip(t, "job-abc_part1.zip"))

	//Assert
	require.NoError(t, err)
	assert.Equal(t, `\\fileshare\logs\job-abc_part1.zip`, ref)
	assert.Equal(t, []string{"logs/job-abc_part1.zip"}, s3.uploadedKeys)
}

func Test_Publish_PresignedURLWithoutShare(t *testing.T) {
	s3 := &mockS3{}
	publisher := NewPublisher(s3, "", logrus.New())

	ref, err := publisher.Publish(context.Background(), tempZip(t, "job-abc.zip"))

	require.NoError(t, err)
	assert.Contains(t, ref, "logs/job-abc.zip")
	assert.Contains(t, ref, "X-Amz-Signature")
	assert.Equal(t, "logs/job-abc.zip", s3.presignedKey)
}

func Test_Publish_UploadFailure(t *testing.T) {
	s3 := &mockS3{uploadErr: errors.New("AccessDenied")}
	publisher := NewPublisher(s3, "", logrus.New())

	_, err := publisher.Publish(context.Background(), tempZip(t, "job.zip"))

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPublish))
	assert.Empty(t, s3.uploadedKeys)
}

func Test_Publish_PresignFailure(t *testing.T) {
	s3 := &mockS3{presignErr: errors.New("signer unavailable")}
	publisher := NewPublisher(s3, "", logrus.New())

	_, err := publisher.Publish(context.Background(), tempZip(t, "job.zip"))

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPublish))
}
