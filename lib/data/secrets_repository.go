package data

import (
	"context"
	"encoding/json"

	"getlog/lib/apperr"
	"getlog/lib/constants"
	"getlog/lib/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/sirupsen/logrus"
)

type CredentialsRepository interface {
	GetCredentials(ctx context.Context, hostname string) (*models.Credentials, error)
}

type SecretsManagerClientInterface interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type SecretsDao struct {
	Secrets SecretsManagerClientInterface
	Logger  *logrus.Logger
}

// GetCredentials fetches SSH credentials for a hostname. The secret is
// JSON with a username plus either a password or a base64 PEM key.
func (dao *SecretsDao) GetCredentials(ctx context.Context, hostname string) (*models.Credentials, error) {
	secretID := constants.CredentialsSecretPrefix + hostname

	dao.Logger.WithFields(logrus.Fields{
		"hostname":  hostname,
		"operation": "GetCredentials",
	}).Debug("Fetching SSH credentials")

	output, err := dao.Secrets.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindCredential, "failed to get credentials for %s", hostname)
	}
	if output.SecretString == nil {
		return nil, apperr.New(apperr.KindCredential, "credentials for %s have no secret string", hostname)
	}

	var creds models.Credentials
	if err := json.Unmarshal([]byte(*output.SecretString), &creds); err != nil {
		return nil, apperr.Wrap(err, apperr.KindCredential, "malformed credentials for %s", hostname)
	}
	if creds.Username == "" {
		return nil, apperr.New(apperr.KindCredential, "credentials for %s are missing a username", hostname)
	}

	return &creds, nil
}
