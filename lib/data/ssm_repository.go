package data

import (
	"context"
	"encoding/json"

	"getlog/lib/apperr"
	"getlog/lib/constants"
	"getlog/lib/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/sirupsen/logrus"
)

type ConfigRepository interface {
	GetParameter(ctx context.Context, name string) (string, error)
	GetSystemConfig(ctx context.Context, system string) (*models.SystemConfig, error)
}

type SSMClientInterface interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type SSMDao struct {
	SSM    SSMClientInterface
	Logger *logrus.Logger
}

// GetParameter fetches a decrypted parameter value.
func (dao *SSMDao) GetParameter(ctx context.Context, name string) (string, error) {
	dao.Logger.WithFields(logrus.Fields{
		"parameter": name,
		"operation": "GetParameter",
	}).Debug("Fetching SSM parameter")

	output, err := dao.SSM.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", apperr.Wrap(err, apperr.KindConfig, "failed to get SSM parameter %s", name)
	}
	if output.Parameter == nil || output.Parameter.Value == nil {
		return "", apperr.New(apperr.KindConfig, "SSM parameter %s has no value", name)
	}

	return *output.Parameter.Value, nil
}

// GetSystemConfig fetches and parses the server topology for a system.
func (dao *SSMDao) GetSystemConfig(ctx context.Context, system string) (*models.SystemConfig, error) {
	value, err := dao.GetParameter(ctx, constants.ConfigParamPrefix+system)
	if err != nil {
		return nil, err
	}

	var config models.SystemConfig
	if err := json.Unmarshal([]byte(value), &config); err != nil {
		return nil, apperr.Wrap(err, apperr.KindConfig, "malformed config for system %s", system)
	}
	if len(config.Servers) == 0 {
		return nil, apperr.New(apperr.KindConfig, "no servers configured for system %s", system)
	}

	return &config, nil
}
