package data

import (
	"context"
	"errors"
	"testing"

	"getlog/lib/apperr"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func String(v string) *string {
	return &v
}

type MockSSMClient struct {
	Values map[string]string
	Err    error
}

func (m *MockSSMClient) GetParameter(ctx context.Context, input *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	value, ok := m.Values[*input.Name]
	if !ok {
		return nil, errors.New("ParameterNotFound")
	}
	return &ssm.GetParameterOutput{
		Parameter: &types.Parameter{Name: input.Name, Value: String(value)},
	}, nil
}

func newSSMDao(values map[string]string, err error) *SSMDao {
	return &SSMDao{
		SSM:    &MockSSMClient{Values: values, Err: err},
		Logger: logrus.New(),
	}
}

func Test_GetParameter_Success(t *testing.T) {
	//Arrange
	dao := newSSMDao(map[string]string{"/get-log-api/config/billing": "value1"}, nil)

	//Act
	actual, err := dao.GetParameter(context.Background(), "/get-log-api/config/billing")

	//Assert
	assert.NoError(t, err)
	assert.Equal(t, "value1", actual)
}

func Test_GetParameter_Failure(t *testing.T) {
	//Arrange
	dao := newSSMDao(nil, errors.New("error in GetParameter"))

	//Act
	_, err := dao.GetParameter(context.Background(), "/get-log-api/config/billing")

	//Assert
	assert.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConfig))
}

func Test_GetSystemConfig_Success(t *testing.T) {
	//Arrange
	configJSON := `{"servers":{"web01":{"port":2222,"log_paths":["/var/log/app/app-yyyy-mm-dd.log"]},"db01":{"log_paths":["/var/log/postgres.log"]}}}`
	dao := newSSMDao(map[string]string{"/get-log-api/config/billing": configJSON}, nil)

	//Act
	config, err := dao.GetSystemConfig(context.Background(), "billing")

	//Assert
	assert.NoError(t, err)
	assert.Len(t, config.Servers, 2)
	assert.Equal(t, 2222, config.Servers["web01"].Port)
	assert.Equal(t, []string{"/var/log/postgres.log"}, config.Servers["db01"].LogPaths)
}

func Test_GetSystemConfig_MalformedJSON(t *testing.T) {
	dao := newSSMDao(map[string]string{"/get-log-api/config/billing": "not json"}, nil)

	_, err := dao.GetSystemConfig(context.Background(), "billing")

	assert.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConfig))
}

func Test_GetSystemConfig_NoServers(t *testing.T) {
	dao := newSSMDao(map[string]string{"/get-log-api/config/billing": `{"servers":{}}`}, nil)

	_, err := dao.GetSystemConfig(context.Background(), "billing")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no servers configured")
}
