package main

import (
	"testing"

	"getlog/lib/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setCompleteEnvironment(t *testing.T) {
	t.Helper()
	t.Setenv("BUCKET_NAME", "getlog-mail")
	t.Setenv("INTERNAL_DOMAIN", "corp.example.com")
	t.Setenv("TEAMS_API_URL", "https://relay.example.com/teams/message")
}

func Test_ValidateEnvironment_Complete(t *testing.T) {
	//Arrange
	setCompleteEnvironment(t)

	//Act
	err := validateEnvironment()

	//Assert
	assert.NoError(t, err)
}

func Test_ValidateEnvironment_SESFallbackSatisfiesNotificationChannel(t *testing.T) {
	setCompleteEnvironment(t)
	t.Setenv("TEAMS_API_URL", "")
	t.Setenv("SES_SOURCE_EMAIL", "noreply@example.com")

	err := validateEnvironment()

	assert.NoError(t, err)
}

func Test_ValidateEnvironment_NoNotificationChannel(t *testing.T) {
	setCompleteEnvironment(t)
	t.Setenv("TEAMS_API_URL", "")
	t.Setenv("SES_SOURCE_EMAIL", "")

	err := validateEnvironment()

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConfig))
	assert.Contains(t, err.Error(), "notification channel")
}

func Test_ValidateEnvironment_MissingDomain(t *testing.T) {
	setCompleteEnvironment(t)
	t.Setenv("INTERNAL_DOMAIN", "")

	err := validateEnvironment()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "INTERNAL_DOMAIN")
}
