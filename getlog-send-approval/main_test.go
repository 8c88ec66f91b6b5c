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
	t.Setenv("TEAMS_API_URL", "https://relay.example.com/teams/message")
	t.Setenv("TEAMS_TEAM_NAME", "ops-team")
	t.Setenv("TEAMS_CHANNEL_NAME", "approvals")
	t.Setenv("ERROR_NOTIFICATION_TEAM_NAME", "ops-team")
	t.Setenv("ERROR_NOTIFICATION_CHANNEL_NAME", "log-requests")
	t.Setenv("APPROVAL_SENDER_EMAIL", "approve@example.com")
}

func Test_ValidateEnvironment_Complete(t *testing.T) {
	//Arrange
	setCompleteEnvironment(t)

	//Act
	err := validateEnvironment()

	//Assert
	assert.NoError(t, err)
}

func Test_ValidateEnvironment_ReportsEveryMissingVariable(t *testing.T) {
	setCompleteEnvironment(t)
	t.Setenv("TEAMS_API_URL", "")
	t.Setenv("APPROVAL_SENDER_EMAIL", "")

	err := validateEnvironment()

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConfig))
	assert.Contains(t, err.Error(), "TEAMS_API_URL")
	assert.Contains(t, err.Error(), "APPROVAL_SENDER_EMAIL")
}
