// Package notify delivers workflow notifications: Teams messages
// through the internal Teams relay API, with a plain SES mail fallback
// when no relay is configured.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"getlog/lib/apperr"

	"github.com/sirupsen/logrus"
)

const (
	// Delivery modes understood by the Teams relay API.
	ModeDirectMessage = 1
	ModeChannel       = 2

	requestTimeout = 30 * time.Second
)

// Mention marks a user to be @-mentioned in a Teams message.
type Mention struct {
	MentionType  string `json:"mention_type"`
	EmailAddress string `json:"email_address"`
}

// Message is the relay API request body. Mode 1 targets users by mail
// address, mode 2 targets a team channel.
type Message struct {
	Mode           int       `json:"mode"`
	EmailAddresses []string  `json:"email_addresses,omitempty"`
	TeamName       string    `json:"team_name,omitempty"`
	ChannelName    string    `json:"channel_name,omitempty"`
	MessageText    string    `json:"message_text"`
	ContentType    string    `json:"content_type"`
	Subject        string    `json:"subject,omitempty"`
	Mentions       []Mention `json:"mentions"`
}

// TeamsClient posts messages to the Teams relay API.
type TeamsClient struct {
	URL    string
	HTTP   *http.Client
	Logger *logrus.Logger
}

func NewTeamsClient(url string, logger *logrus.Logger) *TeamsClient {
	return &TeamsClient{
		URL:    url,
		HTTP:   &http.Client{Timeout: requestTimeout},
		Logger: logger,
	}
}

// Send posts one message. Non-2xx responses are parsed for the relay's
// error message and surfaced as a notification error.
func (c *TeamsClient) Send(ctx context.Context, msg Message) error {
	if msg.Mentions == nil {
		msg.Mentions = []Mention{}
	}

	var body bytes.Buffer
	encoder := json.NewEncoder(&body)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(msg); err != nil {
		return apperr.Wrap(err, apperr.KindNotify, "failed to encode teams message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, &body)
	if err != nil {
		return apperr.Wrap(err, apperr.KindNotify, "failed to build teams request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return apperr.Wrap(err, apperr.KindNotify, "teams api request failed")
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		c.Logger.WithFields(logrus.Fields{
			"mode":      msg.Mode,
			"status":    resp.StatusCode,
			"operation": "Send",
		}).Info("Teams message delivered")
		return nil
	}

	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil || parsed.Message == "" {
		return apperr.New(apperr.KindNotify, "teams api returned status %d with unreadable body", resp.StatusCode)
	}
	return apperr.New(apperr.KindNotify, "teams api returned status %d: %s", resp.StatusCode, parsed.Message)
}
