// Package main implements the log-request intake Lambda.
//
// SES receives a request mail, stores it in S3 and invokes this
// function. The flow:
//  1. Fetch the stored mail body and pull out the request reason and
//     the retrieval period.
//  2. Build a validated request from the mail (sender = requester,
//     subject = target system).
//  3. Post an approval request to the approver Teams channel, carrying
//     a mailto draft link; sending that draft is the approval act.
//  4. Confirm intake to the requester on the notice channel.
//
// Validation problems trigger a correction-request notification so the
// requester can fix and resubmit; unexpected failures trigger a
// system-error notification asking for manual handling. The function
// never returns an error to the runtime: a retried invocation would
// just re-notify about the same broken mail.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"getlog/lib/apperr"
	"getlog/lib/clients"
	"getlog/lib/constants"
	"getlog/lib/extract"
	"getlog/lib/mailbody"
	"getlog/lib/models"
	"getlog/lib/notify"
	"getlog/lib/util"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Global variables for Lambda cold start optimization
var (
	logger     *logrus.Logger
	isLocal    bool
	mailReader *mailbody.Reader
	extractor  *extract.Extractor
	notifier   *notify.Notifier
)

// requiredEnv maps each required variable to a short description used
// in the error message when it is missing.
var requiredEnv = map[string]string{
	"BUCKET_NAME":                     "S3 bucket holding inbound mail",
	"TEAMS_API_URL":                   "Teams relay API URL",
	"TEAMS_TEAM_NAME":                 "approver team",
	"TEAMS_CHANNEL_NAME":              "approver channel",
	"ERROR_NOTIFICATION_TEAM_NAME":    "notice team",
	"ERROR_NOTIFICATION_CHANNEL_NAME": "notice channel",
	"APPROVAL_SENDER_EMAIL":           "approval mail recipient",
}

func init() {
	isLocal, _ = strconv.ParseBool(os.Getenv("IS_LOCAL"))

	logger = logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	util.SetLogLevel(logger, os.Getenv("LOG_LEVEL"))

	logger.WithField("operation", "init").Info("Initializing log request intake Lambda")

	s3Client := clients.NewS3Client(isLocal, os.Getenv("BUCKET_NAME"))
	mailReader = mailbody.NewReader(s3Client, constants.ReceivedMailPrefix, logger)

	extractor = &extract.Extractor{
		Clock:  clockwork.NewRealClock(),
		Logger: logger,
	}

	notifier = &notify.Notifier{
		Teams:           notify.NewTeamsClient(os.Getenv("TEAMS_API_URL"), logger),
		ApprovalTeam:    os.Getenv("TEAMS_TEAM_NAME"),
		ApprovalChannel: os.Getenv("TEAMS_CHANNEL_NAME"),
		NoticeTeam:      os.Getenv("ERROR_NOTIFICATION_TEAM_NAME"),
		NoticeChannel:   os.Getenv("ERROR_NOTIFICATION_CHANNEL_NAME"),
		ApprovalSender:  os.Getenv("APPROVAL_SENDER_EMAIL"),
		SDTeamEmail:     os.Getenv("SD_TEAM_EMAIL"),
		Logger:          logger,
	}
}

func validateEnvironment() error {
	var missing []string
	for name, description := range requiredEnv {
		if os.Getenv(name) == "" {
			missing = append(missing, fmt.Sprintf("%s(%s)", name, description))
		}
	}
	if len(missing) > 0 {
		return apperr.New(apperr.KindConfig, "missing environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Handler processes one SES receipt event.
func Handler(ctx context.Context, event events.SimpleEmailEvent) (util.IntakeResponse, error) {
	logger.WithField("operation", "Handler").Info("Request started")

	sender, subject, err := process(ctx, event)
	if err != nil {
		status := apperr.StatusCode(err)
		logger.WithFields(logrus.Fields{
			"status":    status,
			"error":     err.Error(),
			"operation": "Handler",
		}).Error("Request failed")
		notifyFailure(ctx, status, err.Error(), sender, subject)
		return util.CreateErrorResponse(status, err.Error()), nil
	}

	logger.WithField("operation", "Handler").Info("Request succeeded")
	return util.CreateSuccessResponse("approval request sent"), nil
}

// process runs the intake flow and reports the sender/subject for error
// notifications even when parsing fails partway.
func process(ctx context.Context, event events.SimpleEmailEvent) (sender, subject string, err error) {
	if err := validateEnvironment(); err != nil {
		return "", "", err
	}

	if len(event.Records) == 0 {
		return "", "", apperr.New(apperr.KindValidation, "event carries no SES records")
	}

	mail := event.Records[0].SES.Mail
	sender = mail.Source
	subject = mail.CommonHeaders.Subject

	logger.WithFields(logrus.Fields{
		"messageId": mail.MessageID,
		"sender":    sender,
		"operation": "process",
	}).Info("SES event parsed")

	body, err := mailReader.Body(ctx, mail.MessageID)
	if err != nil {
		return sender, subject, err
	}

	reason, from, to, err := extractor.Extract(body)
	if err != nil {
		return sender, subject, err
	}

	request := models.LogRequest{
		Mail:     sender,
		Content:  reason,
		System:   subject,
		FromDate: from.Format(constants.DateLayout),
		ToDate:   to.Format(constants.DateLayout),
	}
	if err := request.Validate(); err != nil {
		return sender, subject, err
	}

	if err := notifier.SendApprovalRequest(ctx, request); err != nil {
		return sender, subject, err
	}

	if err := notifier.SendAcceptance(ctx, request); err != nil {
		return sender, subject, err
	}

	logger.WithFields(logrus.Fields{
		"system":    request.System,
		"from":      request.FromDate,
		"to":        request.ToDate,
		"operation": "process",
	}).Info("Approval request sent")

	return sender, subject, nil
}

// notifyFailure routes 4xx problems to a correction request and
// everything else to a system-error escalation. Best effort only.
func notifyFailure(ctx context.Context, status int, detail, sender, subject string) {
	if sender == "" || subject == "" {
		return
	}
	if status >= 400 && status < 500 {
		notifier.SendCorrectionRequest(ctx, detail, sender, subject)
		return
	}
	notifier.SendSystemError(ctx, sender, subject)
}

func main() {
	lambda.Start(Handler)
}
