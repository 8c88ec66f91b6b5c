// Package main implements the approved-request log processor Lambda.
//
// SES receives the approver's draft mail (produced by the intake
// Lambda's mailto link), stores it in S3 and invokes this function. The
// flow:
//  1. Fetch the stored approval mail and parse the embedded JSON
//     request out of its body.
//  2. Look up the target system's server topology in Parameter Store
//     and per-host SSH credentials in Secrets Manager.
//  3. Download the requested log files over SFTP, splitting the output
//     into encrypted archive parts when the temp volume would overflow.
//  4. Publish each archive and notify the requester with the download
//     references and the shared password.
//
// Failures notify the ops channel with a service-desk mention. The
// function reports errors in its payload instead of returning them, so
// the runtime does not retry a job that already escalated.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"getlog/lib/apperr"
	"getlog/lib/archive"
	"getlog/lib/clients"
	"getlog/lib/constants"
	"getlog/lib/data"
	"getlog/lib/extract"
	"getlog/lib/logjob"
	"getlog/lib/mailbody"
	"getlog/lib/models"
	"getlog/lib/notify"
	"getlog/lib/publish"
	"getlog/lib/transfer"
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
	runner     *logjob.Runner
	notifier   *notify.Notifier
	mailer     *notify.Mailer
)

var requiredEnv = map[string]string{
	"BUCKET_NAME":     "S3 bucket holding approval mail and archives",
	"INTERNAL_DOMAIN": "domain suffix for log source hosts",
}

func init() {
	isLocal, _ = strconv.ParseBool(os.Getenv("IS_LOCAL"))

	logger = logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	util.SetLogLevel(logger, os.Getenv("LOG_LEVEL"))

	logger.WithField("operation", "init").Info("Initializing log processor Lambda")

	s3Client := clients.NewS3Client(isLocal, os.Getenv("BUCKET_NAME"))
	mailReader = mailbody.NewReader(s3Client, constants.ApprovedMailPrefix, logger)

	runner = &logjob.Runner{
		Config: &data.SSMDao{
			SSM:    clients.NewSSMClient(isLocal),
			Logger: logger,
		},
		Credentials: &data.SecretsDao{
			Secrets: clients.NewSecretsManagerClient(isLocal),
			Logger:  logger,
		},
		Downloader:   transfer.NewEngine(logger, os.Getenv("INTERNAL_DOMAIN")),
		Archiver:     archive.NewBuilder(os.TempDir(), logger),
		Publisher:    publish.NewPublisher(s3Client, os.Getenv("STORAGE_GATEWAY_SHARE_PATH"), logger),
		TmpDir:       os.TempDir(),
		StorageLimit: constants.StorageLimitBytes,
		Clock:        clockwork.NewRealClock(),
		Logger:       logger,
	}

	notifier = &notify.Notifier{
		Teams:         notify.NewTeamsClient(os.Getenv("TEAMS_API_URL"), logger),
		NoticeTeam:    os.Getenv("ERROR_NOTIFICATION_TEAM_NAME"),
		NoticeChannel: os.Getenv("ERROR_NOTIFICATION_CHANNEL_NAME"),
		SDTeamEmail:   os.Getenv("SD_TEAM_EMAIL"),
		Logger:        logger,
	}

	mailer = notify.NewMailer(clients.NewSESClient(isLocal), os.Getenv("SES_SOURCE_EMAIL"), logger)
}

func validateEnvironment() error {
	var missing []string
	for name, description := range requiredEnv {
		if os.Getenv(name) == "" {
			missing = append(missing, fmt.Sprintf("%s(%s)", name, description))
		}
	}
	// One notification channel must exist: the Teams relay, or SES as
	// the plain-mail fallback.
	if os.Getenv("TEAMS_API_URL") == "" && os.Getenv("SES_SOURCE_EMAIL") == "" {
		missing = append(missing, "TEAMS_API_URL or SES_SOURCE_EMAIL(notification channel)")
	}
	if len(missing) > 0 {
		return apperr.New(apperr.KindConfig, "missing environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Handler processes one approved log-retrieval request.
func Handler(ctx context.Context, event events.SimpleEmailEvent) (util.JobResult, error) {
	logger.WithField("operation", "Handler").Info("Job started")

	request, approver, err := parseApproval(ctx, event)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"error":     err.Error(),
			"operation": "Handler",
		}).Error("Approval parsing failed")
		reportFailure(ctx, models.LogRequest{}, err)
		return util.ErrorResult(err.Error()), nil
	}

	result, err := runner.Run(ctx, request)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"system":    request.System,
			"error":     err.Error(),
			"operation": "Handler",
		}).Error("Log retrieval failed")
		reportFailure(ctx, request, err)
		return util.ErrorResult(err.Error()), nil
	}

	if err := reportSuccess(ctx, request, approver, result); err != nil {
		logger.WithFields(logrus.Fields{
			"error":     err.Error(),
			"operation": "Handler",
		}).Error("Success notification failed")
		return util.ErrorResult(err.Error()), nil
	}

	logger.WithFields(logrus.Fields{
		"system":    request.System,
		"archives":  len(result.References),
		"operation": "Handler",
	}).Info("Job succeeded")
	return util.OKResult(), nil
}

// parseApproval extracts the JSON request from the stored approval
// mail. The mail's sender is the approver of record.
func parseApproval(ctx context.Context, event events.SimpleEmailEvent) (models.LogRequest, string, error) {
	if err := validateEnvironment(); err != nil {
		return models.LogRequest{}, "", err
	}

	if len(event.Records) == 0 {
		return models.LogRequest{}, "", apperr.New(apperr.KindValidation, "event carries no SES records")
	}

	mail := event.Records[0].SES.Mail
	approver := mail.Source

	logger.WithFields(logrus.Fields{
		"messageId": mail.MessageID,
		"approver":  approver,
		"operation": "parseApproval",
	}).Info("SES event parsed")

	body, err := mailReader.Body(ctx, mail.MessageID)
	if err != nil {
		return models.LogRequest{}, approver, err
	}

	request, err := extract.JSONBody(body)
	if err != nil {
		return models.LogRequest{}, approver, err
	}
	if err := request.Validate(); err != nil {
		return models.LogRequest{}, approver, err
	}

	request.Approver = approver
	return *request, approver, nil
}

// reportSuccess notifies through Teams when a relay is configured,
// otherwise falls back to plain SES mail.
func reportSuccess(ctx context.Context, request models.LogRequest, approver string, result *logjob.Result) error {
	if notifier.Teams.URL != "" {
		return notifier.SendSuccess(ctx, request, approver, result.References, result.Password)
	}

	lines := []string{
		"ログファイルの取得が完了しました。",
		"以下のパスからダウンロードしてください。",
		"",
	}
	for i, ref := range result.References {
		if len(result.References) > 1 {
			lines = append(lines, fmt.Sprintf("Part %d: %s", i+1, ref))
		} else {
			lines = append(lines, ref)
		}
	}
	lines = append(lines, "", "パスワード: "+result.Password)

	return mailer.Send(ctx, []string{request.Mail}, "（ログ取得完了）ログファイル通知", strings.Join(lines, "\n"))
}

// reportFailure escalates to the ops channel, or by mail when no Teams
// relay is configured. Best effort only.
func reportFailure(ctx context.Context, request models.LogRequest, cause error) {
	if notifier.Teams.URL != "" {
		notifier.SendFailure(ctx, request.System, request.Mail, cause.Error())
		return
	}

	notifyAddress := os.Getenv("SES_NOTIFY_EMAIL")
	if notifyAddress == "" {
		return
	}
	body := fmt.Sprintf("ログ取得処理でエラーが発生しました。\n対象システム: %s\n申請者: %s\nエラー詳細: %s",
		request.System, request.Mail, cause.Error())
	if err := mailer.Send(ctx, []string{notifyAddress}, "（ログ取得失敗）エラー通知", body); err != nil {
		logger.WithFields(logrus.Fields{
			"error":     err.Error(),
			"operation": "reportFailure",
		}).Error("Failure mail could not be sent")
	}
}

func main() {
	lambda.Start(Handler)
}
