package notify

import (
	"context"

	"getlog/lib/models"

	"github.com/sirupsen/logrus"
)

// Notifier wires the message builders to the Teams relay with the
// configured team/channel targets.
type Notifier struct {
	Teams *TeamsClient

	// Approval requests go to the approver channel; everything else to
	// the notice channel.
	ApprovalTeam    string
	ApprovalChannel string
	NoticeTeam      string
	NoticeChannel   string

	// ApprovalSender is the address the mailto draft targets, which is
	// also the SES identity the processor listens on.
	ApprovalSender string
	SDTeamEmail    string

	Logger *logrus.Logger
}

// SendApprovalRequest posts the request summary with a draft-mail link
// to the approver channel.
func (n *Notifier) SendApprovalRequest(ctx context.Context, req models.LogRequest) error {
	draftLink, err := MailtoLink(req, n.ApprovalSender)
	if err != nil {
		return err
	}

	return n.Teams.Send(ctx, Message{
		Mode:        ModeChannel,
		TeamName:    n.ApprovalTeam,
		ChannelName: n.ApprovalChannel,
		MessageText: ApprovalMessage(req, draftLink),
		ContentType: "html",
		Subject:     SubjectApprovalRequest,
	})
}

// SendAcceptance confirms intake to the requester via the notice
// channel with a mention.
func (n *Notifier) SendAcceptance(ctx context.Context, req models.LogRequest) error {
	return n.Teams.Send(ctx, Message{
		Mode:        ModeChannel,
		TeamName:    n.NoticeTeam,
		ChannelName: n.NoticeChannel,
		MessageText: AcceptanceMessage(req),
		ContentType: "html",
		Subject:     SubjectAccepted,
		Mentions:    []Mention{{MentionType: "user", EmailAddress: req.Mail}},
	})
}

// SendCorrectionRequest tells the requester to fix and resubmit.
// Failures are logged, never propagated, so the primary error keeps its
// shape.
func (n *Notifier) SendCorrectionRequest(ctx context.Context, problem, senderEmail, mailSubject string) {
	err := n.Teams.Send(ctx, Message{
		Mode:        ModeChannel,
		TeamName:    n.NoticeTeam,
		ChannelName: n.NoticeChannel,
		MessageText: CorrectionMessage(problem, mailSubject),
		ContentType: "html",
		Subject:     SubjectCorrection,
		Mentions:    []Mention{{MentionType: "user", EmailAddress: senderEmail}},
	})
	if err != nil {
		n.Logger.WithFields(logrus.Fields{
			"error":     err.Error(),
			"operation": "SendCorrectionRequest",
		}).Error("Correction request notification failed")
	}
}

// SendSystemError notifies the requester that manual handling is
// needed. Failures are logged, never propagated.
func (n *Notifier) SendSystemError(ctx context.Context, senderEmail, mailSubject string) {
	err := n.Teams.Send(ctx, Message{
		Mode:        ModeChannel,
		TeamName:    n.NoticeTeam,
		ChannelName: n.NoticeChannel,
		MessageText: SystemErrorMessage(mailSubject),
		ContentType: "html",
		Subject:     SubjectSystemError,
		Mentions:    []Mention{{MentionType: "user", EmailAddress: senderEmail}},
	})
	if err != nil {
		n.Logger.WithFields(logrus.Fields{
			"error":     err.Error(),
			"operation": "SendSystemError",
		}).Error("System error notification failed")
	}
}

// SendSuccess delivers the requester DM with archive references and the
// shared password, then records completion on the notice channel.
func (n *Notifier) SendSuccess(ctx context.Context, req models.LogRequest, approverEmail string, refs []string, password string) error {
	if err := n.Teams.Send(ctx, Message{
		Mode:           ModeDirectMessage,
		EmailAddresses: []string{req.Mail},
		MessageText:    SuccessMessage(req, refs, password),
		ContentType:    "html",
	}); err != nil {
		return err
	}

	return n.Teams.Send(ctx, Message{
		Mode:        ModeChannel,
		TeamName:    n.NoticeTeam,
		ChannelName: n.NoticeChannel,
		MessageText: CompletionMessage(req, approverEmail),
		ContentType: "html",
		Subject:     SubjectCompleted,
	})
}

// SendFailure escalates a failed job to the notice channel with a
// service desk mention. Failures are logged, never propagated.
func (n *Notifier) SendFailure(ctx context.Context, system, applicantEmail, detail string) {
	err := n.Teams.Send(ctx, Message{
		Mode:        ModeChannel,
		TeamName:    n.NoticeTeam,
		ChannelName: n.NoticeChannel,
		MessageText: FailureMessage(system, applicantEmail, detail),
		ContentType: "html",
		Subject:     SubjectFailed,
		Mentions:    []Mention{{MentionType: "user", EmailAddress: n.SDTeamEmail}},
	})
	if err != nil {
		n.Logger.WithFields(logrus.Fields{
			"error":     err.Error(),
			"operation": "SendFailure",
		}).Error("Failure notification failed")
	}
}
