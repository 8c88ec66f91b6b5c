package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"getlog/lib/apperr"
	"getlog/lib/models"
)

// Subjects used by the workflow messages. The audience reads Japanese;
// these strings are part of the operator-facing contract.
const (
	SubjectApprovalRequest = "ログ取得の申請：API承認依頼"
	SubjectAccepted        = "ログ取得の申請：受付完了"
	SubjectCorrection      = "ログ取得の申請：申請内容の修正が必要です"
	SubjectSystemError     = "ログ取得の申請：システムエラーが発生しました"
	SubjectCompleted       = "ログ取得申請完了通知"
	SubjectFailed          = "ログ取得処理失敗通知"
)

func htmlContent(value string) string {
	return strings.ReplaceAll(value, "\n", "<br>")
}

// MailtoLink builds the approver's one-click draft link. The draft body
// is the request serialized as JSON, which the processor Lambda parses
// back out of the approval mail.
func MailtoLink(req models.LogRequest, approvalAddress string) (string, error) {
	if approvalAddress == "" {
		return "", apperr.New(apperr.KindConfig, "approval sender address is not configured")
	}

	normalized := strings.ReplaceAll(strings.ReplaceAll(req.Content, "\r\n", "\n"), "\r", "\n")
	payload := models.LogRequest{
		Mail:     req.Mail,
		Content:  normalized,
		System:   req.System,
		FromDate: req.FromDate,
		ToDate:   req.ToDate,
	}

	var body bytes.Buffer
	encoder := json.NewEncoder(&body)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(payload); err != nil {
		return "", apperr.Wrap(err, apperr.KindInternal, "failed to encode draft body")
	}

	subject := "ログ取得API実行: " + req.System
	return fmt.Sprintf("mailto:%s?subject=%s&body=%s",
		approvalAddress,
		mailtoEscape(subject),
		mailtoEscape(strings.TrimSuffix(body.String(), "\n")),
	), nil
}

// mailtoEscape percent-encodes for a mailto URL. QueryEscape's
// plus-for-space convention breaks mail clients, so spaces become %20.
func mailtoEscape(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}

// ApprovalMessage renders the approver-facing request summary with the
// draft-mail link.
func ApprovalMessage(req models.LogRequest, draftLink string) string {
	return fmt.Sprintf(`
<table border="1" style="border-collapse: collapse; width: 100%%;">
<tr><td><strong>申請システム</strong></td><td>%s</td></tr>
<tr><td><strong>申請者</strong></td><td>%s</td></tr>
<tr><td><strong>申請内容</strong></td><td>%s</td></tr>
<tr><td><strong>ログ取得期間</strong></td><td>%s</td></tr>
</table>
<br>
<p><strong>🔗 承認メール作成:</strong></p>
<p><a href="%s">📧 承認メールを作成する</a></p>
<p><em>※承認する場合は、開いた下書きメールをそのまま送信してください。</em></p>
`, req.System, req.Mail, htmlContent(req.Content), req.PeriodString(), draftLink)
}

// AcceptanceMessage confirms intake to the requester.
func AcceptanceMessage(req models.LogRequest) string {
	return fmt.Sprintf(`
<table border="1" style="border-collapse: collapse; width: 100%%;">
<tr><td><strong>申請システム</strong></td><td>%s</td></tr>
<tr><td><strong>申請内容</strong></td><td>%s</td></tr>
<tr><td><strong>ログ取得期間</strong></td><td>%s</td></tr>
</table>
<br>
<p>申請を受け付けました。<br>
承認者による確認後、ログ取得を実行いたします。</p>
`, req.System, htmlContent(req.Content), req.PeriodString())
}

// CorrectionMessage tells the requester what was wrong and how to
// resubmit.
func CorrectionMessage(problem, mailSubject string) string {
	return fmt.Sprintf(`
<table border="1" style="border-collapse: collapse; width: 100%%;">
<tr><td><strong>申請システム</strong></td><td>%s</td></tr>
<tr><td><strong>エラー内容</strong></td><td>%s</td></tr>
</table>
<br>
<p><strong>修正方法:</strong></p>
<ol>
<li>メール本文に以下の形式で記載してください<br>
【申請理由】<br>
[理由を記載]<br>
【ログ取得期間】<br>
FROM: YYYY-MM-DD<br>
TO: YYYY-MM-DD</li>
<li>修正後、再度メールを送信してください</li>
</ol>
`, mailSubject, problem)
}

// SystemErrorMessage asks the requester to escalate to the service
// desk.
func SystemErrorMessage(mailSubject string) string {
	return fmt.Sprintf(`
<table border="1" style="border-collapse: collapse; width: 100%%;">
<tr><td><strong>申請システム</strong></td><td>%s</td></tr>
<tr><td><strong>エラー</strong></td><td>想定外のエラーが発生しました</td></tr>
</table>
<br>
<p><strong>SD課への依頼をお願いします。</strong><br>
ログ取得APIの処理でシステムエラーが発生しているため、<br>
手動でのログ取得対応をお願いします。</p>
`, mailSubject)
}

// SuccessMessage is the requester DM after archives are published: the
// reference for every part plus the shared password.
func SuccessMessage(req models.LogRequest, refs []string, password string) string {
	var pathRows string
	var splitNote string
	if len(refs) == 1 {
		pathRows = fmt.Sprintf("<tr><td><strong>ファイルパス</strong></td><td>%s</td></tr>", refs[0])
	} else {
		lines := make([]string, len(refs))
		for i, ref := range refs {
			lines[i] = fmt.Sprintf("Part %d: %s", i+1, ref)
		}
		pathRows = fmt.Sprintf("<tr><td><strong>ファイルパス<br>（分割ファイル）</strong></td><td>%s</td></tr>", strings.Join(lines, "<br>"))
		splitNote = "<li><strong>※ 分割ファイルの場合、すべてのファイルをダウンロードしてください</strong></li>"
	}

	return fmt.Sprintf(`
<p><strong>ログ取得が完了しました</strong></p>
<table border="1" style="border-collapse: collapse; width: 100%%;">
<tr><td><strong>申請システム</strong></td><td>%s</td></tr>
<tr><td><strong>取得期間</strong></td><td>%s</td></tr>
%s
<tr><td><strong>パスワード</strong></td><td>%s</td></tr>
</table>
<br>
<p><strong>アクセス方法:</strong></p>
<ol>
<li>上記のファイルパスにアクセスしてください</li>
<li>ZIPファイルを開く際に上記のパスワードを入力してください</li>
%s
</ol>
`, req.System, req.PeriodString(), pathRows, password, splitNote)
}

// CompletionMessage is the ops-channel record of a finished job.
func CompletionMessage(req models.LogRequest, approverEmail string) string {
	return fmt.Sprintf(`
<p><strong>ログ取得申請が完了しました</strong></p>
<table border="1" style="border-collapse: collapse; width: 100%%;">
<tr><td><strong>申請者</strong></td><td>%s</td></tr>
<tr><td><strong>申請理由</strong></td><td>%s</td></tr>
<tr><td><strong>対象システム</strong></td><td>%s</td></tr>
<tr><td><strong>取得期間</strong></td><td>%s</td></tr>
<tr><td><strong>承認者</strong></td><td>%s</td></tr>
</table>
`, req.Mail, htmlContent(req.Content), req.System, req.PeriodString(), approverEmail)
}

// FailureMessage is the ops-channel escalation for a failed job.
func FailureMessage(system, applicantEmail, detail string) string {
	if system == "" {
		system = "不明"
	}
	if applicantEmail == "" {
		applicantEmail = "不明"
	}
	return fmt.Sprintf(`
<table border="1" style="border-collapse: collapse; width: 100%%;">
<tr><td><strong>申請システム</strong></td><td>%s</td></tr>
<tr><td><strong>申請者</strong></td><td>%s</td></tr>
<tr><td><strong>エラー</strong></td><td>ログ取得処理でエラーが発生しました</td></tr>
</table>
<br>
<p><strong>SD課への依頼をお願いします。</strong><br>
ログ取得APIの処理でシステムエラーが発生しているため、<br>
手動でのログ取得対応をお願いします。</p>
<br>
<p><strong>エラー詳細:</strong><br>
%s</p>
`, system, applicantEmail, detail)
}
