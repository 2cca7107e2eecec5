// Package mail renders outbound emails. The sender in this package writes the
// rendered messages to the log; a transport is plugged in behind mail.Sender.
package mail

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"text/template"

	domainmail "group_question_service/internal/domain/mail"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"
)

var questionTemplate = template.Must(template.New("question").Parse(
	`Hello,

This week's question for {{.GroupName}}:

    {{.Question}}

Reply to this email to answer. Your answer is shared with the group in the next digest.
`))

var digestTemplate = template.Must(template.New("digest").Parse(
	`Here is what {{.GroupName}} answered.
{{range .Entries}}
== {{.Question}} ==
{{if not .Answers}}
No answers this time.
{{end}}{{range .Answers}}
{{.Author}}:
{{.Content}}
{{end}}{{end}}`))

// answerPolicy keeps the formatting members may paste into answers and drops
// anything executable.
var answerPolicy = newAnswerPolicy()

func newAnswerPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

var digestHTMLTemplate = htmltemplate.Must(htmltemplate.New("digest_html").Funcs(htmltemplate.FuncMap{
	"sanitize": func(s string) htmltemplate.HTML {
		return htmltemplate.HTML(answerPolicy.Sanitize(s))
	},
}).Parse(`<p>Here is what {{.GroupName}} answered.</p>
{{range .Entries}}<h2>{{.Question}}</h2>
{{if not .Answers}}<p>No answers this time.</p>
{{end}}{{range .Answers}}<p><strong>{{.Author}}</strong></p>
<div style="white-space: pre-line">{{sanitize .Content}}</div>
{{end}}{{end}}`))

// RenderQuestion returns the plain text body of a question email.
func RenderQuestion(email domainmail.QuestionEmail) (string, error) {
	var buf bytes.Buffer
	if err := questionTemplate.Execute(&buf, email); err != nil {
		return "", fmt.Errorf("rendering question email: %w", err)
	}
	return buf.String(), nil
}

// RenderDigest returns the plain text body of a digest email.
func RenderDigest(email domainmail.DigestEmail) (string, error) {
	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, email); err != nil {
		return "", fmt.Errorf("rendering digest email: %w", err)
	}
	return buf.String(), nil
}

// RenderDigestHTML returns the HTML body of a digest email. Answer content is
// sanitized, everything else is escaped.
func RenderDigestHTML(email domainmail.DigestEmail) (string, error) {
	var buf bytes.Buffer
	if err := digestHTMLTemplate.Execute(&buf, email); err != nil {
		return "", fmt.Errorf("rendering digest html: %w", err)
	}
	return buf.String(), nil
}

// LogSender implements mail.Sender by logging the rendered email.
type LogSender struct {
	logger *logrus.Entry
}

func NewLogSender(logger *logrus.Entry) *LogSender {
	return &LogSender{logger: logger.WithField("component", "mail")}
}

func (s *LogSender) SendQuestion(_ context.Context, email domainmail.QuestionEmail) error {
	body, err := RenderQuestion(email)
	if err != nil {
		return err
	}
	fields := logrus.Fields{
		"to":         email.To,
		"subject":    email.Subject,
		"reply_to":   email.ReplyTo,
		"message_id": email.MessageID,
	}
	for k, v := range email.Headers {
		fields[k] = v
	}
	s.logger.WithFields(fields).WithField("body", body).Info("Question email")
	return nil
}

func (s *LogSender) SendDigest(_ context.Context, email domainmail.DigestEmail) error {
	body, err := RenderDigest(email)
	if err != nil {
		return err
	}
	htmlBody, err := RenderDigestHTML(email)
	if err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"to":        email.To,
		"group":     email.GroupName,
		"entries":   len(email.Entries),
		"body":      body,
		"html_body": htmlBody,
	}).Info("Digest email")
	return nil
}
