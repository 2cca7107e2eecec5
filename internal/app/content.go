// internal/app/content.go
package app

import (
	"regexp"
	"strings"

	"group_question_service/internal/domain/reply"

	"github.com/PuerkitoBio/goquery"
)

// DefaultReplyDelimiter is placed at the bottom of every outbound question email.
const DefaultReplyDelimiter = "##- Please type your reply above this line -##"

var (
	attributionLine     = regexp.MustCompile(`^\s*On\s.+\swrote:\s*$`)
	attributionStart    = regexp.MustCompile(`^\s*On\s`)
	attributionEnd      = regexp.MustCompile(`\swrote:\s*$`)
	originalMessageLine = regexp.MustCompile(`^\s*-{2,}\s*Original Message\s*-{2,}\s*$`)
	blankRun            = regexp.MustCompile(`\n{3,}`)
)

// ContentExtractor turns a raw reply body into answer text.
type ContentExtractor struct {
	delimiter string
}

func NewContentExtractor(delimiter string) *ContentExtractor {
	if delimiter == "" {
		delimiter = DefaultReplyDelimiter
	}
	return &ContentExtractor{delimiter: delimiter}
}

// Extract prefers the plain text body and falls back to the HTML body.
func (e *ContentExtractor) Extract(msg *reply.Message) string {
	body := msg.Text
	if strings.TrimSpace(body) == "" {
		body = htmlToText(msg.HTML)
	}
	body = strings.ReplaceAll(body, "\r\n", "\n")
	if i := strings.Index(body, e.delimiter); i >= 0 {
		body = body[:i]
	}
	return StripQuotedReply(body)
}

// StripQuotedReply removes quoted lines and everything from the first
// "On <date>, <person> wrote:" attribution (which mail clients may wrap over
// two lines) or "Original Message" separator onwards.
func StripQuotedReply(body string) string {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	kept := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if attributionLine.MatchString(line) || originalMessageLine.MatchString(line) {
			break
		}
		if attributionStart.MatchString(line) && i+1 < len(lines) && attributionEnd.MatchString(lines[i+1]) {
			break
		}
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), ">") {
			continue
		}
		kept = append(kept, strings.TrimRight(line, " \t"))
	}
	text := strings.Join(kept, "\n")
	return strings.TrimSpace(blankRun.ReplaceAllString(text, "\n\n"))
}

// htmlToText drops non-content and quoted blocks and keeps line structure.
func htmlToText(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return ""
	}
	doc.Find("head, script, style, noscript, blockquote, .gmail_quote, .gmail_attr").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	lines := strings.Split(doc.Text(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(blankRun.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}
