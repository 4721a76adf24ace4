// Package parser turns inbound PR notification emails into structured data.
// All functions are pure: they read the webhook payload and never touch the
// network or the database.
package parser

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"gh-pr-relay/internal/metrics"
	"gh-pr-relay/internal/models"
)

// DefaultTitle is used when nothing usable remains of the subject line.
const DefaultTitle = "GitHub Notification"

// GitHubNotificationsAddress is the fixed sender GitHub uses for
// notification mail.
const GitHubNotificationsAddress = "notifications@github.com"

// forwardedIndicators are literal substrings whose combined presence marks
// a message body as a forward. Three or more hits classify the message as
// forwarded. The low-signal entries (From:, Date:, ...) only count in
// combination, which tolerates reformatted forward headers without flagging
// every email that mentions "From:" once.
var forwardedIndicators = []string{
	"---------- Forwarded message ---------",
	"Begin forwarded message:",
	"Forwarded message",
	"From:", "Date:", "Subject:", "To:",
}

const forwardedIndicatorThreshold = 3

var fwdPrefixRe = regexp.MustCompile(`(?i)^Fwd:\s*`)

// IsForwarded reports whether the message is itself a forwarded copy of an
// original notification.
func IsForwarded(w *models.InboundWebhook) bool {
	if fwdPrefixRe.MatchString(w.Subject) {
		return true
	}

	if w.TextBody != "" {
		textLower := strings.ToLower(w.TextBody)
		count := 0
		for _, indicator := range forwardedIndicators {
			if strings.Contains(textLower, strings.ToLower(indicator)) {
				count++
			}
		}
		return count >= forwardedIndicatorThreshold
	}

	return false
}

// recipientPatterns are tried in order; the first capture that validates as
// an email wins.
var recipientPatterns = []*regexp.Regexp{
	// "To: <email@domain.com>"
	regexp.MustCompile(`(?is)To:\s*<([^>]+@[^>]+)>`),
	// "To: email@domain.com"
	regexp.MustCompile(`(?is)To:\s*([^\s<>\n]+@[^\s<>\n]+)`),
	// "To: Name <email@domain.com>"
	regexp.MustCompile(`(?is)To:\s*[^<\n]*<([^>]+@[^>]+)>`),
	// To-line inside the forwarded-block delimiter
	regexp.MustCompile(`(?is)---------- Forwarded message ---------.*?To:\s*<([^>]+@[^>]+)>`),
	// Gmail style bare address
	regexp.MustCompile(`(?is)To:\s*([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`),
	// Generic fallback, optional brackets and TO casing
	regexp.MustCompile(`(?is)(?:To|TO):\s*<?([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})>?`),
}

var emailShapeRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// IsValidEmail applies the RFC-lite shape check: local@domain.tld with a
// dotted domain and 2+ letter TLD.
func IsValidEmail(email string) bool {
	return emailShapeRe.MatchString(email)
}

// ExtractRecipient resolves the intended recipient of the message. Direct
// mail uses the relay-supplied recipient verbatim; forwarded mail attempts
// to recover the embedded To-line from the forward header block, falling
// back to the relay recipient when nothing parseable is found.
func ExtractRecipient(w *models.InboundWebhook) string {
	if !IsForwarded(w) {
		return w.OriginalRecipient
	}

	if email := recipientFromContent(w.TextBody); email != "" {
		return email
	}
	if w.HtmlBody != "" {
		if email := recipientFromContent(RenderHTMLText(w.HtmlBody)); email != "" {
			return email
		}
	}

	logrus.Warnf("Could not extract original recipient from forwarded content, falling back to %s", w.OriginalRecipient)
	return w.OriginalRecipient
}

func recipientFromContent(content string) string {
	if content == "" {
		return ""
	}
	for _, re := range recipientPatterns {
		for _, match := range re.FindAllStringSubmatch(content, -1) {
			email := strings.TrimSpace(match[1])
			if IsValidEmail(email) {
				return email
			}
		}
	}
	return ""
}

var (
	repoBracketRe = regexp.MustCompile(`\[([^/\]]+/[^/\]]+)\]`)
	repoBareRe    = regexp.MustCompile(`([a-zA-Z0-9_.-]+/[a-zA-Z0-9_.-]+)`)

	titleBracketRe = regexp.MustCompile(`^\[[^\]]+\]\s*`)
	titleNumberRe  = regexp.MustCompile(`\s*\((?:PR\s*)?#\d+\)$`)
	whitespaceRe   = regexp.MustCompile(`\s+`)

	prURLTextRe   = regexp.MustCompile(`https://github\.com/[^/\s]+/[^/\s]+/pull/\d+`)
	prURLSuffixRe = regexp.MustCompile(`[?#].*$`)
	prNumberRe    = regexp.MustCompile(`(?i)(?:PR\s*)?#(\d+)`)
	prLinkNumRe   = regexp.MustCompile(`/pull/(\d+)`)

	githubFromRe = regexp.MustCompile(`From:\s*[^<]*<notifications@github\.com>`)
	fromLineRe   = regexp.MustCompile(`From:\s*([^\n<]+(?:<[^>]+>)?)`)
	angleAddrRe  = regexp.MustCompile(`<([^>]+)>`)
)

// ExtractPRData extracts structured PR metadata from one inbound message.
// It never fails: if any step panics, the result degrades to the raw
// subject as title plus the independently computed forwarded flag.
func ExtractPRData(w *models.InboundWebhook) (result models.PRExtractionResult) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("Recovered from PR extraction failure: %v", r)
			metrics.ParseFallbacks.Inc()
			result = models.PRExtractionResult{
				PRTitle:     w.Subject,
				IsForwarded: IsForwarded(w),
			}
			if result.PRTitle == "" {
				result.PRTitle = DefaultTitle
			}
		}
	}()

	isForwarded := IsForwarded(w)

	originalSender := ""
	if isForwarded {
		originalSender = ExtractOriginalSender(w.TextBody)
	}

	link := ExtractPRLink(w.TextBody, w.HtmlBody)

	result = models.PRExtractionResult{
		RepoName:       ExtractRepoName(w.Subject),
		PRTitle:        ExtractPRTitle(w.Subject),
		PRLink:         link,
		PRNumber:       ExtractPRNumber(w.Subject, link),
		PRStatus:       ExtractPRStatus(w.Subject, w.TextBody),
		IsForwarded:    isForwarded,
		OriginalSender: originalSender,
	}
	return result
}

// ExtractRepoName pulls an owner/name repository identifier from the
// subject, preferring the bracketed GitHub form.
func ExtractRepoName(subject string) string {
	clean := fwdPrefixRe.ReplaceAllString(subject, "")

	if m := repoBracketRe.FindStringSubmatch(clean); m != nil {
		return m[1]
	}
	if m := repoBareRe.FindStringSubmatch(clean); m != nil && strings.Contains(m[1], "/") {
		return m[1]
	}
	return ""
}

// ExtractPRTitle derives the PR title from the subject line. The result is
// never empty.
func ExtractPRTitle(subject string) string {
	clean := fwdPrefixRe.ReplaceAllString(subject, "")
	clean = titleBracketRe.ReplaceAllString(clean, "")
	clean = titleNumberRe.ReplaceAllString(clean, "")
	title := strings.TrimSpace(whitespaceRe.ReplaceAllString(clean, " "))

	if title == "" {
		return DefaultTitle
	}
	return title
}

// ExtractPRLink finds the pull-request URL, preferring HTML anchors over
// bare URLs in the text body. Query strings and fragments are stripped.
func ExtractPRLink(textBody, htmlBody string) string {
	if htmlBody != "" {
		for _, href := range ExtractAnchors(htmlBody) {
			if strings.Contains(href, "github.com") && strings.Contains(href, "/pull/") {
				return prURLSuffixRe.ReplaceAllString(href, "")
			}
		}
	}

	if textBody != "" {
		if m := prURLTextRe.FindString(textBody); m != "" {
			return prURLSuffixRe.ReplaceAllString(m, "")
		}
	}

	return ""
}

// ExtractPRNumber resolves the PR number from the subject, else from the
// trailing /pull/ segment of the link.
func ExtractPRNumber(subject, prLink string) string {
	if m := prNumberRe.FindStringSubmatch(subject); m != nil {
		return m[1]
	}
	if prLink != "" {
		if m := prLinkNumRe.FindStringSubmatch(prLink); m != nil {
			return m[1]
		}
	}
	return ""
}

// statusKeywords in precedence order: the first category with a hit wins.
var statusKeywords = []struct {
	status   string
	keywords []string
}{
	{models.StatusMerged, []string{"merged", "merge"}},
	{models.StatusClosed, []string{"closed", "close"}},
	{models.StatusOpened, []string{"opened", "open", "new pull request"}},
	{models.StatusUpdated, []string{"updated", "update"}},
}

// ExtractPRStatus scans subject and body for status keywords, checked in
// precedence order merged > closed > opened > updated. Defaults to opened.
func ExtractPRStatus(subject, textBody string) string {
	content := strings.ToLower(subject + " " + textBody)

	for _, group := range statusKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(content, kw) {
				return group.status
			}
		}
	}
	return models.StatusOpened
}

// ExtractOriginalSender recovers the sender of the original message from a
// forward header block. GitHub notification forwards resolve to the fixed
// notifications address.
func ExtractOriginalSender(textBody string) string {
	if textBody == "" {
		return ""
	}

	if githubFromRe.MatchString(textBody) {
		return GitHubNotificationsAddress
	}

	if m := fromLineRe.FindStringSubmatch(textBody); m != nil {
		fromLine := strings.TrimSpace(m[1])
		if am := angleAddrRe.FindStringSubmatch(fromLine); am != nil {
			return am[1]
		}
		return fromLine
	}

	return ""
}

// dateLayouts are fallbacks for senders that deviate from RFC 2822.
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	"2 Jan 2006 15:04:05 -0700",
}

// ParseDate leniently parses the provider's send-date string. Unparsable
// input yields the current time rather than an error.
func ParseDate(dateString string) time.Time {
	if t, err := mail.ParseDate(dateString); err == nil {
		return t.UTC()
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(dateString)); err == nil {
			return t.UTC()
		}
	}
	logrus.Warnf("Could not parse date %q, using current time", dateString)
	return time.Now().UTC()
}

// statusEmoji maps PR status to the channel-message emoji.
var statusEmoji = map[string]string{
	models.StatusOpened:  "🔔",
	models.StatusMerged:  "✅",
	models.StatusClosed:  "❌",
	models.StatusUpdated: "🔄",
}

var statusColor = map[string]string{
	models.StatusOpened:  "#28a745",
	models.StatusMerged:  "#6f42c1",
	models.StatusClosed:  "#d73a49",
	models.StatusUpdated: "#0366d6",
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// BuildSlackPayload formats one extraction result as a channel message.
func BuildSlackPayload(extracted *models.PRExtractionResult) models.SlackPayload {
	status := extracted.PRStatus
	if status == "" {
		status = models.StatusOpened
	}
	emoji, ok := statusEmoji[status]
	if !ok {
		emoji = statusEmoji[models.StatusOpened]
	}
	color, ok := statusColor[status]
	if !ok {
		color = statusColor[models.StatusOpened]
	}

	repoText := "GitHub"
	if extracted.RepoName != "" {
		repoText = fmt.Sprintf("*%s*", extracted.RepoName)
	}
	prText := extracted.PRTitle
	if extracted.PRLink != "" {
		prText = fmt.Sprintf("<%s|%s>", extracted.PRLink, extracted.PRTitle)
	}

	mainText := fmt.Sprintf("%s %s: %s", emoji, repoText, prText)
	if extracted.PRNumber != "" {
		mainText += fmt.Sprintf(" (#%s)", extracted.PRNumber)
	}

	repoValue := extracted.RepoName
	if repoValue == "" {
		repoValue = "Unknown"
	}
	fields := []map[string]interface{}{
		{"title": "Repository", "value": repoValue, "short": true},
		{"title": "Status", "value": titleCase(status), "short": true},
	}
	if extracted.IsForwarded {
		fields = append(fields, map[string]interface{}{
			"title": "Source", "value": "📧 Forwarded Email", "short": true,
		})
	}

	attachment := map[string]interface{}{
		"color":  color,
		"fields": fields,
		"footer": "GitHub PR Notification",
		"ts":     time.Now().Unix(),
	}
	if extracted.PRLink != "" {
		attachment["actions"] = []map[string]interface{}{
			{"type": "button", "text": "View PR", "url": extracted.PRLink, "style": "primary"},
		}
	}

	return models.SlackPayload{
		Text:        mainText,
		Attachments: []map[string]interface{}{attachment},
	}
}
