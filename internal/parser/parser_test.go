package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gh-pr-relay/internal/models"
)

func TestIsForwardedBySubject(t *testing.T) {
	w := &models.InboundWebhook{
		Subject: "Fwd: [a/b] X (#9)",
	}
	assert.True(t, IsForwarded(w))

	// Prefix check is case-insensitive
	w.Subject = "fwd: something"
	assert.True(t, IsForwarded(w))

	w.Subject = "Re: Fwd: not a prefix"
	w.TextBody = ""
	assert.False(t, IsForwarded(w))
}

func TestIsForwardedByIndicatorCount(t *testing.T) {
	// Two indicators: below the threshold
	w := &models.InboundWebhook{
		Subject:  "[a/b] Direct notification",
		TextBody: "From: someone\nDate: yesterday",
	}
	assert.False(t, IsForwarded(w))

	// Exactly three indicators: forwarded
	w.TextBody = "From: someone\nDate: yesterday\nTo: me"
	assert.True(t, IsForwarded(w))
}

func TestExtractRecipientDirect(t *testing.T) {
	w := &models.InboundWebhook{
		Subject:           "[a/b] Direct notification",
		OriginalRecipient: "inbox@relay.example.com",
	}
	assert.Equal(t, "inbox@relay.example.com", ExtractRecipient(w))
}

func TestExtractRecipientForwarded(t *testing.T) {
	w := &models.InboundWebhook{
		Subject:           "Fwd: [a/b] Something",
		OriginalRecipient: "inbox@relay.example.com",
		TextBody:          "---------- Forwarded message ---------\nFrom: GitHub <notifications@github.com>\nTo: <real@x.com>\nSubject: [a/b] Something",
	}
	assert.Equal(t, "real@x.com", ExtractRecipient(w))
}

func TestExtractRecipientForwardedFallback(t *testing.T) {
	// No parseable To-line anywhere: degrade to the relay recipient
	w := &models.InboundWebhook{
		Subject:           "Fwd: [a/b] Something",
		OriginalRecipient: "inbox@relay.example.com",
		TextBody:          "no useful headers here",
	}
	assert.Equal(t, "inbox@relay.example.com", ExtractRecipient(w))
}

func TestExtractRecipientFromHTML(t *testing.T) {
	w := &models.InboundWebhook{
		Subject:           "Fwd: [a/b] Something",
		OriginalRecipient: "inbox@relay.example.com",
		TextBody:          "forward without headers",
		HtmlBody:          "<div><b>To:</b> real@x.com</div>",
	}
	assert.Equal(t, "real@x.com", ExtractRecipient(w))
}

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("user@example.com"))
	assert.True(t, IsValidEmail("first.last+tag@sub.domain.io"))
	assert.False(t, IsValidEmail("no-at-sign"))
	assert.False(t, IsValidEmail("user@nodot"))
	assert.False(t, IsValidEmail("user@domain.x"))
}

func TestExtractRepoName(t *testing.T) {
	assert.Equal(t, "a/b", ExtractRepoName("Fwd: [a/b] Fix bug (#42)"))
	assert.Equal(t, "owner/repo", ExtractRepoName("owner/repo needs review"))
	assert.Equal(t, "", ExtractRepoName("plain subject"))
}

func TestExtractPRTitle(t *testing.T) {
	assert.Equal(t, "Fix bug", ExtractPRTitle("Fwd: [a/b] Fix bug (#42)"))
	assert.Equal(t, "Fix bug", ExtractPRTitle("[a/b] Fix bug (PR #42)"))
	assert.Equal(t, "Collapse ws", ExtractPRTitle("Collapse   ws"))
	assert.Equal(t, DefaultTitle, ExtractPRTitle("Fwd:   "))
	assert.Equal(t, DefaultTitle, ExtractPRTitle("[a/b]"))
}

func TestExtractPRLink(t *testing.T) {
	html := `<p><a href="https://github.com/a/b/pull/7?notification_referrer_id=x#issuecomment">View it on GitHub</a></p>`
	assert.Equal(t, "https://github.com/a/b/pull/7", ExtractPRLink("", html))

	text := "Review here: https://github.com/a/b/pull/12?ref=email please"
	assert.Equal(t, "https://github.com/a/b/pull/12", ExtractPRLink(text, ""))

	// HTML anchor wins over text URL
	assert.Equal(t, "https://github.com/a/b/pull/7", ExtractPRLink(text, html))

	// Anchors without /pull/ are ignored
	assert.Equal(t, "", ExtractPRLink("", `<a href="https://github.com/a/b/issues/3">issue</a>`))
}

func TestExtractPRNumber(t *testing.T) {
	assert.Equal(t, "37", ExtractPRNumber("Fwd: [a/b] Mydocapp (PR #37)", ""))
	assert.Equal(t, "42", ExtractPRNumber("[a/b] Fix (#42)", ""))
	assert.Equal(t, "9", ExtractPRNumber("no number here", "https://github.com/a/b/pull/9"))
	assert.Equal(t, "", ExtractPRNumber("no number here", ""))
}

func TestExtractPRStatusPrecedence(t *testing.T) {
	// merged is checked before opened
	assert.Equal(t, models.StatusMerged, ExtractPRStatus("[a/b] PR", "this was opened and then merged"))
	assert.Equal(t, models.StatusClosed, ExtractPRStatus("[a/b] PR was closed", ""))
	assert.Equal(t, models.StatusOpened, ExtractPRStatus("[a/b] New pull request", ""))
	assert.Equal(t, models.StatusUpdated, ExtractPRStatus("[a/b] branch updated", ""))
	assert.Equal(t, models.StatusOpened, ExtractPRStatus("[a/b] nothing relevant", ""))
}

func TestExtractOriginalSender(t *testing.T) {
	body := "From: GitHub <notifications@github.com>\nTo: me@x.com"
	assert.Equal(t, GitHubNotificationsAddress, ExtractOriginalSender(body))

	body = "From: Jane Doe <jane@corp.example.com>\nTo: me@x.com"
	assert.Equal(t, "jane@corp.example.com", ExtractOriginalSender(body))

	assert.Equal(t, "", ExtractOriginalSender(""))
}

func TestParseDate(t *testing.T) {
	parsed := ParseDate("Mon, 02 Jan 2006 15:04:05 -0700")
	assert.Equal(t, 2006, parsed.Year())
	assert.Equal(t, time.January, parsed.Month())

	// Unparsable input degrades to now
	before := time.Now().UTC().Add(-time.Minute)
	fallback := ParseDate("not a date at all")
	assert.True(t, fallback.After(before))
}

func TestExtractPRDataEndToEnd(t *testing.T) {
	w := &models.InboundWebhook{
		FromName:          "Bartholomew Bassey",
		From:              "bartholomew.bassey@st.futminna.edu.ng",
		OriginalRecipient: "inbound@prrelay.example.com",
		Subject:           "Fwd: [barth007/dial-a-doc] Mydocapp (PR #37)",
		MessageID:         "msg-e2e-1",
		TextBody: "---------- Forwarded message ---------\n" +
			"From: BARTHOLOMEW BASSEY <bartholomew.bassey@st.futminna.edu.ng>\n" +
			"Date: Tue, 1 Jul 2025 10:00:00 +0100\n" +
			"Subject: [barth007/dial-a-doc] Mydocapp (PR #37)\n" +
			"To: <basseybartholomew237@gmail.com>\n",
	}

	result := ExtractPRData(w)
	require.NotNil(t, result)
	assert.Equal(t, "barth007/dial-a-doc", result.RepoName)
	assert.Equal(t, "Mydocapp", result.PRTitle)
	assert.Equal(t, "37", result.PRNumber)
	assert.True(t, result.IsForwarded)
	assert.Equal(t, "bartholomew.bassey@st.futminna.edu.ng", result.OriginalSender)

	assert.Equal(t, "basseybartholomew237@gmail.com", ExtractRecipient(w))
}

func TestBuildSlackPayload(t *testing.T) {
	payload := BuildSlackPayload(&models.PRExtractionResult{
		RepoName: "a/b",
		PRTitle:  "Fix bug",
		PRLink:   "https://github.com/a/b/pull/42",
		PRNumber: "42",
		PRStatus: models.StatusMerged,
	})

	assert.Contains(t, payload.Text, "✅")
	assert.Contains(t, payload.Text, "*a/b*")
	assert.Contains(t, payload.Text, "<https://github.com/a/b/pull/42|Fix bug>")
	assert.Contains(t, payload.Text, "(#42)")
	require.Len(t, payload.Attachments, 1)
	assert.Equal(t, "#6f42c1", payload.Attachments[0]["color"])
}

func TestRenderHTMLText(t *testing.T) {
	text := RenderHTMLText("<div>To: a@b.com</div><script>var x;</script><p>tail</p>")
	assert.Contains(t, text, "To: a@b.com")
	assert.Contains(t, text, "tail")
	assert.NotContains(t, text, "var x")
}
