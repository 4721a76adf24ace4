package dispatch

import (
	"fmt"
	"time"

	"gh-pr-relay/internal/models"
)

// Age bucket labels, in display order.
const (
	BucketRecent     = "🟢 Recent (1-2 days)"
	BucketGettingOld = "🟡 Getting Old (3-7 days)"
	BucketUrgent     = "🔴 Urgent (8+ days)"
)

var bucketOrder = []string{BucketRecent, BucketGettingOld, BucketUrgent}

const bucketDisplayLimit = 5

// AgeBucket assigns a notification age to its reminder bucket.
func AgeBucket(daysOld int) string {
	switch {
	case daysOld <= 2:
		return BucketRecent
	case daysOld <= 7:
		return BucketGettingOld
	default:
		return BucketUrgent
	}
}

func groupByAge(notifications []models.PRNotification, now time.Time) map[string][]models.PRNotification {
	groups := make(map[string][]models.PRNotification)
	for i := range notifications {
		bucket := AgeBucket(notifications[i].DaysOld(now))
		groups[bucket] = append(groups[bucket], notifications[i])
	}
	return groups
}

func singleReminderBlocks(n *models.PRNotification, daysAgo int) []map[string]interface{} {
	urgencyEmoji := "🔴"
	urgencyText := "URGENT"
	switch {
	case daysAgo <= 1:
		urgencyEmoji = "🟢"
		urgencyText = "New"
	case daysAgo <= 2:
		urgencyEmoji = "🟢"
		urgencyText = "Getting old"
	case daysAgo <= 5:
		urgencyEmoji = "🟡"
		urgencyText = "Getting old"
	}

	repoName := n.RepoName
	if repoName == "" {
		repoName = "Unknown"
	}
	dayWord := "days"
	if daysAgo == 1 {
		dayWord = "day"
	}

	blocks := []map[string]interface{}{
		{
			"type": "header",
			"text": map[string]interface{}{
				"type": "plain_text",
				"text": fmt.Sprintf("%s PR Reminder - %s", urgencyEmoji, urgencyText),
			},
		},
		{
			"type": "section",
			"fields": []map[string]interface{}{
				{"type": "mrkdwn", "text": fmt.Sprintf("*Repository:*\n%s", repoName)},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Age:*\n%d %s ago", daysAgo, dayWord)},
			},
		},
		{
			"type": "section",
			"text": map[string]interface{}{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*PR Title:*\n%s", n.PRTitle),
			},
		},
	}

	if n.PRLink != "" {
		blocks = append(blocks, map[string]interface{}{
			"type": "actions",
			"elements": []map[string]interface{}{
				{
					"type":  "button",
					"text":  map[string]interface{}{"type": "plain_text", "text": "🔗 View PR"},
					"url":   n.PRLink,
					"style": "primary",
				},
			},
		})
	}

	blocks = append(blocks, map[string]interface{}{
		"type": "context",
		"elements": []map[string]interface{}{
			{"type": "mrkdwn", "text": "Let's keep things moving! 🚀 Your team is counting on you!"},
		},
	})
	return blocks
}

func bulkReminderBlocks(groups map[string][]models.PRNotification, now time.Time) []map[string]interface{} {
	blocks := []map[string]interface{}{
		{
			"type": "header",
			"text": map[string]interface{}{
				"type": "plain_text",
				"text": "📋 Your Open PRs Summary",
			},
		},
	}

	for _, bucket := range bucketOrder {
		prs := groups[bucket]
		if len(prs) == 0 {
			continue
		}

		prWord := "PRs"
		if len(prs) == 1 {
			prWord = "PR"
		}
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]interface{}{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*%s (%d %s)*", bucket, len(prs), prWord),
			},
		})

		listed := prs
		if len(listed) > bucketDisplayLimit {
			listed = listed[:bucketDisplayLimit]
		}
		for i := range listed {
			blocks = append(blocks, map[string]interface{}{
				"type": "section",
				"text": map[string]interface{}{
					"type": "mrkdwn",
					"text": bulkEntryText(&listed[i], now),
				},
			})
		}

		if len(prs) > bucketDisplayLimit {
			blocks = append(blocks, map[string]interface{}{
				"type": "context",
				"elements": []map[string]interface{}{
					{"type": "mrkdwn", "text": fmt.Sprintf("_...and %d more in this category_", len(prs)-bucketDisplayLimit)},
				},
			})
		}

		blocks = append(blocks, map[string]interface{}{"type": "divider"})
	}

	blocks = append(blocks, map[string]interface{}{
		"type": "section",
		"text": map[string]interface{}{
			"type": "mrkdwn",
			"text": "🎯 *Ready to tackle these PRs?* Your team will appreciate the quick reviews! 🚀",
		},
	})
	return blocks
}

func bulkEntryText(n *models.PRNotification, now time.Time) string {
	repoName := n.RepoName
	if repoName == "" {
		repoName = "Unknown"
	}

	title := n.PRTitle
	if runes := []rune(title); len(runes) > 50 {
		title = string(runes[:50]) + "..."
	}

	var text string
	if n.PRLink != "" {
		text = fmt.Sprintf("• *%s*: <%s|%s>", repoName, n.PRLink, title)
	} else {
		text = fmt.Sprintf("• *%s*: %s", repoName, title)
	}
	return fmt.Sprintf("%s _%dd ago_", text, n.DaysOld(now))
}

func dailySummaryBlocks(data *models.DailySummaryData) []map[string]interface{} {
	mostActive := data.MostActiveRepo
	if mostActive == "" {
		mostActive = "None"
	}

	blocks := []map[string]interface{}{
		{
			"type": "header",
			"text": map[string]interface{}{
				"type": "plain_text",
				"text": "📊 Your Daily PR Summary",
			},
		},
		{
			"type": "section",
			"fields": []map[string]interface{}{
				{"type": "mrkdwn", "text": fmt.Sprintf("*Total Open PRs:*\n%d", data.TotalOpen)},
				{"type": "mrkdwn", "text": fmt.Sprintf("*New Today:*\n%d", data.NewToday)},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Needs Attention:*\n%d", data.NeedsAttention)},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Most Active Repo:*\n%s", mostActive)},
			},
		},
	}

	if len(data.ActionItems) > 0 {
		items := data.ActionItems
		if len(items) > 3 {
			items = items[:3]
		}
		text := "*🎯 Today's Action Items:*"
		for _, item := range items {
			text += "\n• " + item
		}
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]interface{}{"type": "mrkdwn", "text": text},
		})
	}

	blocks = append(blocks, map[string]interface{}{
		"type": "context",
		"elements": []map[string]interface{}{
			{"type": "mrkdwn", "text": "Have a productive day! 💪"},
		},
	})
	return blocks
}
