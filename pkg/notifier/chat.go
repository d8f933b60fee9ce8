package notifier

import (
	"context"
	"fmt"

	goslack "github.com/slack-go/slack"
)

// ChatNotifier posts a Block Kit message to a Slack incoming webhook URL.
// It never calls the Slack Web API and carries no channel/auth state
// beyond the webhook URL itself.
type ChatNotifier struct {
	webhookURL string
}

// NewChatNotifier creates a ChatNotifier.
func NewChatNotifier(webhookURL string) *ChatNotifier {
	return &ChatNotifier{webhookURL: webhookURL}
}

func chatSeverityEmoji(severity string) string {
	switch severity {
	case "critical":
		return "🚨"
	case "warning":
		return "⚠️"
	case "info":
		return "ℹ️"
	default:
		return "📢"
	}
}

func chatBlocks(alert Alert) []goslack.Block {
	header := goslack.NewHeaderBlock(
		goslack.NewTextBlockObject(goslack.PlainTextType,
			fmt.Sprintf("%s %s", chatSeverityEmoji(alert.Severity), alert.RuleName), true, false),
	)

	message := goslack.NewSectionBlock(
		goslack.NewTextBlockObject(goslack.MarkdownType, alert.Message, false, false),
		nil, nil,
	)

	contextText := fmt.Sprintf("Project: %s | Severity: %s | Event: %s", alert.ProjectID, alert.Severity, alert.EventID)
	context := goslack.NewContextBlock("",
		goslack.NewTextBlockObject(goslack.MarkdownType, contextText, false, false),
	)

	return []goslack.Block{header, message, context}
}

func (n *ChatNotifier) Send(ctx context.Context, alert Alert) Result {
	msg := &goslack.WebhookMessage{
		Blocks: &goslack.Blocks{BlockSet: chatBlocks(alert)},
	}

	if err := goslack.PostWebhookContext(ctx, n.webhookURL, msg); err != nil {
		return Result{Channel: "chat", Error: err.Error()}
	}

	return Result{Success: true, Channel: "chat"}
}

func (n *ChatNotifier) Close() error { return nil }
