package slack

import (
	"fmt"
	"unicode/utf8"

	goslack "github.com/slack-go/slack"

	"github.com/codeready-toolchain/wafcore/pkg/models"
)

const maxBlockTextLength = 2900

var severityEmoji = map[int]string{
	5: ":rotating_light:",
	4: ":warning:",
	3: ":large_orange_diamond:",
}

// BuildEscalationMessage creates Block Kit blocks for an Escalation
// notification.
func BuildEscalationMessage(esc *models.Escalation) []goslack.Block {
	emoji := severityEmoji[esc.Severity]
	if emoji == "" {
		emoji = ":large_blue_diamond:"
	}

	headerText := fmt.Sprintf("%s *%s* (severity %d)", emoji, esc.Title, esc.Severity)
	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, headerText, false, false),
			nil, nil,
		),
	}

	if esc.Message != "" {
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, truncateForSlack(esc.Message), false, false),
			nil, nil,
		))
	}

	sourceText := fmt.Sprintf("_source: %s_", esc.SourceType)
	blocks = append(blocks, goslack.NewContextBlock("",
		goslack.NewTextBlockObject(goslack.MarkdownType, sourceText, false, false)))

	return blocks
}

// truncateForSlack clips text to Slack's block text limit without splitting
// a multi-byte rune.
func truncateForSlack(text string) string {
	if utf8.RuneCountInString(text) <= maxBlockTextLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxBlockTextLength]) + "\n\n_... (truncated)_"
}
