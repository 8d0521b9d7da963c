package slack

import (
	"strings"
	"testing"
	"unicode/utf8"

	goslack "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/wafcore/pkg/models"
)

func TestBuildEscalationMessage_HighSeverity(t *testing.T) {
	esc := &models.Escalation{
		Title:      "High-severity WAF campaign",
		Message:    "Repeated SQLi attempts from 203.0.113.5",
		Severity:   5,
		SourceType: "group",
	}
	blocks := BuildEscalationMessage(esc)

	require.GreaterOrEqual(t, len(blocks), 3)

	header := blocks[0].(*goslack.SectionBlock)
	assert.Contains(t, header.Text.Text, ":rotating_light:")
	assert.Contains(t, header.Text.Text, "High-severity WAF campaign")
	assert.Contains(t, header.Text.Text, "severity 5")

	content := blocks[1].(*goslack.SectionBlock)
	assert.Contains(t, content.Text.Text, "Repeated SQLi attempts")

	ctxBlock := blocks[2].(*goslack.ContextBlock)
	require.Len(t, ctxBlock.ContextElements.Elements, 1)
	text := ctxBlock.ContextElements.Elements[0].(*goslack.TextBlockObject)
	assert.Contains(t, text.Text, "group")
}

func TestBuildEscalationMessage_UnknownSeverityFallsBackToDefaultEmoji(t *testing.T) {
	esc := &models.Escalation{
		Title:      "Single event flagged",
		Severity:   2,
		SourceType: "waf_event",
	}
	blocks := BuildEscalationMessage(esc)

	header := blocks[0].(*goslack.SectionBlock)
	assert.Contains(t, header.Text.Text, ":large_blue_diamond:")
}

func TestBuildEscalationMessage_NoMessageOmitsContentBlock(t *testing.T) {
	esc := &models.Escalation{
		Title:      "Campaign detected",
		Severity:   4,
		SourceType: "campaign",
	}
	blocks := BuildEscalationMessage(esc)

	require.Len(t, blocks, 2)
	_, ok := blocks[0].(*goslack.SectionBlock)
	require.True(t, ok)
	_, ok = blocks[1].(*goslack.ContextBlock)
	require.True(t, ok)
}

func TestTruncateForSlack(t *testing.T) {
	t.Run("short text unchanged", func(t *testing.T) {
		assert.Equal(t, "hello", truncateForSlack("hello"))
	})

	t.Run("exact limit unchanged", func(t *testing.T) {
		text := strings.Repeat("a", maxBlockTextLength)
		assert.Equal(t, text, truncateForSlack(text))
	})

	t.Run("over limit truncated", func(t *testing.T) {
		text := strings.Repeat("a", maxBlockTextLength+100)
		result := truncateForSlack(text)
		assert.True(t, len(result) < len(text))
		assert.Contains(t, result, "truncated")
	})

	t.Run("multi-byte runes not split", func(t *testing.T) {
		text := strings.Repeat("🔥", maxBlockTextLength+10)
		result := truncateForSlack(text)
		assert.Contains(t, result, "truncated")
		assert.True(t, utf8.ValidString(result), "result should be valid UTF-8")
		prefix := strings.Split(result, "\n\n_...")[0]
		assert.Equal(t, maxBlockTextLength, utf8.RuneCountInString(prefix))
	})
}
