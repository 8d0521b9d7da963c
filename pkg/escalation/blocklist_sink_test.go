package escalation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/wafcore/pkg/models"
)

func TestToCIDR_BareIPv4GetsHostSuffix(t *testing.T) {
	assert.Equal(t, "203.0.113.7/32", toCIDR("203.0.113.7"))
}

func TestToCIDR_BareIPv6GetsHostSuffix(t *testing.T) {
	assert.Equal(t, "2001:db8::1/128", toCIDR("2001:db8::1"))
}

func TestToCIDR_AlreadyCIDRIsUnchanged(t *testing.T) {
	assert.Equal(t, "203.0.113.0/24", toCIDR("203.0.113.0/24"))
}

func TestTicketReason_PrefersAttackTypeFromDetailPayload(t *testing.T) {
	detail, _ := json.Marshal(models.DetailPayload{AttackType: "sql_injection"})
	esc := &models.Escalation{Title: "fallback title", DetailPayload: detail}

	assert.Equal(t, "sql_injection", ticketReason(esc))
}

func TestTicketReason_FallsBackToTitleWithoutAttackType(t *testing.T) {
	esc := &models.Escalation{Title: "fallback title"}
	assert.Equal(t, "fallback title", ticketReason(esc))
}

func TestTicketReason_FallsBackToTitleOnUnparsablePayload(t *testing.T) {
	esc := &models.Escalation{Title: "fallback title", DetailPayload: []byte("not json")}
	assert.Equal(t, "fallback title", ticketReason(esc))
}
