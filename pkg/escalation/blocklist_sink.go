package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/wafv2"

	"github.com/codeready-toolchain/wafcore/pkg/models"
	"github.com/codeready-toolchain/wafcore/pkg/store"
)

// BlocklistSinkConfig configures the external WAFv2 IP-set target and which
// scope it lives in (REGIONAL for an ALB/API Gateway WebACL, CLOUDFRONT for
// a CloudFront distribution).
type BlocklistSinkConfig struct {
	IPSetID   string
	IPSetName string
	Scope     string // wafv2.ScopeRegional or wafv2.ScopeCloudfront
	Region    string
}

// BlocklistSink adds a flagged IP both to the durable blocklist table and to
// the upstream WAFv2 IP set, using a read-modify-write-with-lock-token cycle
// against the IP set. Both sides must succeed for the sink to report
// success; the DB upsert runs first and never creates a duplicate row, so a
// later retry after an external failure is safe, though each retry's upsert
// increments block_count again.
type BlocklistSink struct {
	store  *store.Store
	client *wafv2.WAFV2
	cfg    BlocklistSinkConfig
	logger *slog.Logger
}

// NewBlocklistSink constructs a BlocklistSink backed by a real AWS session.
func NewBlocklistSink(st *store.Store, cfg BlocklistSinkConfig) (*BlocklistSink, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Region)})
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return &BlocklistSink{
		store:  st,
		client: wafv2.New(sess),
		cfg:    cfg,
		logger: slog.Default().With("component", "blocklist-sink"),
	}, nil
}

func (s *BlocklistSink) Name() models.SinkName { return models.SinkBlocklist }

func (s *BlocklistSink) Deliver(ctx context.Context, esc *models.Escalation) (string, error) {
	ip := derivedIP(esc)
	if ip == "" {
		return "", fmt.Errorf("no blockable ip in detail_payload")
	}

	var eventID *int64
	if esc.SourceType == string(models.SourceTypeEvent) {
		eventID = esc.SourceEventID
	}
	escID := esc.ID
	inserted, err := s.store.UpsertBlocklist(ctx, ip, ticketReason(esc), esc.Severity, store.UpsertBlocklistSources{
		EscalationID: &escID,
		EventID:      eventID,
	})
	if err != nil {
		return "", fmt.Errorf("upsert blocklist row: %w", err)
	}

	rowState := "updated"
	if inserted {
		rowState = "inserted"
	}
	s.logger.Info("blocklist row upserted", "ip", ip, "state", rowState)

	if err := s.addToIPSet(ctx, ip); err != nil {
		return "", fmt.Errorf("update waf ip set: %w", err)
	}

	return ip, nil
}

func (s *BlocklistSink) addToIPSet(ctx context.Context, ip string) error {
	current, err := s.client.GetIPSetWithContext(ctx, &wafv2.GetIPSetInput{
		Id:    aws.String(s.cfg.IPSetID),
		Name:  aws.String(s.cfg.IPSetName),
		Scope: aws.String(s.cfg.Scope),
	})
	if err != nil {
		return fmt.Errorf("get ip set: %w", err)
	}

	cidr := toCIDR(ip)
	for _, addr := range current.IPSet.Addresses {
		if aws.StringValue(addr) == cidr {
			return nil // already blocked, idempotent no-op
		}
	}

	addresses := append(aws.StringValueSlice(current.IPSet.Addresses), cidr)
	_, err = s.client.UpdateIPSetWithContext(ctx, &wafv2.UpdateIPSetInput{
		Id:        aws.String(s.cfg.IPSetID),
		Name:      aws.String(s.cfg.IPSetName),
		Scope:     aws.String(s.cfg.Scope),
		LockToken: current.LockToken,
		Addresses: aws.StringSlice(addresses),
	})
	if err != nil {
		return fmt.Errorf("update ip set: %w", err)
	}
	return nil
}

// toCIDR appends a /32 (or /128 for IPv6) host suffix to a bare IP address,
// as WAFv2 IP sets require addresses in CIDR notation.
func toCIDR(ip string) string {
	if strings.Contains(ip, "/") {
		return ip
	}
	if strings.Contains(ip, ":") {
		return ip + "/128"
	}
	return ip + "/32"
}

func ticketReason(esc *models.Escalation) string {
	if len(esc.DetailPayload) == 0 {
		return esc.Title
	}
	var d models.DetailPayload
	if err := json.Unmarshal(esc.DetailPayload, &d); err == nil && d.AttackType != "" {
		return d.AttackType
	}
	return esc.Title
}
