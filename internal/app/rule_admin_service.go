package app

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"backoffice_notifier/internal/domain/notification"

	"github.com/go-playground/validator/v10"
)

// UpsertRuleInput is the payload the configuration screens submit.
type UpsertRuleInput struct {
	TaskTitle       string   `json:"task_title" validate:"required"`
	Target          string   `json:"target" validate:"required"`
	Enabled         bool     `json:"enabled"`
	Mode            string   `json:"mode" validate:"required,oneof=AUTOMATIC MANUAL"`
	TemplateID      *int64   `json:"template_id"`
	ExtraRecipients []string `json:"extra_recipients" validate:"dive,email"`
	Frequency       string   `json:"frequency" validate:"required,oneof=DAILY WEEKDAYS WEEKLY"`
	SendTime        string   `json:"send_time" validate:"required"`
	Timezone        string   `json:"timezone" validate:"required"`
	Weekday         *int64   `json:"weekday" validate:"omitempty,min=0,max=6"`
	ClosedStatuses  []string `json:"closed_statuses"`
	OnlyFuture      bool     `json:"only_future"`
	SendOnCreate    bool     `json:"send_on_create"`
}

// RuleAdminService carries the upsert path behind the rule configuration
// screens. Identity is (task_title, target); disabling a rule is an upsert
// with enabled = false, rules are never hard-deleted.
type RuleAdminService struct {
	rules    notification.RuleRepository
	validate *validator.Validate
}

func NewRuleAdminService(rules notification.RuleRepository) *RuleAdminService {
	return &RuleAdminService{
		rules:    rules,
		validate: validator.New(),
	}
}

func (s *RuleAdminService) Upsert(ctx context.Context, in UpsertRuleInput) (*notification.Rule, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid rule: %w", err)
	}
	if _, err := time.LoadLocation(in.Timezone); err != nil {
		return nil, fmt.Errorf("invalid rule timezone %q: %w", in.Timezone, err)
	}

	rule := &notification.Rule{
		TaskTitle:       strings.TrimSpace(in.TaskTitle),
		Target:          strings.TrimSpace(in.Target),
		Enabled:         in.Enabled,
		Mode:            notification.Mode(in.Mode),
		ExtraRecipients: normalizeAddresses(in.ExtraRecipients),
		Frequency:       notification.Frequency(in.Frequency),
		SendTime:        in.SendTime,
		Timezone:        in.Timezone,
		ClosedStatuses:  in.ClosedStatuses,
		OnlyFuture:      in.OnlyFuture,
		SendOnCreate:    in.SendOnCreate,
	}
	if in.TemplateID != nil {
		rule.TemplateID = sql.NullInt64{Int64: *in.TemplateID, Valid: true}
	}
	if in.Weekday != nil {
		rule.Weekday = sql.NullInt64{Int64: *in.Weekday, Valid: true}
	}

	if _, err := rule.SendTimeSeconds(); err != nil {
		return nil, err
	}

	if err := s.rules.Upsert(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// normalizeAddresses lower-cases, trims and deduplicates the explicit extra
// recipients, dropping anything without "@".
func normalizeAddresses(addresses []string) []string {
	set := make(map[string]struct{})
	for _, addr := range addresses {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if !strings.Contains(addr, "@") {
			continue
		}
		set[addr] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for addr := range set {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}
