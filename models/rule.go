package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/staffprobot/payroll_backend/config"
	"gorm.io/gorm"
)

// Rule is one condition->action pair scoped to a business domain. OwnerId ""
// marks a seeded global default; an owner row with the same code overrides it.
// Rules are deactivated, never deleted: past adjustments are not recomputed
// when rules change, so the historical rows must stay comparable.
type Rule struct {
	ID        int       `gorm:"primary_key" json:"id"`
	OwnerId   string    `gorm:"size:64;uniqueIndex:idx_rules_owner_scope_code;index" json:"owner_id"`
	Code      string    `gorm:"size:64;not null;uniqueIndex:idx_rules_owner_scope_code" json:"code"`
	Scope     RuleScope `gorm:"size:16;not null;uniqueIndex:idx_rules_owner_scope_code;index" json:"scope"`
	Priority  int       `gorm:"not null;default:0" json:"priority"`
	Condition string    `gorm:"type:text;not null" json:"condition"`
	Action    string    `gorm:"type:text;not null" json:"action"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Rule) TableName() string { return "rules" }

// ConditionTriple is one field/operator/value predicate. A rule's condition
// is the conjunction of its triples (AND-only).
type ConditionTriple struct {
	Field    string          `json:"field" validate:"required"`
	Operator string          `json:"operator" validate:"required,oneof=eq neq gt gte lt lte in"`
	Value    json.RawMessage `json:"value" validate:"required"`
}

// RuleAction is the typed payload of the action JSON column.
type RuleAction struct {
	Kind   AdjustmentKind  `json:"kind" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// ParsedRule is a rule whose JSON columns parsed cleanly. Only parsed rules
// reach the evaluator; unparseable rows are skipped at load time with a
// warning so one bad row cannot abort evaluation of the rest.
type ParsedRule struct {
	ID        int
	OwnerId   string
	Code      string
	Scope     RuleScope
	Priority  int
	Condition []ConditionTriple
	Action    RuleAction
}

var ruleValidate = validator.New()

// Parse decodes and validates the JSON condition/action columns.
func (r *Rule) Parse() (*ParsedRule, error) {
	var triples []ConditionTriple
	if err := json.Unmarshal([]byte(r.Condition), &triples); err != nil {
		return nil, fmt.Errorf("rule %d: condition: %w", r.ID, err)
	}
	if len(triples) == 0 {
		return nil, fmt.Errorf("rule %d: condition has no triples", r.ID)
	}
	for i := range triples {
		if err := ruleValidate.Struct(&triples[i]); err != nil {
			return nil, fmt.Errorf("rule %d: condition[%d]: %w", r.ID, i, err)
		}
	}

	var action RuleAction
	if err := json.Unmarshal([]byte(r.Action), &action); err != nil {
		return nil, fmt.Errorf("rule %d: action: %w", r.ID, err)
	}
	if err := ruleValidate.Struct(&action); err != nil {
		return nil, fmt.Errorf("rule %d: action: %w", r.ID, err)
	}
	if action.Amount.IsNegative() {
		return nil, fmt.Errorf("rule %d: action amount must not be negative (sign is applied by kind)", r.ID)
	}

	return &ParsedRule{
		ID:        r.ID,
		OwnerId:   r.OwnerId,
		Code:      r.Code,
		Scope:     r.Scope,
		Priority:  r.Priority,
		Condition: triples,
		Action:    action,
	}, nil
}

// LoadActiveRules fetches the candidate rules for one evaluation: active rows
// in the scope belonging to the owner or seeded as global defaults. Malformed
// rows are logged and dropped, never fatal.
func LoadActiveRules(tx *gorm.DB, logger *logrus.Logger, ownerId string, scope RuleScope) ([]ParsedRule, error) {
	if !scope.Valid() {
		return nil, errors.New("invalid rule scope: " + string(scope))
	}

	var rows []Rule
	if err := tx.
		Where("scope = ? AND is_active = 1 AND owner_id IN ?", scope, []string{ownerId, ""}).
		Order("priority DESC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	parsed := make([]ParsedRule, 0, len(rows))
	for i := range rows {
		p, err := rows[i].Parse()
		if err != nil {
			config.LogWarn(logger, "rule.go", "LoadActiveRules", "skipping malformed rule", rows[i].ID, err.Error())
			continue
		}
		parsed = append(parsed, *p)
	}
	return parsed, nil
}
