package models

import (
	"strings"
	"testing"
)

func TestRuleParse_Valid(t *testing.T) {
	r := Rule{
		ID:        1,
		OwnerId:   "owner-1",
		Code:      "late-heavy",
		Scope:     RuleScopeLate,
		Priority:  10,
		Condition: `[{"field":"minutes_late","operator":"gt","value":30}]`,
		Action:    `{"kind":"late_penalty","amount":"500"}`,
	}
	p, err := r.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(p.Condition) != 1 || p.Condition[0].Field != "minutes_late" {
		t.Fatalf("unexpected condition: %+v", p.Condition)
	}
	if p.Action.Kind != AdjustmentKindLatePenalty || !p.Action.Amount.Equal(p.Action.Amount.Abs()) {
		t.Fatalf("unexpected action: %+v", p.Action)
	}
}

func TestRuleParse_MalformedConditionJSON(t *testing.T) {
	r := Rule{ID: 2, Condition: `not json`, Action: `{"kind":"late_penalty","amount":"1"}`}
	if _, err := r.Parse(); err == nil {
		t.Fatal("expected error for malformed condition")
	}
}

func TestRuleParse_EmptyCondition(t *testing.T) {
	r := Rule{ID: 3, Condition: `[]`, Action: `{"kind":"late_penalty","amount":"1"}`}
	if _, err := r.Parse(); err == nil {
		t.Fatal("expected error for empty condition")
	}
}

func TestRuleParse_UnknownOperator(t *testing.T) {
	r := Rule{
		ID:        4,
		Condition: `[{"field":"minutes_late","operator":"between","value":30}]`,
		Action:    `{"kind":"late_penalty","amount":"1"}`,
	}
	if _, err := r.Parse(); err == nil {
		t.Fatal("expected error for unknown operator")
	}
}

func TestRuleParse_NegativeAmountRejected(t *testing.T) {
	r := Rule{
		ID:        5,
		Condition: `[{"field":"minutes_late","operator":"gt","value":30}]`,
		Action:    `{"kind":"late_penalty","amount":"-500"}`,
	}
	_, err := r.Parse()
	if err == nil {
		t.Fatal("expected error for negative amount")
	}
	if !strings.Contains(err.Error(), "negative") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRuleParse_MissingActionKind(t *testing.T) {
	r := Rule{
		ID:        6,
		Condition: `[{"field":"minutes_late","operator":"gt","value":30}]`,
		Action:    `{"amount":"500"}`,
	}
	if _, err := r.Parse(); err == nil {
		t.Fatal("expected error for missing action kind")
	}
}
