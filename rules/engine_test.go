package rules

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/staffprobot/payroll_backend/models"
)

// NOTE: These tests are intentionally DB-free. Evaluate is a pure function of
// the candidate snapshot and the fact set; loading/scoping is covered by the
// models package and by integration tests.

func triple(field, op, valueJSON string) models.ConditionTriple {
	return models.ConditionTriple{
		Field:    field,
		Operator: op,
		Value:    json.RawMessage(valueJSON),
	}
}

func rule(id int, ownerId string, priority int, amount int64, triples ...models.ConditionTriple) models.ParsedRule {
	return models.ParsedRule{
		ID:        id,
		OwnerId:   ownerId,
		Priority:  priority,
		Scope:     models.RuleScopeLate,
		Condition: triples,
		Action: models.RuleAction{
			Kind:   models.AdjustmentKindLatePenalty,
			Amount: decimal.NewFromInt(amount),
		},
	}
}

func TestEvaluate_NoCandidates_NoMatch(t *testing.T) {
	action, ok := Evaluate(nil, "owner-1", Facts{"minutes_late": 30})
	if ok || action != nil {
		t.Fatalf("expected no match, got %+v", action)
	}
}

func TestEvaluate_HighestPriorityWins(t *testing.T) {
	candidates := []models.ParsedRule{
		rule(1, "", 10, 100, triple("minutes_late", "gt", "5")),
		rule(2, "", 20, 200, triple("minutes_late", "gt", "5")),
	}
	action, ok := Evaluate(candidates, "owner-1", Facts{"minutes_late": 30})
	if !ok {
		t.Fatal("expected a match")
	}
	if !action.Amount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected the priority-20 rule's amount, got %s", action.Amount)
	}
}

func TestEvaluate_OwnerRuleBeatsGlobalAtEqualPriority(t *testing.T) {
	candidates := []models.ParsedRule{
		rule(1, "", 10, 100, triple("minutes_late", "gt", "5")),
		rule(2, "owner-1", 10, 250, triple("minutes_late", "gt", "5")),
	}
	action, ok := Evaluate(candidates, "owner-1", Facts{"minutes_late": 30})
	if !ok {
		t.Fatal("expected a match")
	}
	if !action.Amount.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("expected the owner rule's amount, got %s", action.Amount)
	}
}

func TestEvaluate_GlobalStillWinsOnHigherPriority(t *testing.T) {
	candidates := []models.ParsedRule{
		rule(1, "", 50, 100, triple("minutes_late", "gt", "5")),
		rule(2, "owner-1", 10, 250, triple("minutes_late", "gt", "5")),
	}
	action, _ := Evaluate(candidates, "owner-1", Facts{"minutes_late": 30})
	if !action.Amount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected the high-priority global amount, got %s", action.Amount)
	}
}

func TestEvaluate_TieBreaksOnSmallestId(t *testing.T) {
	candidates := []models.ParsedRule{
		rule(7, "", 10, 700, triple("minutes_late", "gt", "5")),
		rule(3, "", 10, 300, triple("minutes_late", "gt", "5")),
	}
	action, _ := Evaluate(candidates, "owner-1", Facts{"minutes_late": 30})
	if !action.Amount.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected rule id 3 to win the tie, got amount %s", action.Amount)
	}
}

func TestEvaluate_ForeignOwnerRuleNeverApplies(t *testing.T) {
	candidates := []models.ParsedRule{
		rule(1, "owner-2", 99, 999, triple("minutes_late", "gt", "0")),
	}
	if _, ok := Evaluate(candidates, "owner-1", Facts{"minutes_late": 30}); ok {
		t.Fatal("another owner's rule must not match")
	}
}

func TestEvaluate_MissingFactIsNonMatch(t *testing.T) {
	candidates := []models.ParsedRule{
		rule(1, "", 10, 100, triple("notice_hours", "lt", "24")),
	}
	if _, ok := Evaluate(candidates, "owner-1", Facts{"minutes_late": 30}); ok {
		t.Fatal("rule referencing an absent fact must not match")
	}
}

func TestEvaluate_AllTriplesMustHold(t *testing.T) {
	candidates := []models.ParsedRule{
		rule(1, "", 10, 100,
			triple("minutes_late", "gt", "5"),
			triple("minutes_late", "lt", "10"),
		),
	}
	if _, ok := Evaluate(candidates, "owner-1", Facts{"minutes_late": 30}); ok {
		t.Fatal("conjunction with one failing triple must not match")
	}
	if _, ok := Evaluate(candidates, "owner-1", Facts{"minutes_late": 7}); !ok {
		t.Fatal("expected a match when every triple holds")
	}
}

func TestEvaluate_Operators(t *testing.T) {
	cases := []struct {
		name  string
		t     models.ConditionTriple
		facts Facts
		want  bool
	}{
		{"eq number", triple("minutes_late", "eq", "10"), Facts{"minutes_late": 10}, true},
		{"eq number mismatch", triple("minutes_late", "eq", "10"), Facts{"minutes_late": 11}, false},
		{"eq string", triple("status", "eq", `"cancelled"`), Facts{"status": "cancelled"}, true},
		{"eq bool", triple("reason_treated_as_valid", "eq", "true"), Facts{"reason_treated_as_valid": true}, true},
		{"neq", triple("status", "neq", `"cancelled"`), Facts{"status": "completed"}, true},
		{"gt boundary", triple("minutes_late", "gt", "10"), Facts{"minutes_late": 10}, false},
		{"gte boundary", triple("minutes_late", "gte", "10"), Facts{"minutes_late": 10}, true},
		{"lt", triple("notice_hours", "lt", "24"), Facts{"notice_hours": 3}, true},
		{"lte boundary", triple("notice_hours", "lte", "24"), Facts{"notice_hours": 24}, true},
		{"decimal fact", triple("hours_worked", "gt", "7.5"), Facts{"hours_worked": decimal.NewFromFloat(8.0)}, true},
		{"in hit", triple("code", "in", `["sick","family"]`), Facts{"code": "sick"}, true},
		{"in miss", triple("code", "in", `["sick","family"]`), Facts{"code": "overslept"}, false},
		{"in numbers", triple("object_id", "in", `[1,2,3]`), Facts{"object_id": 2}, true},
		{"type mismatch", triple("minutes_late", "gt", `"ten"`), Facts{"minutes_late": 30}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			candidates := []models.ParsedRule{rule(1, "", 0, 1, tc.t)}
			_, ok := Evaluate(candidates, "owner-1", tc.facts)
			if ok != tc.want {
				t.Fatalf("match=%v, want %v", ok, tc.want)
			}
		})
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	candidates := []models.ParsedRule{
		rule(5, "", 10, 500, triple("minutes_late", "gt", "5")),
		rule(2, "owner-1", 10, 200, triple("minutes_late", "gt", "5")),
		rule(9, "", 10, 900, triple("minutes_late", "gt", "5")),
	}
	facts := Facts{"minutes_late": 30}
	first, _ := Evaluate(candidates, "owner-1", facts)
	for i := 0; i < 50; i++ {
		action, ok := Evaluate(candidates, "owner-1", facts)
		if !ok || !action.Amount.Equal(first.Amount) {
			t.Fatalf("run %d produced a different winner: %+v", i, action)
		}
	}
}
