package rules

import (
	"encoding/json"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/staffprobot/payroll_backend/models"
	"gorm.io/gorm"
)

// Facts is the key/value input for one evaluation. Values may be Go numbers,
// decimal.Decimal, string or bool. A rule referencing a field absent from the
// fact set is treated as non-matching — callers written against older schemas
// may supply partial facts and must not blow up evaluation.
type Facts map[string]any

// Evaluate is the engine contract: given the candidate rules (already scoped
// and parsed by models.LoadActiveRules), pick the action of the winning rule,
// or report no match so the caller can fall back to legacy static fields.
// The engine itself NEVER consults legacy fields.
//
// Selection: a rule matches iff every condition triple holds. Among matching
// rules the highest priority wins; on equal priority an owner-specific rule
// beats a global one; remaining ties break on smallest id. Deterministic and
// covered by tests.
func Evaluate(candidates []models.ParsedRule, ownerId string, facts Facts) (*models.RuleAction, bool) {
	var winner *models.ParsedRule
	for i := range candidates {
		r := &candidates[i]
		if r.OwnerId != "" && r.OwnerId != ownerId {
			continue
		}
		if !matches(r, facts) {
			continue
		}
		if winner == nil || beats(r, winner, ownerId) {
			winner = r
		}
	}
	if winner == nil {
		return nil, false
	}
	action := winner.Action
	return &action, true
}

// EvaluateForOwner loads the active rule snapshot and evaluates it. This is
// the form the reconciliation job calls.
func EvaluateForOwner(tx *gorm.DB, logger *logrus.Logger, ownerId string, scope models.RuleScope, facts Facts) (*models.RuleAction, bool, error) {
	candidates, err := models.LoadActiveRules(tx, logger, ownerId, scope)
	if err != nil {
		return nil, false, err
	}
	action, ok := Evaluate(candidates, ownerId, facts)
	return action, ok, nil
}

func beats(a, b *models.ParsedRule, ownerId string) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	aOwned := a.OwnerId == ownerId && ownerId != ""
	bOwned := b.OwnerId == ownerId && ownerId != ""
	if aOwned != bOwned {
		return aOwned
	}
	return a.ID < b.ID
}

func matches(r *models.ParsedRule, facts Facts) bool {
	for i := range r.Condition {
		if !tripleHolds(&r.Condition[i], facts) {
			return false
		}
	}
	return true
}

func tripleHolds(t *models.ConditionTriple, facts Facts) bool {
	factValue, ok := facts[t.Field]
	if !ok {
		return false
	}

	var condValue any
	if err := json.Unmarshal(t.Value, &condValue); err != nil {
		return false
	}

	switch t.Operator {
	case "eq":
		return looseEqual(factValue, condValue)
	case "neq":
		return !looseEqual(factValue, condValue)
	case "gt", "gte", "lt", "lte":
		fd, ok1 := toDecimal(factValue)
		cd, ok2 := toDecimal(condValue)
		if !ok1 || !ok2 {
			return false
		}
		cmp := fd.Cmp(cd)
		switch t.Operator {
		case "gt":
			return cmp > 0
		case "gte":
			return cmp >= 0
		case "lt":
			return cmp < 0
		default:
			return cmp <= 0
		}
	case "in":
		list, ok := condValue.([]any)
		if !ok {
			return false
		}
		for _, item := range list {
			if looseEqual(factValue, item) {
				return true
			}
		}
		return false
	}
	return false
}

// looseEqual compares a fact against a condition value: numbers numerically
// (so the int fact 10 equals the JSON number 10), everything else by kind.
func looseEqual(factValue, condValue any) bool {
	if fd, ok1 := toDecimal(factValue); ok1 {
		if cd, ok2 := toDecimal(condValue); ok2 {
			return fd.Equal(cd)
		}
		return false
	}
	switch fv := factValue.(type) {
	case string:
		cv, ok := condValue.(string)
		return ok && fv == cv
	case bool:
		cv, ok := condValue.(bool)
		return ok && fv == cv
	}
	return false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	}
	return decimal.Decimal{}, false
}
