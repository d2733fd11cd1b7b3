package workflow

import (
	"testing"

	"github.com/staffprobot/payroll_backend/models"
	"github.com/staffprobot/payroll_backend/utils"
)

func reason(ownerId, code string, valid bool) *models.CancellationReason {
	r := &models.CancellationReason{OwnerId: ownerId, Code: code, IsActive: utils.NewTrue()}
	if valid {
		r.TreatedAsValid = utils.NewTrue()
	} else {
		r.TreatedAsValid = utils.NewFalse()
	}
	return r
}

func TestResolveReason_OwnerOverridesGlobal(t *testing.T) {
	reasons := []*models.CancellationReason{
		reason("owner-1", "sick", false),
		reason("", "sick", true),
	}
	r := resolveReason(reasons, "owner-1", "sick")
	if r == nil || r.OwnerId != "owner-1" {
		t.Fatalf("expected the owner row, got %+v", r)
	}
	if r.Valid() {
		t.Fatal("owner override says sick is NOT valid here")
	}
}

func TestResolveReason_GlobalFallback(t *testing.T) {
	reasons := []*models.CancellationReason{
		reason("", "family_emergency", true),
	}
	r := resolveReason(reasons, "owner-1", "family_emergency")
	if r == nil || r.OwnerId != "" {
		t.Fatalf("expected the global row, got %+v", r)
	}
	if !r.Valid() {
		t.Fatal("global default marks family_emergency valid")
	}
}

func TestResolveReason_UnknownCode(t *testing.T) {
	reasons := []*models.CancellationReason{
		reason("", "sick", true),
	}
	if r := resolveReason(reasons, "owner-1", "overslept"); r != nil {
		t.Fatalf("unknown code must resolve to nil, got %+v", r)
	}
}

func TestResolveReason_OrderIndependent(t *testing.T) {
	// The owner row must win even when the global row comes first.
	reasons := []*models.CancellationReason{
		reason("", "sick", true),
		reason("owner-1", "sick", false),
	}
	r := resolveReason(reasons, "owner-1", "sick")
	if r == nil || r.OwnerId != "owner-1" {
		t.Fatalf("expected the owner row regardless of slice order, got %+v", r)
	}
}
