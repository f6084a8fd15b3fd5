package steps

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/kitchenmaster-backend/internal/data/repos/repostest"
	"github.com/yungbote/kitchenmaster-backend/internal/data/repos/testutil"
	"github.com/yungbote/kitchenmaster-backend/internal/domain"
	"github.com/yungbote/kitchenmaster-backend/internal/pkg/dbctx"
)

func TestApplyPreferenceUpdatesMerges(t *testing.T) {
	prefs := repostest.NewPreferences()
	deps := RespondDeps{Log: testutil.Logger(t), Preferences: prefs}
	userID := uuid.New()
	dbc := dbctx.Context{Ctx: context.Background()}

	_, err := prefs.Upsert(dbc, &domain.UserPreferences{
		UserID:             userID,
		PreferredStyles:    datatypes.JSON([]byte(`["moderna"]`)),
		PreferredMaterials: datatypes.JSON([]byte(`["cuarzo"]`)),
		Notes:              "nota vieja",
	})
	if err != nil {
		t.Fatalf("seed preferences: %v", err)
	}

	applyPreferenceUpdates(dbc, deps, userID, []map[string]any{{
		"preferred_styles":    []any{"industrial", "moderna"},
		"preferred_materials": []any{"madera"},
		"notes":               "prefiere inducción",
	}})

	got, err := prefs.GetByUser(dbc, userID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	// Styles and materials union, sorted; notes replace.
	if string(got.PreferredStyles) != `["industrial","moderna"]` {
		t.Fatalf("styles = %s", got.PreferredStyles)
	}
	if string(got.PreferredMaterials) != `["cuarzo","madera"]` {
		t.Fatalf("materials = %s", got.PreferredMaterials)
	}
	if got.Notes != "prefiere inducción" {
		t.Fatalf("notes = %q", got.Notes)
	}
}

func TestApplyPreferenceUpdatesFirstWrite(t *testing.T) {
	prefs := repostest.NewPreferences()
	deps := RespondDeps{Log: testutil.Logger(t), Preferences: prefs}
	userID := uuid.New()
	dbc := dbctx.Context{Ctx: context.Background()}

	applyPreferenceUpdates(dbc, deps, userID, []map[string]any{{
		"preferred_styles": []any{"rústica"},
		"budget_range":     map[string]any{"min": 40000.0, "max": 80000.0},
	}})

	got, err := prefs.GetByUser(dbc, userID)
	if err != nil {
		t.Fatalf("a first update should create the row: %v", err)
	}
	if string(got.PreferredStyles) != `["rústica"]` {
		t.Fatalf("styles = %s", got.PreferredStyles)
	}
	if len(got.BudgetRange) == 0 || string(got.BudgetRange) == "{}" {
		t.Fatalf("budget range not stored: %s", got.BudgetRange)
	}
}

func TestStringSetIgnoresCorruptJSON(t *testing.T) {
	set := stringSet(datatypes.JSON([]byte(`not json`)))
	if len(set) != 0 {
		t.Fatalf("corrupt input should yield an empty set, got %v", set)
	}
	set = stringSet(datatypes.JSON([]byte(`["a","","b"]`)))
	if len(set) != 2 || !set["a"] || !set["b"] {
		t.Fatalf("set = %v", set)
	}
}
