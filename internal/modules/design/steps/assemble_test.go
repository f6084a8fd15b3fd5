package steps

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/kitchenmaster-backend/internal/clients/engine"
	"github.com/yungbote/kitchenmaster-backend/internal/data/gateway"
	"github.com/yungbote/kitchenmaster-backend/internal/data/repos/testutil"
	"github.com/yungbote/kitchenmaster-backend/internal/domain"
)

func designItems() []engine.OutputItem {
	return []engine.OutputItem{
		{Kind: OutputKindText, Text: "Aquí está tu cocina."},
		{
			Kind:   OutputKindImage,
			Data:   []byte("png-bytes"),
			Title:  "Render principal",
			Params: map[string]any{"style": "moderna", "shape": "l", "linear_meters": 3.0},
		},
		{Kind: OutputKindSpecification},
		{Kind: OutputKindCostEstimate},
	}
}

func TestAssembleFirstDesignIsRoot(t *testing.T) {
	out, err := Assemble(AssembleDeps{Log: testutil.Logger(t)}, AssembleInput{
		Prompt:       "quiero una cocina moderna en L de 3 metros",
		Items:        designItems(),
		Head:         nil,
		CurrentTitle: domain.DefaultConversationTitle,
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	if out.Change == nil {
		t.Fatal("image output should produce a lineage change")
	}
	if out.Change.Kind != gateway.ChangeRoot {
		t.Fatalf("change kind = %q, want root when no head exists", out.Change.Kind)
	}
	if string(out.Change.Payload) != "png-bytes" {
		t.Fatal("change payload should carry the image bytes")
	}
	if len(out.Artifacts) != 3 {
		t.Fatalf("artifact count = %d, want 3 (text rides the message)", len(out.Artifacts))
	}
	if out.Artifacts[0].Kind != domain.ArtifactKindImage {
		t.Fatalf("first artifact kind = %q, output order must be preserved", out.Artifacts[0].Kind)
	}
}

func TestAssembleWithHeadBranches(t *testing.T) {
	head := &domain.DesignIteration{ID: uuid.New(), Version: 2}
	out, err := Assemble(AssembleDeps{Log: testutil.Logger(t)}, AssembleInput{
		Prompt:       "hazla más luminosa",
		Items:        designItems(),
		Head:         head,
		CurrentTitle: "Cocina moderna en L - 3.0m",
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if out.Change == nil || out.Change.Kind != gateway.ChangeBranch {
		t.Fatalf("expected a branch change, got %+v", out.Change)
	}
	if out.Change.ParentID != head.ID {
		t.Fatal("branch should hang off the current head")
	}
	if out.Title != "" {
		t.Fatalf("title already customized, auto-title must not fire; got %q", out.Title)
	}
}

func TestAssembleSynthesizesTextArtifacts(t *testing.T) {
	out, err := Assemble(AssembleDeps{Log: testutil.Logger(t)}, AssembleInput{
		Prompt: "cocina premium en U de 4.2 metros",
		Items:  designItems(),
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	var spec, cost string
	for _, a := range out.Artifacts {
		switch a.Kind {
		case domain.ArtifactKindSpecification:
			spec = a.Content
		case domain.ArtifactKindCostEstimate:
			cost = a.Content
		}
	}
	// Both tags arrived without text, so the params of the image output drive
	// the generated bodies.
	if !strings.Contains(spec, "Especificación") || !strings.Contains(spec, "en L") {
		t.Errorf("synthesized spec wrong:\n%s", spec)
	}
	if !strings.Contains(cost, "Estimación de costo") || !strings.Contains(cost, "MXN") {
		t.Errorf("synthesized cost estimate wrong:\n%s", cost)
	}
}

func TestAssembleKeepsEngineProvidedText(t *testing.T) {
	out, err := Assemble(AssembleDeps{Log: testutil.Logger(t)}, AssembleInput{
		Prompt: "x",
		Items: []engine.OutputItem{
			{Kind: OutputKindSpecification, Text: "especificación del motor"},
		},
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(out.Artifacts) != 1 || out.Artifacts[0].Content != "especificación del motor" {
		t.Fatal("engine-provided text must win over the fallback generator")
	}
}

func TestAssembleAutoTitleOnFirstDesign(t *testing.T) {
	out, err := Assemble(AssembleDeps{Log: testutil.Logger(t)}, AssembleInput{
		Prompt:       "cocina moderna",
		Items:        designItems(),
		CurrentTitle: domain.DefaultConversationTitle,
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if out.Title != "Cocina moderna en L - 3.0m" {
		t.Fatalf("auto-title = %q", out.Title)
	}
}

func TestAssembleSkipsUnknownKinds(t *testing.T) {
	out, err := Assemble(AssembleDeps{Log: testutil.Logger(t)}, AssembleInput{
		Prompt: "x",
		Items: []engine.OutputItem{
			{Kind: "hologram", Text: "?"},
			{Kind: OutputKindSpecification, Text: "spec"},
		},
	})
	if err != nil {
		t.Fatalf("unknown kinds must not poison the turn: %v", err)
	}
	if len(out.Artifacts) != 1 || out.Artifacts[0].Kind != domain.ArtifactKindSpecification {
		t.Fatalf("expected only the specification artifact, got %d", len(out.Artifacts))
	}
}

func TestAssembleRoutesMemoryAndPreferences(t *testing.T) {
	out, err := Assemble(AssembleDeps{Log: testutil.Logger(t)}, AssembleInput{
		Prompt: "x",
		Items: []engine.OutputItem{
			{Kind: OutputKindMemory, Text: "prefiere encimeras de cuarzo"},
			{Kind: OutputKindPreferences, Params: map[string]any{
				"preferred_styles": []any{"moderna"},
			}},
		},
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(out.Artifacts) != 0 {
		t.Fatalf("memory/preference outputs are not artifacts, got %d", len(out.Artifacts))
	}
	if len(out.MemoryNotes) != 1 || out.MemoryNotes[0] != "prefiere encimeras de cuarzo" {
		t.Fatalf("memory notes = %v", out.MemoryNotes)
	}
	if len(out.PreferenceUpdates) != 1 {
		t.Fatalf("preference updates = %v", out.PreferenceUpdates)
	}
}

func TestAssembleNoDesignMeansNoChange(t *testing.T) {
	out, err := Assemble(AssembleDeps{Log: testutil.Logger(t)}, AssembleInput{
		Prompt: "¿qué material recomiendas?",
		Items: []engine.OutputItem{
			{Kind: OutputKindText, Text: "Te recomiendo cuarzo."},
		},
		CurrentTitle: domain.DefaultConversationTitle,
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if out.Change != nil {
		t.Fatal("a text-only turn must not touch the lineage")
	}
	if out.Title != "" {
		t.Fatal("auto-title only fires alongside a design")
	}
}

func TestAssembleFloorPlanFallbackRender(t *testing.T) {
	out, err := Assemble(AssembleDeps{Log: testutil.Logger(t)}, AssembleInput{
		Prompt: "x",
		Items: []engine.OutputItem{
			{
				Kind:   OutputKindImage,
				Data:   []byte("png"),
				Params: map[string]any{"shape": "u", "linear_meters": 4.0},
			},
			{Kind: OutputKindFloorPlan},
		},
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	var plan *gateway.ArtifactDraft
	for i := range out.Artifacts {
		if out.Artifacts[i].Kind == domain.ArtifactKindFloorPlan {
			plan = &out.Artifacts[i]
		}
	}
	if plan == nil {
		t.Fatal("floor plan artifact missing")
	}
	if len(plan.ImageData) == 0 {
		t.Fatal("floor plan without engine data should be rendered locally")
	}
}
