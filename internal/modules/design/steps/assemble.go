package steps

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/yungbote/kitchenmaster-backend/internal/clients/engine"
	"github.com/yungbote/kitchenmaster-backend/internal/data/gateway"
	"github.com/yungbote/kitchenmaster-backend/internal/domain"
	"github.com/yungbote/kitchenmaster-backend/internal/platform/floorplan"
	"github.com/yungbote/kitchenmaster-backend/internal/platform/logger"
)

type AssembleDeps struct {
	Log *logger.Logger
}

type AssembleInput struct {
	Prompt string
	Items  []engine.OutputItem
	// Head is the conversation's current lineage head, nil when the turn
	// starts a fresh lineage.
	Head *domain.DesignIteration
	// CurrentTitle decides whether the auto-title fires.
	CurrentTitle string
}

type AssembleOutput struct {
	Artifacts []gateway.ArtifactDraft
	Change    *gateway.IterationChange
	// Title is non-empty when the conversation should be renamed.
	Title string
	// MemoryNotes are engine-captured preference notes to store after commit.
	MemoryNotes []string
	// PreferenceUpdates carry structured preference changes the engine
	// extracted from the turn, merged into user_preferences after commit.
	PreferenceUpdates []map[string]any
	// DesignParams echo the new design's parameters for the state cache.
	DesignParams map[string]any
}

// Assemble normalizes the engine's ordered outputs into persistable
// artifacts and at most one lineage change. Output order is preserved.
// Outputs with kinds outside the artifact set are skipped with a warning;
// they never poison the turn.
func Assemble(deps AssembleDeps, in AssembleInput) (AssembleOutput, error) {
	out := AssembleOutput{}
	if deps.Log == nil {
		return out, fmt.Errorf("assemble: missing deps")
	}

	var designParams map[string]any

	for _, item := range in.Items {
		switch item.Kind {
		case OutputKindText:
			// Reply text rides the message itself, not an artifact.

		case OutputKindImage:
			if len(item.Data) == 0 {
				deps.Log.Warn("image output without data; skipping")
				continue
			}
			if designParams == nil {
				designParams = item.Params
			}
			out.Artifacts = append(out.Artifacts, gateway.ArtifactDraft{
				Kind:      domain.ArtifactKindImage,
				Title:     item.Title,
				ImageData: item.Data,
				Metadata:  paramsJSON(item.Params),
			})
			if out.Change == nil {
				out.Change = &gateway.IterationChange{
					Kind:    gateway.ChangeRoot,
					Prompt:  in.Prompt,
					Payload: item.Data,
					Params:  paramsJSON(item.Params),
				}
				if in.Head != nil {
					out.Change.Kind = gateway.ChangeBranch
					out.Change.ParentID = in.Head.ID
				}
			}

		case OutputKindSpecification:
			text := item.Text
			if text == "" {
				p := mergeParams(designParams, item.Params)
				text = SpecificationText(paramFloat(p, "linear_meters"), paramString(p, "shape"), paramString(p, "style"))
			}
			out.Artifacts = append(out.Artifacts, gateway.ArtifactDraft{
				Kind:     domain.ArtifactKindSpecification,
				Title:    item.Title,
				Content:  text,
				Metadata: paramsJSON(item.Params),
			})

		case OutputKindCostEstimate:
			text := item.Text
			if text == "" {
				p := mergeParams(designParams, item.Params)
				text = CostEstimateText(paramFloat(p, "linear_meters"), paramString(p, "style"))
			}
			out.Artifacts = append(out.Artifacts, gateway.ArtifactDraft{
				Kind:     domain.ArtifactKindCostEstimate,
				Title:    item.Title,
				Content:  text,
				Metadata: paramsJSON(item.Params),
			})

		case OutputKindFloorPlan:
			data := item.Data
			if len(data) == 0 {
				p := mergeParams(designParams, item.Params)
				rendered, err := floorplan.Render(floorplan.Plan{
					LinearMeters: paramFloat(p, "linear_meters"),
					Shape:        paramString(p, "shape"),
				})
				if err != nil {
					deps.Log.Warn("floor plan render failed; skipping output", "error", err.Error())
					continue
				}
				data = rendered
			}
			out.Artifacts = append(out.Artifacts, gateway.ArtifactDraft{
				Kind:      domain.ArtifactKindFloorPlan,
				Title:     item.Title,
				ImageData: data,
				Metadata:  paramsJSON(item.Params),
			})

		case OutputKindMemory:
			if item.Text != "" {
				out.MemoryNotes = append(out.MemoryNotes, item.Text)
			}

		case OutputKindPreferences:
			if len(item.Params) > 0 {
				out.PreferenceUpdates = append(out.PreferenceUpdates, item.Params)
			}

		default:
			deps.Log.Warn("skipping engine output of unknown kind", "kind", item.Kind)
		}
	}

	out.DesignParams = designParams
	if out.Change != nil && in.CurrentTitle == domain.DefaultConversationTitle {
		out.Title = ConversationTitle(
			paramString(designParams, "style"),
			paramString(designParams, "shape"),
			paramFloat(designParams, "linear_meters"),
		)
	}
	return out, nil
}

func paramsJSON(params map[string]any) datatypes.JSON {
	if len(params) == 0 {
		return datatypes.JSON([]byte(`{}`))
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return datatypes.JSON([]byte(`{}`))
	}
	return datatypes.JSON(raw)
}

func mergeParams(base, overlay map[string]any) map[string]any {
	if len(base) == 0 {
		return overlay
	}
	if len(overlay) == 0 {
		return base
	}
	merged := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}
