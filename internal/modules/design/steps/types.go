package steps

import (
	"strings"
)

// Engine output kinds. The first four become artifacts; the rest steer the
// turn without being persisted as artifacts.
const (
	OutputKindText          = "text"
	OutputKindImage         = "image"
	OutputKindSpecification = "specification"
	OutputKindCostEstimate  = "cost_estimate"
	OutputKindFloorPlan     = "floor_plan"
	OutputKindMemory        = "memory"
	OutputKindPreferences   = "preferences"
)

const (
	// DefaultWindowSize bounds how many recent messages the session context
	// carries.
	DefaultWindowSize = 20
	// DefaultRecallK bounds how many memories recall contributes.
	DefaultRecallK = 5
)

func paramString(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	v, ok := params[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func paramFloat(params map[string]any, key string) float64 {
	if params == nil {
		return 0
	}
	switch v := params[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}
