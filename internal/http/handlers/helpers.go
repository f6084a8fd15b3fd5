package handlers

import (
	"encoding/json"
	"errors"

	"gorm.io/datatypes"
)

var errEmptyMessage = errors.New("message must not be empty")

func decodeMetadata(raw datatypes.JSON) map[string]any {
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
