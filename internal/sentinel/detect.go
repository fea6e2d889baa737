package sentinel

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/satstac/stac-sentinel/internal/collections"
)

// DetectFamily tells radar from optical metadata by its top-level keys:
// "missionId" marks a Sentinel-1 productInfo, "tiles", "tileDataGeometry",
// "tileOrigin" or "utmZone" Sentinel-2 metadata.
func DetectFamily(data []byte) (collections.Family, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", ErrUnknownFamily
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &keys); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnknownFamily, err)
	}

	if _, ok := keys["missionId"]; ok {
		return collections.Radar, nil
	}

	for _, key := range []string{"tiles", "tileDataGeometry", "tileOrigin", "utmZone"} {
		if _, ok := keys[key]; ok {
			return collections.Optical, nil
		}
	}

	return "", ErrUnknownFamily
}

// isObject reports whether data is a well-formed JSON object.
func isObject(data []byte) bool {
	trimmed := bytes.TrimSpace(data)

	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed)
}
