package client

// normalizeSamplingParams reshapes a raw sampling/createMessage params
// object into the fields a handler actually needs: messages, an optional
// systemPrompt and maxTokens, a clamped/filtered modelPreferences, and a
// params bag holding exactly includeContext/temperature/stopSequences/
// metadata, per §4.6.5.
func normalizeSamplingParams(raw map[string]any) map[string]any {
	out := map[string]any{
		"messages":     raw["messages"],
		"systemPrompt": raw["systemPrompt"],
		"maxTokens":    raw["maxTokens"],
	}
	if prefs, ok := raw["modelPreferences"].(map[string]any); ok {
		out["modelPreferences"] = normalizeModelPreferences(prefs)
	}

	bag := map[string]any{}
	for _, k := range []string{"includeContext", "temperature", "stopSequences", "metadata"} {
		if v, ok := raw[k]; ok {
			bag[k] = v
		}
	}
	out["params"] = bag
	return out
}

// normalizeModelPreferences clamps the three priority hints to [0,1] and
// filters hints down to {name: string}, dropping anything else a server
// sent that isn't part of the MCP ModelHint shape.
func normalizeModelPreferences(prefs map[string]any) map[string]any {
	out := map[string]any{}
	for _, key := range []string{"costPriority", "speedPriority", "intelligencePriority"} {
		if v, ok := asFloat(prefs[key]); ok {
			out[key] = clamp01(v)
		}
	}

	if rawHints, ok := prefs["hints"].([]any); ok {
		hints := make([]map[string]any, 0, len(rawHints))
		for _, h := range rawHints {
			hm, ok := h.(map[string]any)
			if !ok {
				continue
			}
			name, ok := hm["name"].(string)
			if !ok {
				continue
			}
			hints = append(hints, map[string]any{"name": name})
		}
		out["hints"] = hints
	}
	return out
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// normalizeSamplingResult fills in the defaults the MCP createMessage
// result requires so a handler that only cares about content doesn't
// have to restate the rest of the envelope.
func normalizeSamplingResult(result map[string]any) map[string]any {
	if _, ok := result["role"]; !ok {
		result["role"] = "assistant"
	}
	if content, ok := result["content"]; !ok {
		result["content"] = map[string]any{"type": "text", "text": ""}
	} else if s, ok := content.(string); ok {
		result["content"] = map[string]any{"type": "text", "text": s}
	}
	if _, ok := result["model"]; !ok {
		result["model"] = "unknown"
	}
	if _, ok := result["stopReason"]; !ok {
		result["stopReason"] = "endTurn"
	}
	return result
}
