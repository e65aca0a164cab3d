package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"

	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/domain"
)

// KeySeparator joins parent and child keys when flattening.
const KeySeparator = "."

var thinkPattern = regexp.MustCompile(`(?s)<think\s*>.*?</think\s*>`)

// StripReasoning removes <think>...</think> regions some models emit ahead
// of the answer.
func StripReasoning(s string) string {
	return thinkPattern.ReplaceAllString(s, "")
}

// PostProcess turns raw model output into the stored result. doc and form
// output must be a JSON object whose kv member is flattened; fill output is
// returned as is.
func PostProcess(taskType domain.TaskType, raw string) (string, error) {
	text := StripReasoning(raw)
	if taskType == domain.TaskTypeFill {
		return text, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return "", fmt.Errorf("%w: output is not a json object: %v", ErrLLMFailure, err)
	}
	if out == nil {
		return "", fmt.Errorf("%w: output is null", ErrLLMFailure)
	}
	kv, ok := out["kv"]
	if !ok {
		return "", fmt.Errorf("%w: output has no kv member", ErrLLMFailure)
	}
	switch kv.(type) {
	case map[string]any, []any:
	default:
		return "", fmt.Errorf("%w: kv is %T, want object", ErrLLMFailure, kv)
	}
	out["kv"] = Flatten(kv)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return "", fmt.Errorf("%w: encode result: %v", ErrLLMFailure, err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// Flatten collapses nested objects and arrays into a single-level map keyed
// by dotted paths. Array elements use 1-based indices. Empty containers
// produce no keys. A scalar at the root is stored under "".
func Flatten(v any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", v)
	return out
}

func flattenInto(out map[string]any, prefix string, v any) {
	switch node := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		// Sorted so a colliding path resolves the same way every time.
		slices.Sort(keys)
		for _, k := range keys {
			flattenInto(out, join(prefix, k), node[k])
		}
	case []any:
		for i, child := range node {
			flattenInto(out, join(prefix, strconv.Itoa(i+1)), child)
		}
	default:
		out[prefix] = node
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + KeySeparator + key
}
