package inference

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
)

// modelVerdict is the JSON object the model is asked to return.
type modelVerdict struct {
	Ramp   *bool   `json:"ramp"`
	Curb   *bool   `json:"curb"`
	Reason *string `json:"reason,omitempty"`
}

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// parseVerdict extracts a label from model output. The output may be bare
// JSON, fenced JSON, or prose around a JSON object. Both fields must be
// present.
func parseVerdict(text string) (core.Label, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return core.Label{}, core.ErrInference(core.CodeUnparseable, "empty model response")
	}

	candidates := []string{text}
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		candidates = append(candidates, text[start:end+1])
	}

	for _, c := range candidates {
		var v modelVerdict
		if err := json.Unmarshal([]byte(c), &v); err != nil {
			continue
		}
		if v.Ramp == nil || v.Curb == nil {
			return core.Label{}, core.ErrInference(core.CodeUndetermined, "model could not determine ramp and curb")
		}
		return core.Label{Ramp: *v.Ramp, Curb: *v.Curb}, nil
	}
	return core.Label{}, core.ErrInference(core.CodeUnparseable, fmt.Sprintf("unparseable model response: %.120q", text))
}

var extensionMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".heic": "image/heic",
	".heif": "image/heif",
}

// detectMIME guesses the media type from the reference path, then from the
// content itself.
func detectMIME(ref core.EvidenceRef, data []byte) string {
	p := string(ref)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if mt, ok := extensionMIME[strings.ToLower(path.Ext(p))]; ok {
		return mt
	}
	mt := http.DetectContentType(data)
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = mt[:i]
	}
	return strings.TrimSpace(mt)
}
