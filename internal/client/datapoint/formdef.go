package datapoint

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/akvo/dws-datapro-sub000/internal/client/models"
)

// Question is the subset of a form definition the lifecycle manager needs:
// answer typing for normalization and the meta flag for name derivation.
type Question struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Meta bool   `json:"meta"`
}

type questionGroup struct {
	Questions []Question `json:"question"`
}

type formDefinition struct {
	QuestionGroups []questionGroup `json:"question_group"`
}

// FormDef indexes a form definition's questions by id for answer
// normalization on submit.
type FormDef struct {
	byID  map[int64]Question
	order []Question
}

// ParseFormDef decodes the stored form JSON. An empty blob yields a
// definition with no questions, which disables normalization.
func ParseFormDef(raw string) (*FormDef, error) {
	def := &FormDef{byID: map[int64]Question{}}
	if raw == "" {
		return def, nil
	}
	var parsed formDefinition
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse form definition: %w", err)
	}
	for _, group := range parsed.QuestionGroups {
		for _, q := range group.Questions {
			def.byID[q.ID] = q
			def.order = append(def.order, q)
		}
	}
	return def, nil
}

// question resolves an answer key back to its question. Keys may carry a
// repeat suffix, e.g. "12-1" is instance 1 of question 12.
func (d *FormDef) question(key string) (Question, bool) {
	base := key
	if i := strings.IndexByte(key, '-'); i >= 0 {
		base = key[:i]
	}
	id, err := strconv.ParseInt(base, 10, 64)
	if err != nil {
		return Question{}, false
	}
	q, ok := d.byID[id]
	return q, ok
}

// NormalizeAnswers applies per-type shaping before storage: cascade answers
// collapse to their leaf selection id, numeric answers are coerced to
// numbers. Unknown keys pass through untouched.
func (d *FormDef) NormalizeAnswers(answers models.AnswerMap) models.AnswerMap {
	normalized := make(models.AnswerMap, len(answers))
	for key, value := range answers {
		q, ok := d.question(key)
		if !ok {
			normalized[key] = value
			continue
		}
		switch q.Type {
		case "cascade":
			normalized[key] = cascadeLeaf(value)
		case "number":
			normalized[key] = coerceNumber(value)
		default:
			normalized[key] = value
		}
	}
	return normalized
}

// DisplayName derives a datapoint name from the meta-flagged answers, in
// question order, joined with " - ".
func (d *FormDef) DisplayName(answers models.AnswerMap) string {
	var parts []string
	for _, q := range d.order {
		if !q.Meta {
			continue
		}
		value, ok := answers[strconv.FormatInt(q.ID, 10)]
		if !ok || value == nil {
			continue
		}
		if s := stringify(value); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " - ")
}

// cascadeLeaf keeps only the final selection of a hierarchical answer. A
// selection path arrives as a list of levels; each level is either a bare
// id or an object carrying one.
func cascadeLeaf(value any) any {
	path, ok := value.([]any)
	if !ok || len(path) == 0 {
		return value
	}
	leaf := path[len(path)-1]
	if node, ok := leaf.(map[string]any); ok {
		if id, ok := node["id"]; ok {
			return id
		}
	}
	return leaf
}

func coerceNumber(value any) any {
	switch v := value.(type) {
	case float64, int, int64:
		return v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return value
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []any:
		var parts []string
		for _, item := range v {
			if s := stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "|")
	default:
		return fmt.Sprintf("%v", v)
	}
}
