package exam

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/stemsi/examhall/internal/model"
)

// Question documents come from several authoring tools and imports, so the
// same field shows up under different spellings. Keys are compared after
// folding case and dropping '_', '-' and spaces.
var (
	promptKeys  = []string{"prompt", "question", "questiontext", "text", "body", "stem"}
	imageKeys   = []string{"imageref", "imageurl", "image", "img", "questionimage"}
	optionKeys  = []string{"options", "choices"}
	correctKeys = []string{"correctanswer", "correct", "answer", "correctoption", "rightanswer", "key"}
	subjectKeys = []string{"subject"}
	topicKeys   = []string{"topic", "chapter"}
)

const maxSplitOptions = 10

// DefinitionFromDocument normalizes every stored question and returns the
// loaded definition. The first malformed question fails the whole exam.
func DefinitionFromDocument(doc *model.ExamDocument) (*model.ExamDefinition, error) {
	questions, err := NormalizeQuestions(doc.Questions)
	if err != nil {
		return nil, err
	}
	return &model.ExamDefinition{
		ID:              doc.ID,
		Title:           doc.Title,
		ScheduledAt:     doc.ScheduledAt,
		DurationMinutes: doc.DurationMinutes,
		Marking:         doc.Marking,
		AllowedClasses:  doc.AllowedClasses,
		Status:          doc.Status,
		Questions:       questions,
	}, nil
}

// NormalizeQuestions normalizes raw question documents, keeping their order.
func NormalizeQuestions(raws []json.RawMessage) ([]model.Question, error) {
	out := make([]model.Question, 0, len(raws))
	for i, raw := range raws {
		q, err := NormalizeQuestion(raw)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		out = append(out, q)
	}
	return out, nil
}

// NormalizeQuestion folds one raw question document into a canonical Question.
func NormalizeQuestion(raw json.RawMessage) (model.Question, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil || doc == nil {
		return model.Question{}, fmt.Errorf("%w: not a JSON object", ErrMalformedQuestion)
	}

	fields := make(map[string]any, len(doc))
	for k, v := range doc {
		fields[foldKey(k)] = v
	}

	q := model.Question{
		Prompt:   pickString(fields, promptKeys),
		ImageRef: pickString(fields, imageKeys),
		Subject:  pickString(fields, subjectKeys),
		Topic:    pickString(fields, topicKeys),
	}

	options, keyed, err := pickOptions(fields)
	if err != nil {
		return model.Question{}, err
	}
	if len(options) == 0 {
		return model.Question{}, fmt.Errorf("%w: no options", ErrMalformedQuestion)
	}
	if q.Prompt == "" && q.ImageRef == "" {
		return model.Question{}, fmt.Errorf("%w: neither prompt nor image", ErrMalformedQuestion)
	}
	q.Options = options

	key := pickString(fields, correctKeys)
	if text, ok := keyed[strings.ToUpper(key)]; ok && key != "" {
		q.CorrectAnswer = text
	} else {
		q.CorrectAnswer = resolveCorrect(key, options)
	}
	return q, nil
}

func foldKey(k string) string {
	var b strings.Builder
	b.Grow(len(k))
	for _, r := range strings.ToLower(k) {
		switch r {
		case '_', '-', ' ':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func pickString(fields map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			if s := scalarString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// pickOptions accepts an array, a keyed object, or split option1..N /
// optionA..J fields. Options keep their positions: trailing blanks are
// dropped and a blank in the middle makes the question malformed. For a keyed
// object it also returns the options by upper-cased key.
func pickOptions(fields map[string]any) ([]string, map[string]string, error) {
	for _, k := range optionKeys {
		v, ok := fields[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case []any:
			raw := make([]string, len(t))
			for i, item := range t {
				raw[i] = optionText(item)
			}
			opts, err := positional(raw)
			if err != nil || len(opts) > 0 {
				return opts, nil, err
			}
		case map[string]any:
			keys := sortedOptionKeys(t)
			raw := make([]string, len(keys))
			for i, key := range keys {
				raw[i] = optionText(t[key])
			}
			opts, err := positional(raw)
			if err != nil {
				return nil, nil, err
			}
			if len(opts) == 0 {
				continue
			}
			keyed := make(map[string]string, len(opts))
			for i, text := range opts {
				keyed[strings.ToUpper(strings.TrimSpace(keys[i]))] = text
			}
			return opts, keyed, nil
		}
	}

	raw := make([]string, maxSplitOptions)
	for i := range raw {
		raw[i] = scalarString(fields["option"+strconv.Itoa(i+1)])
	}
	opts, err := positional(raw)
	if err != nil || len(opts) > 0 {
		return opts, nil, err
	}
	for i := range raw {
		raw[i] = scalarString(fields["option"+string(rune('a'+i))])
	}
	opts, err = positional(raw)
	return opts, nil, err
}

func positional(raw []string) ([]string, error) {
	n := len(raw)
	for n > 0 && raw[n-1] == "" {
		n--
	}
	for i, s := range raw[:n] {
		if s == "" {
			return nil, fmt.Errorf("%w: option %d is blank", ErrMalformedQuestion, i+1)
		}
	}
	return raw[:n], nil
}

// sortedOptionKeys orders numeric keys by value and any other keys
// alphabetically, ignoring case.
func sortedOptionKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	numeric := true
	for key := range m {
		keys = append(keys, key)
		if _, err := strconv.Atoi(strings.TrimSpace(key)); err != nil {
			numeric = false
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if numeric {
			a, _ := strconv.Atoi(strings.TrimSpace(keys[i]))
			b, _ := strconv.Atoi(strings.TrimSpace(keys[j]))
			return a < b
		}
		return strings.ToUpper(keys[i]) < strings.ToUpper(keys[j])
	})
	return keys
}

// optionText reads an option that is either a scalar or an object like {"text": "..."}.
func optionText(v any) string {
	if obj, ok := v.(map[string]any); ok {
		for k, inner := range obj {
			switch foldKey(k) {
			case "text", "label", "value", "option":
				return scalarString(inner)
			}
		}
		return ""
	}
	return scalarString(v)
}

// resolveCorrect returns the option text the answer key refers to. A key that
// literally matches an option wins; otherwise a letter (A, B, ...) or a
// 1-based number is mapped to the option at that position. Anything else is
// kept verbatim and simply never matches.
func resolveCorrect(key string, options []string) string {
	if key == "" {
		return ""
	}
	for _, opt := range options {
		if opt == key {
			return key
		}
	}
	if len(key) == 1 {
		c := strings.ToUpper(key)[0]
		if c >= 'A' && c <= 'Z' {
			if idx := int(c - 'A'); idx < len(options) {
				return options[idx]
			}
		}
	}
	if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= len(options) {
		return options[n-1]
	}
	return key
}
