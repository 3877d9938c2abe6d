package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// GeneralChat is the pseudo-tool a plan uses to mean "answer directly".
const GeneralChat = "general_chat"

const planParseFailed = "plan could not be parsed"

// PlanStep is one tool call proposed by the planner.
type PlanStep struct {
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args"`
	Reason string         `json:"reason"`
}

// IsGeneralChat reports whether plan is the single-step "no tools" plan.
func IsGeneralChat(plan []PlanStep) bool {
	return len(plan) == 1 && plan[0].Tool == GeneralChat
}

var (
	fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	firstArray  = regexp.MustCompile(`(?s)\[.*\]`)
)

// ExtractPlan turns raw model output into plan steps. It never fails:
// output that cannot be read as a plan becomes a general_chat step
// carrying the raw text.
func ExtractPlan(raw string) []PlanStep {
	text := strings.TrimSpace(raw)
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	if plan, ok := decodePlan(text); ok {
		return plan
	}

	if match := firstArray.FindString(raw); match != "" {
		if plan, ok := decodePlan(match); ok {
			return plan
		}
		if plan, ok := decodePlan(fixJSON(match)); ok {
			return plan
		}
	}

	return []PlanStep{{
		Tool:   GeneralChat,
		Args:   map[string]any{"message": raw},
		Reason: planParseFailed,
	}}
}

// decodePlan accepts a JSON array of steps or a single step object.
func decodePlan(text string) ([]PlanStep, bool) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, false
	}

	var items []any
	switch x := v.(type) {
	case []any:
		items = x
	case map[string]any:
		items = []any{x}
	default:
		return nil, false
	}

	plan := make([]PlanStep, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		step := PlanStep{
			Tool:   strings.TrimSpace(asString(obj["tool"])),
			Reason: asString(obj["reason"]),
		}
		if step.Tool == "" {
			continue
		}
		if args, ok := obj["args"].(map[string]any); ok {
			step.Args = args
		} else {
			step.Args = map[string]any{}
		}
		plan = append(plan, step)
	}
	return plan, true
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// fixJSON repairs the usual model slips outside string literals: trailing
// commas, unquoted object keys and single-quoted strings. Text inside string
// values is copied through unchanged.
func fixJSON(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	rs := []rune(s)
	expectKey := false
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case r == '"' || r == '\'':
			end := scanString(rs, i)
			writeString(&b, rs[i+1:end], r)
			i = end
			expectKey = false
		case r == '{':
			b.WriteRune(r)
			expectKey = true
		case r == ',':
			j := skipSpace(rs, i+1)
			if j < len(rs) && (rs[j] == '}' || rs[j] == ']') {
				continue
			}
			b.WriteRune(r)
			expectKey = true
		case expectKey && isIdentStart(r):
			j := i
			for j < len(rs) && isIdentPart(rs[j]) {
				j++
			}
			if k := skipSpace(rs, j); k < len(rs) && rs[k] == ':' {
				b.WriteByte('"')
				b.WriteString(string(rs[i:j]))
				b.WriteByte('"')
			} else {
				b.WriteString(string(rs[i:j]))
			}
			i = j - 1
			expectKey = false
		default:
			b.WriteRune(r)
			if !unicode.IsSpace(r) {
				expectKey = false
			}
		}
	}
	return b.String()
}

// scanString returns the index of the quote closing the string opened at i,
// or len(rs) when it is unterminated.
func scanString(rs []rune, i int) int {
	quote := rs[i]
	for j := i + 1; j < len(rs); j++ {
		switch rs[j] {
		case '\\':
			j++
		case quote:
			return j
		}
	}
	return len(rs)
}

// writeString emits body as a double-quoted literal.
func writeString(b *strings.Builder, body []rune, quote rune) {
	b.WriteByte('"')
	for i := 0; i < len(body); i++ {
		r := body[i]
		switch {
		case r == '\\' && i+1 < len(body):
			if quote == '\'' && body[i+1] == '\'' {
				b.WriteRune('\'')
			} else {
				b.WriteRune(r)
				b.WriteRune(body[i+1])
			}
			i++
		case r == '"' && quote == '\'':
			b.WriteString(`\"`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
}

func skipSpace(rs []rune, i int) int {
	for i < len(rs) && unicode.IsSpace(rs[i]) {
		i++
	}
	return i
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}
