package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
	"github.com/ZanzyTHEbar/insight-agent/insight/datastore"
)

var (
	sqlFence     = regexp.MustCompile("(?s)```sql\\s*(.*?)(?:```|$)")
	genericFence = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)(?:```|$)")
	selectWord   = regexp.MustCompile(`(?i)\bselect\b`)
)

// ExtractSQL pulls a SELECT statement out of a model response. It strips a
// fenced block, starts at the first SELECT and drops a trailing semicolon.
func ExtractSQL(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if m := sqlFence.FindStringSubmatch(text); m != nil {
		text = m[1]
	} else if m := genericFence.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	loc := selectWord.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	query := strings.TrimSpace(text[loc[0]:])
	query = strings.TrimSpace(strings.TrimRight(query, "; \n\t"))
	if query == "" {
		return "", false
	}
	return query, true
}

// querySource resolves the SQL for a tool call: the caller-supplied query, or
// one generated from prompt. A nil result with a non-nil failure means the
// tool should report that failure.
type querySource struct {
	store DataStore
	llm   LanguageModel
}

func (q querySource) load(ctx context.Context, sqlText, prompt string) (query string, tbl *datastore.Table, failure *ports.StepResult, err error) {
	query = strings.TrimSpace(sqlText)
	if query == "" {
		response, err := q.llm.Complete(ctx, prompt)
		if err != nil {
			return "", nil, nil, fmt.Errorf("generate sql: %w", err)
		}
		var ok bool
		if query, ok = ExtractSQL(response); !ok {
			f := ports.Failed("could not generate SQL for this request")
			return "", nil, &f, nil
		}
	}

	tbl, err = q.store.RunQuery(ctx, query)
	if err != nil {
		f := ports.Failed("SQL execution failed: %v", err)
		f.Data = map[string]any{"sql": query}
		return query, nil, &f, nil
	}
	if tbl.Empty() {
		f := ports.Failed("query returned no data")
		f.Data = map[string]any{"sql": query}
		return query, nil, &f, nil
	}
	return query, tbl, nil, nil
}
