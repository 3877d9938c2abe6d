package tools

import (
	"context"
	"fmt"
	"strings"

	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
)

// SQLQuerySchema defines the JSON schema for sql_query arguments.
const SQLQuerySchema = `{
  "type": "object",
  "properties": {
    "question": {"type": "string", "minLength": 1},
    "context": {"type": "string"},
    "sql": {"type": "string"}
  },
  "required": ["question"]
}`

const sqlWritePrompt = `You are a SQLite expert. Given an input question, write one syntactically correct SQLite query that answers it.
Unless the question asks for a specific number of rows, limit results to at most 5 rows with LIMIT.
Never select all columns from a table; only select the columns needed to answer the question, quoting identifiers with double quotes.
Only use the tables and columns described below, and pay attention to which column is in which table.
Use date('now') when the question involves "today".

Schema:
%s

Conversation context:
%s

Question: %s

Return only the SQL query.`

const sqlAnswerPrompt = `Answer the question using the information below.

Conversation context:
%s

Current question: %s
Generated SQL: %s
Database result: %s

Give a concise, professional answer in natural language. If the result is 0 or empty, say clearly that there are no matching records.`

// SQLQuery turns a question into SQL, runs it and explains the result.
type SQLQuery struct {
	store DataStore
	llm   LanguageModel
}

func NewSQLQuery(store DataStore, llm LanguageModel) *SQLQuery {
	return &SQLQuery{store: store, llm: llm}
}

func (t *SQLQuery) Describe() ports.ToolSpec {
	return ports.ToolSpec{
		Name:        NameSQLQuery,
		Description: "Convert a natural-language question into SQL, execute it and answer from the result. Use it whenever data must be retrieved from the database.",
		Parameters:  `{"question": "the user's question", "context": "(optional) conversation context", "sql": "(optional) SQL to run as-is"}`,
		JSONSchema:  []byte(SQLQuerySchema),
	}
}

func (t *SQLQuery) Execute(ctx context.Context, raw map[string]any) (ports.StepResult, error) {
	args := Args(raw)
	question := args.String("question", "")
	if question == "" {
		return ports.Failed("a question is required"), nil
	}
	convo := args.String("context", "None")

	schema, err := t.store.DescribeSchema(ctx)
	if err != nil {
		return ports.StepResult{}, fmt.Errorf("describe schema: %w", err)
	}

	src := querySource{store: t.store, llm: t.llm}
	query, tbl, failure, err := src.load(ctx, args.String("sql", ""), fmt.Sprintf(sqlWritePrompt, schema, convo, question))
	if failure != nil || err != nil {
		return deref(failure), err
	}

	rawResult := tbl.Tuples()
	answer, err := t.llm.Complete(ctx, fmt.Sprintf(sqlAnswerPrompt, convo, question, query, rawResult))
	if err != nil {
		return ports.StepResult{}, fmt.Errorf("answer query: %w", err)
	}

	return ports.StepResult{
		Success: true,
		Result:  strings.TrimSpace(answer),
		Data: map[string]any{
			"sql":        query,
			"raw_result": rawResult,
			"rows":       tbl.Len(),
		},
	}, nil
}

var _ ports.Tool = (*SQLQuery)(nil)
