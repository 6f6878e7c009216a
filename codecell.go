package queryengine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
)

func init() {
	// "set" is an experimental Starlark builtin gated behind this flag; the
	// cell's allow-list names it explicitly (§4.10).
	resolve.AllowSet = true
}

// cellAllowedBuiltins is the exact pure-builtin allow-list §4.10 specifies.
var cellAllowedBuiltins = []string{
	"abs", "all", "any", "bool", "dict", "enumerate", "float", "int", "len",
	"list", "max", "min", "print", "range", "round", "set", "sorted", "str",
	"sum", "tuple", "zip",
}

// CellResult is the shaped output of Execute (§4.10).
type CellResult struct {
	Columns       []string         `json:"columns,omitempty"`
	Rows          []map[string]any `json:"rows,omitempty"`
	RowCount      int              `json:"rowCount"`
	ExecutionTime time.Duration    `json:"executionTime"`
	TextOutput    string           `json:"textOutput,omitempty"`
}

const cellMaxRows = 1000

// Execute runs an ad-hoc code snippet against dataset's full rows, bound as
// a defensive-copy `df` (C10, §4.10).
func (e *Engine) Execute(ctx context.Context, registry *DatasetRegistry, datasetID, code string) (*CellResult, error) {
	tableName, err := registry.Lookup(datasetID)
	if err != nil {
		return nil, err
	}
	rows, err := e.Query(ctx, fmt.Sprintf("SELECT * FROM %s", Quote(tableName)))
	if err != nil {
		return nil, NewInternalError("failed to load dataset for code cell", err)
	}

	frame := &starlarkFrame{Columns: rows.Columns, Rows: rows.Values}
	return e.executeCell(code, frame)
}

// executeCell runs an ad-hoc code snippet against a dataset frame in a
// restricted Starlark environment (C10, §4.10). The name environment is
// reconstructed on every call; nothing persists between cells.
func (e *Engine) executeCell(code string, frame *starlarkFrame) (*CellResult, error) {
	start := time.Now()

	predeclared := starlark.StringDict{
		"df": frame,
		"pd": newPandasModule(),
	}
	for _, name := range cellAllowedBuiltins {
		if v, ok := starlark.Universe[name]; ok {
			predeclared[name] = v
		}
	}

	var stdout strings.Builder
	thread := &starlark.Thread{
		Name: "cell",
		Print: func(_ *starlark.Thread, msg string) {
			stdout.WriteString(msg)
			stdout.WriteString("\n")
		},
	}

	setup, trailing, hasTrailing := splitTrailingExpression(code)

	globals, err := starlark.ExecFile(thread, "<cell>", setup, predeclared)
	if err != nil {
		return nil, NewInvalidRequestError(ErrCodeInvalidSpec, "code cell failed to execute").WithCause(err)
	}

	var result starlark.Value = starlark.None
	if hasTrailing {
		env := starlark.StringDict{}
		for k, v := range predeclared {
			env[k] = v
		}
		for k, v := range globals {
			env[k] = v
		}
		result, err = starlark.Eval(thread, "<cell-expr>", trailing, env)
		if err != nil {
			return nil, NewInvalidRequestError(ErrCodeInvalidSpec, "code cell's final expression failed to evaluate").WithCause(err)
		}
	}

	elapsed := time.Since(start)

	switch v := result.(type) {
	case *starlarkFrame:
		rows := v.Rows
		truncated := false
		if len(rows) > cellMaxRows {
			rows = rows[:cellMaxRows]
			truncated = true
		}
		outRows := make([]map[string]any, len(rows))
		for i, row := range rows {
			obj := make(map[string]any, len(v.Columns))
			for j, c := range v.Columns {
				obj[c] = normalizeCellValue(row[j])
			}
			outRows[i] = obj
		}
		text := stdout.String()
		if truncated {
			text += fmt.Sprintf("(truncated to %d rows)\n", cellMaxRows)
		}
		return &CellResult{Columns: v.Columns, Rows: outRows, RowCount: len(outRows), ExecutionTime: elapsed, TextOutput: strings.TrimSpace(text)}, nil

	case *starlarkSeries:
		rows := make([]map[string]any, 0, len(v.Values))
		for i, val := range v.Values {
			if i >= cellMaxRows {
				break
			}
			rows = append(rows, map[string]any{"index": i, "value": normalizeCellValue(val)})
		}
		return &CellResult{Columns: []string{"index", "value"}, Rows: rows, RowCount: len(rows), ExecutionTime: elapsed, TextOutput: strings.TrimSpace(stdout.String())}, nil

	default:
		text := stdout.String()
		if hasTrailing {
			text = strings.TrimSpace(text + "\n" + result.String())
		} else {
			text = strings.TrimSpace(text)
		}
		return &CellResult{RowCount: 0, ExecutionTime: elapsed, TextOutput: text}, nil
	}
}

// splitTrailingExpression separates a best-effort "setup" statement block
// from a final bare expression, emulating the "last expression is the
// returned value" convention code cells are expected to offer even though
// Starlark itself has no REPL-style implicit return. Only a simple,
// unindented, assignment-free final line is treated as the trailing
// expression; anything else runs as ordinary statements with no return
// value, matching the restricted Python dialect's normal semantics.
func splitTrailingExpression(code string) (setup string, trailing string, ok bool) {
	lines := strings.Split(code, "\n")
	lastIdx := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			lastIdx = i
			break
		}
	}
	if lastIdx < 0 {
		return code, "", false
	}

	raw := lines[lastIdx]
	trimmedLine := strings.TrimSpace(raw)

	if strings.TrimLeft(raw, " \t") != raw {
		// indented line: part of a block, not a standalone trailing expr.
		return code, "", false
	}
	if strings.HasSuffix(trimmedLine, ":") {
		return code, "", false
	}
	if looksLikeStatement(trimmedLine) {
		return code, "", false
	}
	if containsTopLevelAssignment(trimmedLine) {
		return code, "", false
	}

	setup = strings.Join(lines[:lastIdx], "\n")
	return setup, trimmedLine, true
}

var statementKeywordPrefixes = []string{
	"if ", "for ", "while ", "def ", "return", "break", "continue", "pass",
	"load(", "#", "elif ", "else", "import ",
}

func looksLikeStatement(line string) bool {
	for _, prefix := range statementKeywordPrefixes {
		if strings.HasPrefix(line, prefix) || line == strings.TrimSuffix(prefix, " ") {
			return true
		}
	}
	return false
}

func containsTopLevelAssignment(line string) bool {
	stripped := strings.NewReplacer("==", "", "!=", "", "<=", "", ">=", "").Replace(line)
	depth := 0
	for _, r := range stripped {
		switch r {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '=':
			if depth == 0 {
				return true
			}
		}
	}
	return false
}

// normalizeCellValue applies §4.10's NaN/Inf -> null, date -> ISO rule.
func normalizeCellValue(v any) any {
	switch val := v.(type) {
	case float64:
		return normalizeFloat(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return val
	}
}
