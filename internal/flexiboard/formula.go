package flexiboard

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starford/flexiboard/internal/models"
)

// FormulaError is the cell value of a formula that failed to evaluate.
const FormulaError = "#ERROR"

const programCacheSize = 1024

var (
	refRe   = regexp.MustCompile(`\{([^}]+)\}`)
	todayRe = regexp.MustCompile(`\bTODAY\(\s*\)`)
	nowRe   = regexp.MustCompile(`\bNOW\(\s*\)`)

	programs *lru.Cache[string, *vm.Program]
)

func init() {
	var err error
	programs, err = lru.New[string, *vm.Program](programCacheSize)
	if err != nil {
		panic(err)
	}
}

// formulaFuncs are the spreadsheet-style built-ins. TODAY and NOW are
// rewritten to environment variables so cached programs stay clock-free.
var formulaFuncs = []expr.Option{
	expr.Function("SUM", func(params ...any) (any, error) {
		var sum float64
		for _, v := range flatten(params) {
			if f, ok := toFloat(v); ok {
				sum += f
			}
		}
		return sum, nil
	}),
	expr.Function("AVG", func(params ...any) (any, error) {
		var sum float64
		var n int
		for _, v := range flatten(params) {
			if isNumber(v) {
				f, _ := toFloat(v)
				sum += f
				n++
			}
		}
		if n == 0 {
			return 0.0, nil
		}
		return sum / float64(n), nil
	}),
	expr.Function("COUNT", func(params ...any) (any, error) {
		n := 0
		for _, v := range flatten(params) {
			if v != nil {
				n++
			}
		}
		return float64(n), nil
	}),
	expr.Function("MIN", func(params ...any) (any, error) {
		return extreme(flatten(params), func(a, b float64) bool { return a < b }), nil
	}),
	expr.Function("MAX", func(params ...any) (any, error) {
		return extreme(flatten(params), func(a, b float64) bool { return a > b }), nil
	}),
	expr.Function("IF", func(params ...any) (any, error) {
		if len(params) < 2 {
			return nil, errors.New("IF needs a condition and a value")
		}
		if !isEmpty(params[0]) {
			return params[1], nil
		}
		if len(params) > 2 {
			return params[2], nil
		}
		return nil, nil
	}),
	expr.Function("AND", func(params ...any) (any, error) {
		for _, p := range params {
			if isEmpty(p) {
				return false, nil
			}
		}
		return true, nil
	}),
	expr.Function("OR", func(params ...any) (any, error) {
		for _, p := range params {
			if !isEmpty(p) {
				return true, nil
			}
		}
		return false, nil
	}),
	expr.Function("NOT", func(params ...any) (any, error) {
		if len(params) != 1 {
			return nil, errors.New("NOT takes one argument")
		}
		return isEmpty(params[0]), nil
	}),
	expr.Function("CONCATENATE", func(params ...any) (any, error) {
		var sb strings.Builder
		for _, p := range params {
			sb.WriteString(toString(p))
		}
		return sb.String(), nil
	}),
	expr.Function("UPPER", func(params ...any) (any, error) {
		if len(params) == 0 {
			return "", nil
		}
		return strings.ToUpper(toString(params[0])), nil
	}),
	expr.Function("LOWER", func(params ...any) (any, error) {
		if len(params) == 0 {
			return "", nil
		}
		return strings.ToLower(toString(params[0])), nil
	}),
	expr.Function("LEN", func(params ...any) (any, error) {
		if len(params) == 0 {
			return 0.0, nil
		}
		return float64(len([]rune(toString(params[0])))), nil
	}),
	expr.Function("ROUND", func(params ...any) (any, error) {
		if len(params) == 0 {
			return nil, errors.New("ROUND needs a value")
		}
		f, ok := toFloat(params[0])
		if !ok {
			return nil, fmt.Errorf("ROUND: %v is not a number", params[0])
		}
		digits := 0.0
		if len(params) > 1 {
			digits, _ = toFloat(params[1])
		}
		p := math.Pow(10, digits)
		return math.Round(f*p) / p, nil
	}),
	expr.Function("DATEADD", func(params ...any) (any, error) {
		if len(params) < 2 {
			return nil, errors.New("DATEADD needs a date and an amount")
		}
		t, ok := toTime(params[0])
		if !ok {
			return nil, fmt.Errorf("DATEADD: %v is not a date", params[0])
		}
		n, ok := toFloat(params[1])
		if !ok {
			return nil, fmt.Errorf("DATEADD: %v is not a number", params[1])
		}
		unit := "days"
		if len(params) > 2 {
			unit = strings.ToLower(toString(params[2]))
		}
		switch unit {
		case "hours", "hour":
			return t.Add(time.Duration(n * float64(time.Hour))), nil
		case "days", "day":
			return t.AddDate(0, 0, int(n)), nil
		case "weeks", "week":
			return t.AddDate(0, 0, 7*int(n)), nil
		case "months", "month":
			return t.AddDate(0, int(n), 0), nil
		case "years", "year":
			return t.AddDate(int(n), 0, 0), nil
		}
		return nil, fmt.Errorf("DATEADD: unknown unit %q", unit)
	}),
}

func flatten(params []any) []any {
	out := make([]any, 0, len(params))
	for _, p := range params {
		if list, ok := p.([]any); ok {
			out = append(out, flatten(list)...)
			continue
		}
		out = append(out, p)
	}
	return out
}

func extreme(values []any, better func(a, b float64) bool) float64 {
	var best float64
	found := false
	for _, v := range values {
		if !isNumber(v) {
			continue
		}
		f, _ := toFloat(v)
		if !found || better(f, best) {
			best = f
			found = true
		}
	}
	return best
}

// compileFormula rewrites column references to identifiers and compiles
// the result, reusing cached programs. refs lists the referenced column
// tokens in identifier order.
func compileFormula(expression string) (*vm.Program, []string, error) {
	var refs []string
	seen := make(map[string]string)
	code := refRe.ReplaceAllStringFunc(expression, func(m string) string {
		ref := strings.TrimSpace(m[1 : len(m)-1])
		if id, ok := seen[ref]; ok {
			return id
		}
		id := fmt.Sprintf("__c%d", len(refs))
		seen[ref] = id
		refs = append(refs, ref)
		return id
	})
	code = todayRe.ReplaceAllString(code, "__today")
	code = nowRe.ReplaceAllString(code, "__now")

	if p, ok := programs.Get(code); ok {
		return p, refs, nil
	}
	p, err := expr.Compile(code, formulaFuncs...)
	if err != nil {
		return nil, nil, err
	}
	programs.Add(code, p)
	return p, refs, nil
}

// EvalFormula evaluates expression for item. References are resolved by
// column id or title; missing values read as 0.
func (e *Engine) EvalFormula(expression string, item *models.Item) (any, error) {
	program, refs, err := compileFormula(expression)
	if err != nil {
		return nil, err
	}
	now := e.now()
	env := map[string]any{
		"__now":   now,
		"__today": time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
	}
	for i, ref := range refs {
		var v any
		if c := e.board.ColumnByRef(ref); c != nil && item != nil {
			v = item.Data[c.ID]
		}
		if v == nil {
			v = 0.0
		}
		env[fmt.Sprintf("__c%d", i)] = normalizeNumber(v)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, err
	}
	return normalizeNumber(out), nil
}

// evaluateFormula is the formula column evaluator. Failures are logged and
// reported as FormulaError.
func (e *Engine) evaluateFormula(col *models.Column, item *models.Item) any {
	if col.Formula == nil || strings.TrimSpace(col.Formula.Expression) == "" {
		return nil
	}
	out, err := e.EvalFormula(col.Formula.Expression, item)
	if err == nil {
		out, err = castResult(out, col.Formula.ResultType)
	}
	if err != nil {
		e.logger.Debug("formula error",
			slog.String("board_id", e.board.ID),
			slog.String("column_id", col.ID),
			slog.String("error", err.Error()))
		return FormulaError
	}
	return out
}

func normalizeNumber(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case int32:
		return float64(x)
	case float32:
		return float64(x)
	}
	return v
}

func castResult(v any, resultType string) (any, error) {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil, fmt.Errorf("non-finite result %v", f)
	}
	switch resultType {
	case "number":
		f, ok := toFloat(v)
		if !ok || math.IsNaN(f) {
			return 0.0, nil
		}
		return f, nil
	case "text":
		return toString(v), nil
	case "date":
		t, ok := toTime(v)
		if !ok {
			return nil, fmt.Errorf("%v is not a date", v)
		}
		return t.Format(time.RFC3339), nil
	case "boolean":
		return !isEmpty(v), nil
	}
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339), nil
	}
	return v, nil
}
