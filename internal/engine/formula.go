package engine

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// ValueSet maps placeholder names (e.g. "weight", "medicine[0].dosage")
// to resolved scalars. Built once per rendering and read-only afterwards.
type ValueSet map[string]any

// EvalError is a typed formula failure: leftover identifiers after
// substitution, or an invalid expression. Callers treat the computed
// answer as absent rather than scoring against garbage.
type EvalError struct {
	Formula string
	Reason  string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluate %q: %s", e.Formula, e.Reason)
}

// EvaluateFormula substitutes every value-set key into the formula and
// evaluates the remaining arithmetic expression. Keys are replaced on
// word boundaries, longest key first, so a scalar name that is a prefix
// of a dotted entity key can never clobber it.
func EvaluateFormula(formula string, values ValueSet) (float64, error) {
	expr := substituteValues(formula, values)
	res, err := evalExpr(expr)
	if err != nil {
		return 0, &EvalError{Formula: formula, Reason: err.Error()}
	}
	return res, nil
}

// EvaluateCondition evaluates a boolean expression over the value set.
// Any nonzero result is true.
func EvaluateCondition(cond string, values ValueSet) (bool, error) {
	res, err := EvaluateFormula(cond, values)
	if err != nil {
		return false, err
	}
	return res != 0, nil
}

func substituteValues(formula string, values ValueSet) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	// longest (most specific) first, ties alphabetical for determinism
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	expr := formula
	for _, k := range keys {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `\b`)
		expr = re.ReplaceAllLiteralString(expr, FormatValue(values[k]))
	}
	return expr
}

// --- restricted arithmetic evaluator ---
//
// Grammar (no identifiers, no calls other than round):
//
//	expr    := or ('?' expr ':' expr)?
//	or      := and ('||' and)*
//	and     := cmp ('&&' cmp)*
//	cmp     := sum (('=='|'!='|'<='|'>='|'<'|'>') sum)?
//	sum     := term (('+'|'-') term)*
//	term    := power (('*'|'/') power)*
//	power   := unary ('^' power)?
//	unary   := '-' unary | primary
//	primary := number | '(' expr ')' | 'round' '(' expr (',' expr)? ')'
//
// Booleans evaluate to 1 or 0.

type exprParser struct {
	src []rune
	pos int
}

func evalExpr(s string) (float64, error) {
	p := &exprParser{src: []rune(s)}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return 0, fmt.Errorf("unexpected %q at offset %d", string(p.src[p.pos]), p.pos)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("result is not a finite number")
	}
	return v, nil
}

func (p *exprParser) parseExpr() (float64, error) {
	cond, err := p.parseOr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if !p.consume('?') {
		return cond, nil
	}
	thenV, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if !p.consume(':') {
		return 0, fmt.Errorf("expected ':' in conditional")
	}
	elseV, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if cond != 0 {
		return thenV, nil
	}
	return elseV, nil
}

func (p *exprParser) parseOr() (float64, error) {
	v, err := p.parseAnd()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		if !p.consumeWord("||") {
			return v, nil
		}
		rhs, err := p.parseAnd()
		if err != nil {
			return 0, err
		}
		v = boolToFloat(v != 0 || rhs != 0)
	}
}

func (p *exprParser) parseAnd() (float64, error) {
	v, err := p.parseCmp()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		if !p.consumeWord("&&") {
			return v, nil
		}
		rhs, err := p.parseCmp()
		if err != nil {
			return 0, err
		}
		v = boolToFloat(v != 0 && rhs != 0)
	}
}

func (p *exprParser) parseCmp() (float64, error) {
	lhs, err := p.parseSum()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	var op string
	for _, cand := range []string{"==", "!=", "<=", ">=", "<", ">"} {
		if p.consumeWord(cand) {
			op = cand
			break
		}
	}
	if op == "" {
		return lhs, nil
	}
	rhs, err := p.parseSum()
	if err != nil {
		return 0, err
	}
	switch op {
	case "==":
		return boolToFloat(lhs == rhs), nil
	case "!=":
		return boolToFloat(lhs != rhs), nil
	case "<=":
		return boolToFloat(lhs <= rhs), nil
	case ">=":
		return boolToFloat(lhs >= rhs), nil
	case "<":
		return boolToFloat(lhs < rhs), nil
	default:
		return boolToFloat(lhs > rhs), nil
	}
}

func (p *exprParser) parseSum() (float64, error) {
	v, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch {
		case p.consume('+'):
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v += rhs
		case p.consume('-'):
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v -= rhs
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	v, err := p.parsePower()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch {
		case p.consume('*'):
			rhs, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			v *= rhs
		case p.consume('/'):
			rhs, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			v /= rhs
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parsePower() (float64, error) {
	base, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.consume('^') {
		exp, err := p.parsePower() // right-associative
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *exprParser) parseUnary() (float64, error) {
	p.skipSpace()
	if p.consume('-') {
		v, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return -v, nil
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (float64, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0, fmt.Errorf("unexpected end of expression")
	}
	if p.consume('(') {
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if !p.consume(')') {
			return 0, fmt.Errorf("missing ')'")
		}
		return v, nil
	}
	if p.consumeWord("round") {
		return p.parseRound()
	}
	return p.parseNumber()
}

func (p *exprParser) parseRound() (float64, error) {
	p.skipSpace()
	if !p.consume('(') {
		return 0, fmt.Errorf("round: missing '('")
	}
	val, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	decimals := 0.0
	p.skipSpace()
	if p.consume(',') {
		decimals, err = p.parseExpr()
		if err != nil {
			return 0, err
		}
	}
	p.skipSpace()
	if !p.consume(')') {
		return 0, fmt.Errorf("round: missing ')'")
	}
	factor := math.Pow(10, math.Trunc(decimals))
	return math.Round(val*factor) / factor, nil
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.src) && (unicode.IsDigit(p.src[p.pos]) || p.src[p.pos] == '.') {
		p.pos++
	}
	if p.pos == start {
		// A leftover identifier means a formula key that had no value.
		if word := p.peekWord(); word != "" {
			return 0, fmt.Errorf("unresolved reference %q", word)
		}
		return 0, fmt.Errorf("unexpected %q at offset %d", string(p.src[p.pos]), p.pos)
	}
	v, err := strconv.ParseFloat(string(p.src[start:p.pos]), 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", string(p.src[start:p.pos]))
	}
	return v, nil
}

func (p *exprParser) peekWord() string {
	i := p.pos
	for i < len(p.src) && (unicode.IsLetter(p.src[i]) || unicode.IsDigit(p.src[i]) ||
		strings.ContainsRune("_[].", p.src[i])) {
		i++
	}
	return string(p.src[p.pos:i])
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *exprParser) consume(c rune) bool {
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) consumeWord(w string) bool {
	if strings.HasPrefix(string(p.src[p.pos:]), w) {
		// "<" must not swallow the "<" of "<=": multi-char candidates are
		// tried before single-char ones by the caller.
		p.pos += len([]rune(w))
		return true
	}
	return false
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

var decimalLiteralRe = regexp.MustCompile(`\d+\.\d+`)

// FormatFormula normalizes decimal literals in a formula for display,
// fixing them to two decimal places. Ties round away from zero, so
// 2.125 displays as 2.13.
func FormatFormula(formula string) string {
	return decimalLiteralRe.ReplaceAllStringFunc(formula, func(m string) string {
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return m
		}
		return strconv.FormatFloat(math.Round(f*100)/100, 'f', 2, 64)
	})
}
