package engine

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// AnswerUnit describes how an answer is rounded and which unit spellings
// count as correct. An empty accepted set means the unit is not checked.
type AnswerUnit struct {
	ID             int64    `json:"id"`
	AsciiName      string   `json:"ascii_name"`
	Precision      *int     `json:"precision"` // nil: default 2 decimals
	AcceptedAnswer []string `json:"accepted_answer"`
}

const defaultPrecision = 2

// MessageType classifies a verification outcome.
type MessageType string

const (
	MsgFormatError MessageType = "Fel Format"
	MsgCorrect     MessageType = "Rätt Svar"
	MsgWrongUnit   MessageType = "Fel Enhet"
	MsgWrongValue  MessageType = "Fel Svar"
)

// VerificationResult is the structured grading outcome returned to the
// client. Formula is echoed back numerically normalized for display.
type VerificationResult struct {
	Correct        bool        `json:"correct"`
	Formula        string      `json:"formula"`
	MessageType    MessageType `json:"message_type"`
	Message        string      `json:"message"`
	AdditionalInfo string      `json:"additional_info"`
}

// answerRe accepts a numeral (comma or dot decimals, internal spaces)
// followed by an optional unit of letters (incl. å ä ö), digits and a
// small symbol set.
var answerRe = regexp.MustCompile(`^\s*([\d\s.,]+)\s*([a-zA-ZÅÄÖåäö.,\-+*()^_!?\d\s/]*)?\s*$`)

// Check evaluates an already substituted, fully numeric formula and
// grades the user answer against the result.
func (e *Engine) Check(userAnswer, formula string, unit AnswerUnit) (VerificationResult, error) {
	expected, err := EvaluateFormula(formula, nil)
	if err != nil {
		return VerificationResult{}, err
	}
	return CheckAnswer(userAnswer, expected, unit, formula), nil
}

// CheckAnswer parses a free-text user answer and grades it against the
// expected value. Both values are rounded to the unit's precision before
// comparison; the unit check is case- and whitespace-insensitive.
func CheckAnswer(userAnswer string, expected float64, unit AnswerUnit, formula string) VerificationResult {
	res := VerificationResult{Formula: FormatFormula(formula)}

	userValue, userUnit, ok := parseAnswer(userAnswer)
	if !ok {
		res.MessageType = MsgFormatError
		res.Message = "Använd siffror följt av en enhet."
		res.AdditionalInfo = "Exempel: '5 kg', '5,4 kg', '5.4kg'"
		return res
	}

	precision := defaultPrecision
	if unit.Precision != nil {
		precision = *unit.Precision
	}
	valueOK := roundTo(userValue, precision) == roundTo(expected, precision)

	accepted := normalizeUnits(unit.AcceptedAnswer)
	unitOK := true
	if len(accepted) > 0 {
		unitOK = false
		for _, u := range accepted {
			if u == userUnit {
				unitOK = true
				break
			}
		}
	}

	switch {
	case valueOK && unitOK && len(accepted) > 0:
		res.Correct = true
		res.MessageType = MsgCorrect
		res.Message = "Rätt Svar!"
		res.AdditionalInfo = "Rätt värde & Rätt Enhet"
	case valueOK && unitOK:
		// no accepted-unit set configured: value alone decides
		res.Correct = true
		res.MessageType = MsgCorrect
		res.Message = "Rätt värde"
		res.AdditionalInfo = fmt.Sprintf("Ditt värde %s, är korrekt.", FormatValue(userValue))
	case valueOK:
		res.MessageType = MsgWrongUnit
		res.Message = "Rätt värde men Fel Enhet"
		res.AdditionalInfo = "Godkända enheter: " + strings.Join(unit.AcceptedAnswer, ", ")
	default:
		res.MessageType = MsgWrongValue
		info := fmt.Sprintf("Ditt svar %s, är inte korrekt.", FormatValue(userValue))
		if precision == 0 && userValue != math.Trunc(userValue) {
			info = "Värdet är ett heltal."
		}
		switch {
		case len(accepted) == 0:
			res.Message = "Fel värde"
		case unitOK:
			res.Message = "Fel värde men Rätt Enhet"
		default:
			res.Message = "Fel värde & Fel Enhet"
			info += "\nGodkända enheter: " + strings.Join(unit.AcceptedAnswer, ", ")
		}
		res.AdditionalInfo = info
	}
	return res
}

// parseAnswer splits the free-text answer into number and unit. The
// numeric part normalizes a comma decimal to a dot and strips internal
// whitespace; the unit is lowercased with spacing and punctuation
// removed, so "Kg." and "kg" compare equal.
func parseAnswer(s string) (value float64, unit string, ok bool) {
	m := answerRe.FindStringSubmatch(s)
	if m == nil {
		return 0, "", false
	}
	num := strings.ReplaceAll(m[1], ",", ".")
	num = strings.Join(strings.Fields(num), "")
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, "", false
	}
	return v, normalizeUnit(m[2]), true
}

func normalizeUnit(u string) string {
	var b strings.Builder
	for _, r := range u {
		switch r {
		case '.', ',', ' ', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(strings.TrimSpace(b.String()))
}

func normalizeUnits(units []string) []string {
	out := make([]string, 0, len(units))
	for _, u := range units {
		if n := normalizeUnit(u); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func roundTo(v float64, precision int) float64 {
	factor := math.Pow(10, float64(precision))
	return math.Round(v*factor) / factor
}
