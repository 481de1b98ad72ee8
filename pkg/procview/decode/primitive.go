package decode

import (
	"strconv"
	"strings"
)

// ParseUint reads the leading decimal digits of text and discards the rest,
// so "15 kB" is 15. Text without a leading digit, or a digit run that does
// not fit in 64 bits, fails with ExpectedInteger.
func ParseUint(text string) (uint64, error) {
	n := digitRun(text)
	if n == 0 {
		return 0, ExpectedInteger
	}
	v, err := strconv.ParseUint(text[:n], 10, 64)
	if err != nil {
		return 0, ExpectedInteger
	}
	return v, nil
}

// ParseInt is ParseUint with an optional leading minus sign.
func ParseInt(text string) (int64, error) {
	sign := 0
	if strings.HasPrefix(text, "-") {
		sign = 1
	}
	n := digitRun(text[sign:])
	if n == 0 {
		return 0, ExpectedInteger
	}
	v, err := strconv.ParseInt(text[:sign+n], 10, 64)
	if err != nil {
		return 0, ExpectedInteger
	}
	return v, nil
}

// ParseFloat reads a leading digits[.digits] number and discards the rest.
func ParseFloat(text string) (float64, error) {
	n := digitRun(text)
	if n == 0 {
		return 0, ExpectedFloat
	}
	if n < len(text) && text[n] == '.' {
		if frac := digitRun(text[n+1:]); frac > 0 {
			n += 1 + frac
		}
	}
	v, err := strconv.ParseFloat(text[:n], 64)
	if err != nil {
		return 0, ExpectedFloat
	}
	return v, nil
}

// ParseBool accepts exactly "yes" and "no".
func ParseBool(text string) (bool, error) {
	switch text {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	}
	return false, InvalidBool
}

// ParseWords splits text on whitespace. The words are copies.
func ParseWords(text string) []string {
	words := strings.Fields(text)
	for i, w := range words {
		words[i] = strings.Clone(w)
	}
	return words
}

func digitRun(s string) int {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	return n
}

// decodePrimitive applies rule to text and hands the value to v. Errors are
// reported against offset, the position of text in the input.
func decodePrimitive(rule Rule, text string, offset int, key string, v Visitor) error {
	var err error
	switch rule {
	case RuleUint:
		var n uint64
		if n, err = ParseUint(text); err == nil {
			err = v.VisitUint(n)
		}
	case RuleInt:
		var n int64
		if n, err = ParseInt(text); err == nil {
			err = v.VisitInt(n)
		}
	case RuleFloat:
		var f float64
		if f, err = ParseFloat(text); err == nil {
			err = v.VisitFloat(f)
		}
	case RuleBool:
		var b bool
		if b, err = ParseBool(text); err == nil {
			err = v.VisitBool(b)
		}
	case RuleString:
		err = v.VisitString(strings.Clone(text))
	case RuleWords:
		err = v.VisitWords(ParseWords(text))
	default:
		return &SchemaError{Field: key, Reason: "field has no decode rule"}
	}

	if k, ok := err.(Kind); ok {
		return newError(k, offset, key, text)
	}
	return err
}
