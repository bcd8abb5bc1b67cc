package browser

import (
	"strings"
)

// attrSelector builds a CSS selector matching an exact attribute value
func attrSelector(attr, value string) string {
	return "[" + attr + `="` + escapeCSSString(value) + `"]`
}

func escapeCSSString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\a `)
	return s
}

// Letters folded by textXPath; XPath 1.0 has no lower-case()
const (
	upperLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZÀÁÂÃÄÅÆÇÈÉÊËÌÍÎÏÑÒÓÔÕÖØÙÚÛÜÝ"
	lowerLetters = "abcdefghijklmnopqrstuvwxyzàáâãäåæçèéêëìíîïñòóôõöøùúûüý"
)

var letterFold = func() map[rune]rune {
	upper, lower := []rune(upperLetters), []rune(lowerLetters)
	m := make(map[rune]rune, len(upper))
	for i, r := range upper {
		m[r] = lower[i]
	}
	return m
}()

// foldText lowers exactly the letters textXPath folds on the page side
func foldText(s string) string {
	return strings.Map(func(r rune) rune {
		if l, ok := letterFold[r]; ok {
			return l
		}
		return r
	}, s)
}

// textXPath matches the innermost body elements whose text contains text,
// ignoring case and whitespace runs. Text split across inline children still
// matches. Script and style contents are ignored.
func textXPath(text string) string {
	needle := xpathLiteral(foldText(strings.Join(strings.Fields(text), " ")))
	contains := "contains(translate(normalize-space(.), '" + upperLetters + "', '" + lowerLetters + "'), " + needle + ")"
	return "//body//*[not(self::script or self::style)][" + contains + "][not(*[" + contains + "])]"
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}

	parts := strings.Split(s, "'")
	var sb strings.Builder
	sb.WriteString("concat(")
	for i, part := range parts {
		if i > 0 {
			sb.WriteString(`, "'", `)
		}
		sb.WriteString("'" + part + "'")
	}
	sb.WriteString(")")
	return sb.String()
}
