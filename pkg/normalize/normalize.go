package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrRangeInvalid is returned when a range expression has start > end.
var ErrRangeInvalid = errors.New("invalid range: ensure start <= end")

var (
	rangeRE = regexp.MustCompile(`^([A-Z]+)(\d+)\s*-\s*([A-Z]+)(\d+)$`)
	quadRE  = regexp.MustCompile(`^([A-Z])(\d{1,2})(\d)([A-Z])$`)
	// substrings that mark codes which must never be rewritten into STG/aisle form
	exclRE     = regexp.MustCompile(`AX|AV|RX|RV`)
	aisleExcl  = regexp.MustCompile(`OV|-|STG|AX|AV|RX|RV`)
	stgFirsts  = "ABCDEGHJKLM"
	dashFirsts = "ABCDEGJKLM"
)

// Normalize converts raw human/scanner input into one or more canonical
// location codes. Rules are tried in strict order; the first match wins and
// outputs are never re-fed into later rules. Only the range rule expands to
// more than one code. A range with start > end is a hard ErrRangeInvalid,
// never a fall-through.
func Normalize(raw string) ([]string, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if value == "" {
		return []string{value}, nil
	}

	if m := rangeRE.FindStringSubmatch(value); m != nil && m[1] == m[3] {
		start, err1 := strconv.Atoi(m[2])
		end, err2 := strconv.Atoi(m[4])
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("parse range %q: bad bounds", value)
		}
		if start > end {
			return nil, ErrRangeInvalid
		}
		return expandRange(m[1], start, end), nil
	}

	if m := quadRE.FindStringSubmatch(value); m != nil {
		return []string{m[1] + "-" + m[2] + "." + m[3] + m[4]}, nil
	}

	if len(value) == 3 && value != "RTS" && !exclRE.MatchString(value) {
		return []string{"STG." + value}, nil
	}
	if len(value) == 2 && strings.ContainsRune(stgFirsts, rune(value[0])) && !exclRE.MatchString(value) {
		return []string{"STG." + value[:1] + "0" + value[1:]}, nil
	}
	if strings.Contains(value, "DD") {
		return []string{value}, nil
	}
	if len(value) < 7 && strings.ContainsRune(dashFirsts, rune(value[0])) && !aisleExcl.MatchString(value) {
		return []string{value[:1] + "-" + value[1:]}, nil
	}

	return []string{value}, nil
}

// IsRange reports whether raw parses as a range expression with matching
// prefixes, regardless of bound order.
func IsRange(raw string) bool {
	value := strings.ToUpper(strings.TrimSpace(raw))
	m := rangeRE.FindStringSubmatch(value)
	return m != nil && m[1] == m[3]
}

func expandRange(prefix string, start, end int) []string {
	out := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, prefix+strconv.Itoa(i))
	}
	return out
}
