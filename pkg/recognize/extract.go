package recognize

import (
	"regexp"
	"strings"
)

// Structural shapes that OCR segmentation tends to produce for a location
// label, tried in order. Each captures letter / first digits / second digits
// / trailing letter so the candidate can be reassembled canonically.
var structuralREs = []*regexp.Regexp{
	regexp.MustCompile(`([A-Z])-(\d+)\s+(\d+)([A-Z])`),
	regexp.MustCompile(`([A-Z])(\d+)\s+(\d+)([A-Z])`),
	regexp.MustCompile(`([A-Z])-(\d+)\.(\d+)([A-Z])`),
	regexp.MustCompile(`([A-Z])(\d+)(\d+)([A-Z])`),
	regexp.MustCompile(`([A-Z])\s+(\d+)\s+(\d+)\s+([A-Z])`),
}

// looseRE catches a single-token location shape when no structural pattern
// applies: letter, optional dash, digits, optional decimal tail, optional
// letter, or an STG staging code.
var looseRE = regexp.MustCompile(`[A-Z]-?\d+\.?\d*[A-Z]?|STG\.[A-Z]\d{2,3}`)

// Extract pulls a location-code candidate out of raw OCR text. The text is
// whitespace-collapsed and upper-cased first. Returns false when nothing in
// the frame looks like a location; such frames are simply discarded.
func Extract(rawText string) (string, bool) {
	cleaned := strings.ToUpper(strings.Join(strings.Fields(rawText), " "))
	if cleaned == "" {
		return "", false
	}

	for _, re := range structuralREs {
		m := re.FindStringSubmatch(cleaned)
		if m == nil {
			continue
		}
		first := strings.ReplaceAll(m[2], "-", "")
		return m[1] + "-" + first + "." + m[3] + m[4], true
	}

	if m := looseRE.FindString(cleaned); m != "" {
		return m, true
	}
	return "", false
}
