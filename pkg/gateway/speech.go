package gateway

import (
	"regexp"
	"strings"
)

var (
	stageDirection = regexp.MustCompile(`\[(.*?)\]`)

	// sentenceEnd matches a run of terminators, optionally closed by a
	// quote or bracket, at the end of a sentence.
	sentenceEnd = regexp.MustCompile(`[.!?]+["'”)]*(\s|$)`)
)

// StripStageDirections removes bracketed markup such as "[smiles]" and
// collapses the remaining whitespace.
func StripStageDirections(text string) string {
	return strings.Join(strings.Fields(stageDirection.ReplaceAllString(text, " ")), " ")
}

// StageDirection returns the content of the first bracketed direction in
// text, or "" if there is none.
func StageDirection(text string) string {
	m := stageDirection.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// asksQuestion reports whether any sentence of text, stage directions
// aside, ends in a question mark.
func asksQuestion(text string) bool {
	for _, end := range sentenceEnd.FindAllString(StripStageDirections(text), -1) {
		if strings.Contains(end, "?") {
			return true
		}
	}
	return false
}
