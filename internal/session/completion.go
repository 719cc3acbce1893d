package session

import "regexp"

var (
	affirmativeReply = regexp.MustCompile(`(?i)\b(?:yes|yeah|yep|yup|sure|done|finished|all done|that'?s it|looks good)\b`)
	explicitDone     = regexp.MustCompile(`(?i)\b(?:we'?re done|i'?m done|all done|finished cooking|save (?:the|this|my) recipe)\b`)
	completionAsk    = regexp.MustCompile(`(?i)\b(?:done|finish(?:ed)?|complete[d]?|ready|save)\b`)
)

// ConfirmsCompletion decides whether a user message confirms the dish is finished.
// An explicit statement always counts; a bare affirmative counts only when
// the last question asked was about completion.
func ConfirmsCompletion(message, lastQuestion string) bool {
	if explicitDone.MatchString(message) {
		return true
	}
	return affirmativeReply.MatchString(message) && completionAsk.MatchString(lastQuestion)
}
