package conversation

import (
	"fmt"
	"regexp"
	"strings"
)

// Local models sometimes leak prompt scaffolding into generated starters.
// These patterns strip the common leaks; anything still suspect afterwards
// is replaced wholesale by a deterministic greeting.
var (
	// Square-bracket meta commentary, including unterminated brackets.
	bracketPattern = regexp.MustCompile(`\[[^\]]*(?:\]|$)`)

	// Leaked directive fragments like "(DO NOT RESPOND)" or "*(AWAIT INPUT)*".
	directivePattern = regexp.MustCompile(`(?i)\*?\(\s*(?:DO NOT|AWAIT|WAIT FOR|STOP HERE|REPLY WITH|END OF RESPONSE)[^)]*\)\*?`)

	// Self-describing meta analysis ("This response addresses ...").
	metaAnalysisPattern = regexp.MustCompile(`(?i)(?:this (?:message|response)|the (?:message|response))\s+(?:fulfills|addresses|meets|follows|satisfies)[^.]*\.?`)

	// Markers that indicate instructions are still present after cleaning.
	instructionMarkers = []string{
		"as an ai", "system prompt", "###", "do not mention", "these instructions",
		"[inst", "<|",
	}
)

// SanitizeStarter strips leaked instruction markers from a generated starter.
// If the cleaned result is empty or still contains instruction fragments, a
// deterministic fallback greeting naming the character is substituted.
func SanitizeStarter(text, characterName string) string {
	cleaned := bracketPattern.ReplaceAllString(text, "")
	cleaned = directivePattern.ReplaceAllString(cleaned, "")
	cleaned = metaAnalysisPattern.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(strings.Trim(strings.TrimSpace(cleaned), `"`))

	if cleaned == "" || containsInstructionFragment(cleaned) {
		return FallbackStarter(characterName)
	}
	return cleaned
}

// FallbackStarter is the deterministic greeting used when generation leaks
// or produces nothing usable.
func FallbackStarter(characterName string) string {
	return fmt.Sprintf("Hello! I'm %s. It's lovely to meet you. What would you like to talk about?", characterName)
}

func containsInstructionFragment(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range instructionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
