package chat

import "strings"

const memoriesHeader = "Relevant memories from previous conversations:"

// buildSystemPrompt appends retrieved memories to the character prompt as a
// header plus one bullet per fragment. With no memories the character prompt
// passes through unchanged.
func buildSystemPrompt(characterPrompt string, memories []string) string {
	if len(memories) == 0 {
		return characterPrompt
	}

	var b strings.Builder
	b.WriteString(characterPrompt)
	b.WriteString("\n\n")
	b.WriteString(memoriesHeader)
	for _, m := range memories {
		b.WriteString("\n- ")
		b.WriteString(m)
	}
	return b.String()
}
