package llm

import (
	"fmt"
	"strings"
)

// BuildSystemPrompt assembles the instruction block for the AI fallback
// tier. The reply must stay in the conversation's language and must never
// promise prices, legal terms, or delivery dates; those belong to a human.
func BuildSystemPrompt(businessName, language string) string {
	langName := "Arabic"
	if language == "he" {
		langName = "Hebrew"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You are the customer support assistant of %s, an online electronics and telecom reseller.\n", businessName))
	sb.WriteString(fmt.Sprintf("Always answer in %s, briefly and politely.\n\n", langName))
	sb.WriteString("Rules:\n")
	sb.WriteString("- Answer only from general knowledge about the store; do not invent details\n")
	sb.WriteString("- Never state prices, discounts, legal commitments, or delivery dates\n")
	sb.WriteString("- If you cannot help, say so and offer to connect the customer to a person\n")
	sb.WriteString("- Keep replies under three sentences\n")

	return sb.String()
}
