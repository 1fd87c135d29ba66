package llm

import "strings"

// BuildSystemPrompt composes the system-level output contract: the exact
// schema, the no-invention rules, and the formatting hygiene the sanitizer
// relies on.
func BuildSystemPrompt() string {
	parts := []string{
		"You are a restaurant menu parser. Return ONLY JSON that matches the provided JSON Schema.",
		"The top-level object MUST contain a 'menu' array, even when no dishes were found (then return {\"menu\": []}).",
		"Never invent dishes: every dish name must appear in the menu text.",
		"Never invent prices: 'price' is a plain number with no currency symbol, or null when no price is visible.",
		"Never wrap the output in markdown or code fences.",
		"Never add keys that are not in the schema.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the extracted menu text with the task-level
// instructions: category inference and the description /
// ai_suggested_description exclusivity rule.
func BuildUserPrompt(menuText string) string {
	var b strings.Builder
	b.WriteString("Extract all dishes from the menu text below.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Group dishes under their printed category; infer a short sensible category when none is printed.\n")
	b.WriteString("- Each dish has: name, price (number or null), description, ai_suggested_description.\n")
	b.WriteString("- 'description' is ONLY text literally present in the menu; otherwise null.\n")
	b.WriteString("- 'ai_suggested_description' is a short appetizing description you write, ONLY when 'description' is null; otherwise null.\n")
	b.WriteString("- Never set both 'description' and 'ai_suggested_description' on the same dish.\n")
	b.WriteString("\nMENU TEXT:\n")
	b.WriteString(menuText)
	return b.String()
}

// BuildSuggestionPrompt asks for ai_suggested_description values for dishes
// that came back with neither description field set. The expected reply is
// {"suggestions": {"<dish name>": "<text>", ...}}.
func BuildSuggestionPrompt(dishes []string) string {
	var b strings.Builder
	b.WriteString("Write a short appetizing one-sentence description for each dish below.\n")
	b.WriteString("Return ONLY JSON of the form {\"suggestions\": {\"<dish name>\": \"<description>\"}}.\n")
	b.WriteString("Use the dish names exactly as given. No markdown, no extra keys.\n\nDISHES:\n")
	for _, d := range dishes {
		b.WriteString("- ")
		b.WriteString(d)
		b.WriteString("\n")
	}
	return b.String()
}
