package llm

import (
	"encoding/json"
	"strings"

	"github.com/tablecraft/menu-digitizer/internal/common"
)

// StripCodeFences removes a leading/trailing markdown code fence the model
// may emit despite instructions forbidding it. Inner content is untouched.
func StripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// optional language tag on the opening fence, e.g. ```json
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		first := strings.TrimSpace(s[:i])
		if first == "" || isFenceTag(first) {
			s = s[i+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isFenceTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

// Sanitize is the trust-boundary adapter for raw model output: it strips
// transport artifacts, parses, enforces the menu schema, and decodes into a
// StructuredMenu. Any failure is a schema-parse error; a structurally
// invalid response is never coerced into an empty or partial menu.
func Sanitize(raw string) (*StructuredMenu, error) {
	cleaned := StripCodeFences(raw)
	if cleaned == "" {
		return nil, common.SchemaParseError("model returned empty output", nil)
	}

	data := []byte(cleaned)
	if !json.Valid(data) {
		return nil, common.SchemaParseError("model output is not valid JSON", nil)
	}
	if err := ValidateJSONAgainstSchema(BuildMenuJSONSchema(), data); err != nil {
		return nil, common.SchemaParseError("model output does not match menu schema", err)
	}

	var menu StructuredMenu
	if err := json.Unmarshal(data, &menu); err != nil {
		return nil, common.SchemaParseError("decode menu", err)
	}

	// Schema guarantees "menu" is present and an array; decode of [] or a
	// populated array leaves Menu non-nil only in the latter case.
	if menu.Menu == nil {
		menu.Menu = []MenuCategory{}
	}
	for i := range menu.Menu {
		if menu.Menu[i].Dishes == nil {
			menu.Menu[i].Dishes = []Dish{}
		}
	}
	return &menu, nil
}
