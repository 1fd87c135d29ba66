// Package llm defines the menu-structuring contract: prompt construction,
// the target JSON schema, and the sanitizer that turns untrusted model
// output into a StructuredMenu.
package llm

import "context"

// StructuredMenu is the canonical pipeline output. Menu is never nil after
// a successful sanitize, even for a blank extraction.
type StructuredMenu struct {
	Menu []MenuCategory `json:"menu"`
}

// MenuCategory groups dishes under one inferred or literal menu heading.
type MenuCategory struct {
	Category string `json:"category"`
	Dishes   []Dish `json:"dishes"`
}

// Dish is one priced menu entry. Name always traces to recognized text.
// At most one of Description and AISuggestedDescription is non-nil:
// Description holds literal recognized text, AISuggestedDescription is
// model-written and only set when no literal description was found.
type Dish struct {
	Name                   string   `json:"name"`
	Price                  *float64 `json:"price"`
	Description            *string  `json:"description"`
	AISuggestedDescription *string  `json:"ai_suggested_description"`
}

// MenuStructurer is Stage 2: raw OCR text -> raw model output. The returned
// string should be JSON matching the menu schema but is not guaranteed to
// be; the sanitizer defends the boundary.
type MenuStructurer interface {
	Structure(ctx context.Context, rawText string) (string, error)
}
