package llm

import (
	"encoding/json"
	"testing"

	"github.com/tablecraft/menu-digitizer/internal/common"
)

const validMenuJSON = `{
  "menu": [
    {
      "category": "Pizzas",
      "dishes": [
        {
          "name": "Margherita Pizza",
          "price": 10,
          "description": "Classic tomato and cheese",
          "ai_suggested_description": null
        }
      ]
    }
  ]
}`

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `{"menu": []}`, `{"menu": []}`},
		{"plain fence", "```\n{\"menu\": []}\n```", `{"menu": []}`},
		{"json fence", "```json\n{\"menu\": []}\n```", `{"menu": []}`},
		{"fence with surrounding whitespace", "  ```json\n{\"menu\": []}\n```  ", `{"menu": []}`},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFences(tt.in); got != tt.want {
				t.Errorf("StripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFencedRoundTrip(t *testing.T) {
	fenced := "```json\n" + validMenuJSON + "\n```"

	fromFenced, err := Sanitize(fenced)
	if err != nil {
		t.Fatalf("sanitize fenced: %v", err)
	}
	fromPlain, err := Sanitize(validMenuJSON)
	if err != nil {
		t.Fatalf("sanitize plain: %v", err)
	}

	a, _ := json.Marshal(fromFenced)
	b, _ := json.Marshal(fromPlain)
	if string(a) != string(b) {
		t.Errorf("fenced and plain parses differ:\n%s\n%s", a, b)
	}
}

func TestSanitizeValidMenu(t *testing.T) {
	menu, err := Sanitize(validMenuJSON)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if len(menu.Menu) != 1 {
		t.Fatalf("expected one category, got %d", len(menu.Menu))
	}
	cat := menu.Menu[0]
	if cat.Category != "Pizzas" {
		t.Errorf("category = %q", cat.Category)
	}
	if len(cat.Dishes) != 1 {
		t.Fatalf("expected one dish, got %d", len(cat.Dishes))
	}
	d := cat.Dishes[0]
	if d.Name != "Margherita Pizza" {
		t.Errorf("name = %q", d.Name)
	}
	if d.Price == nil || *d.Price != 10 {
		t.Errorf("price = %v", d.Price)
	}
	if d.Description == nil || *d.Description != "Classic tomato and cheese" {
		t.Errorf("description = %v", d.Description)
	}
	if d.AISuggestedDescription != nil {
		t.Errorf("ai_suggested_description should be nil, got %q", *d.AISuggestedDescription)
	}
}

func TestSanitizeEmptyMenuIsValid(t *testing.T) {
	menu, err := Sanitize(`{"menu": []}`)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if menu.Menu == nil {
		t.Fatal("Menu must be non-nil")
	}
	if len(menu.Menu) != 0 {
		t.Errorf("expected empty menu, got %d categories", len(menu.Menu))
	}
}

func TestSanitizeFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"free text", "Sorry, I cannot process this."},
		{"empty", ""},
		{"fenced empty", "```json\n```"},
		{"missing menu key", `{"items": []}`},
		{"menu is null", `{"menu": null}`},
		{"menu is object", `{"menu": {}}`},
		{"category missing dishes", `{"menu": [{"category": "Pizzas"}]}`},
		{"dishes is null", `{"menu": [{"category": "Pizzas", "dishes": null}]}`},
		{"dish missing name", `{"menu": [{"category": "Pizzas", "dishes": [{"price": 10}]}]}`},
		{"price is string", `{"menu": [{"category": "Pizzas", "dishes": [{"name": "Margherita", "price": "$10"}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			menu, err := Sanitize(tt.raw)
			if err == nil {
				t.Fatal("expected error")
			}
			if menu != nil {
				t.Errorf("no partial result expected, got %+v", menu)
			}
			if !common.IsKind(err, common.KindSchemaParse) {
				t.Errorf("expected %s, got %q", common.KindSchemaParse, common.KindOf(err))
			}
		})
	}
}

func TestSanitizeNullPriceAndSuggestedDescription(t *testing.T) {
	raw := `{"menu": [{"category": "Pizzas", "dishes": [
		{"name": "Margherita Pizza", "price": null, "description": null,
		 "ai_suggested_description": "A timeless classic with fresh basil."}
	]}]}`

	menu, err := Sanitize(raw)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	d := menu.Menu[0].Dishes[0]
	if d.Price != nil {
		t.Errorf("price should be nil, got %v", *d.Price)
	}
	if d.Description != nil {
		t.Errorf("description should be nil, got %q", *d.Description)
	}
	if d.AISuggestedDescription == nil {
		t.Error("ai_suggested_description should be set")
	}
}
