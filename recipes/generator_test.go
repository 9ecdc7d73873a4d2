package recipes

import (
	"encoding/json"
	"fmt"
	"souschef/models"
	"strings"
	"testing"
)

func TestStripFences(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{in: "```json\n{\"confidence\": 0.9}\n```", expected: "{\"confidence\": 0.9}"},
		{in: "```\n[]\n```", expected: "[]"},
		{in: "{\"ingredients\": []}", expected: "{\"ingredients\": []}"},
		{in: "  \n[1, 2]\n  ", expected: "[1, 2]"},
	}
	for i, tc := range cases {
		t.Run(fmt.Sprintf("run_%d", i), func(t *testing.T) {
			if got := stripFences(tc.in); got != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestStripFencesKeepsValidJSON(t *testing.T) {
	fenced := "```json\n[{\"id\": \"r1\", \"title\": \"Soup\"}]\n```"
	recipes := []models.Recipe{}
	if err := json.Unmarshal([]byte(stripFences(fenced)), &recipes); err != nil {
		t.Fatalf("failed to unmarshal stripped json: %v", err)
	}
	if len(recipes) != 1 || recipes[0].ID != "r1" {
		t.Errorf("unexpected recipes: %+v", recipes)
	}
}

func TestGeneratePrompt(t *testing.T) {
	prompt := generatePrompt([]string{"tomato", "basil"}, nil)
	if !strings.Contains(prompt, "exactly 5 unique recipes") {
		t.Error("prompt missing recipe count requirement")
	}
	if !strings.Contains(prompt, "tomato, basil") {
		t.Error("prompt missing ingredient list")
	}
	if strings.Contains(prompt, "Exclude any recipes") {
		t.Error("exclusion clause present without exclusions")
	}
	prompt = generatePrompt([]string{"tomato"}, []string{"r1", "r2"})
	if !strings.Contains(prompt, "Exclude any recipes similar to these IDs: r1, r2") {
		t.Error("prompt missing exclusion clause")
	}
}

func TestFallbackRecipes(t *testing.T) {
	cases := []struct {
		ingredients   []string
		expectedTitle string
	}{
		{ingredients: []string{"broccoli", "garlic"}, expectedTitle: "Simple broccoli Stir Fry"},
		{ingredients: nil, expectedTitle: "Simple Vegetable Stir Fry"},
	}
	for i, tc := range cases {
		t.Run(fmt.Sprintf("run_%d", i), func(t *testing.T) {
			got := fallbackRecipes(tc.ingredients)
			if len(got) != 1 {
				t.Fatalf("expected 1 fallback recipe, got %d", len(got))
			}
			if got[0].Title != tc.expectedTitle {
				t.Errorf("expected title %q, got %q", tc.expectedTitle, got[0].Title)
			}
			if got[0].ID != "fallback_1" || got[0].Difficulty != "Easy" {
				t.Errorf("unexpected fallback recipe: %+v", got[0])
			}
		})
	}
}

func TestEnsureUniqueIDs(t *testing.T) {
	recipes := []models.Recipe{
		{ID: "pasta_1"},
		{ID: "pasta_1"},
		{ID: ""},
		{ID: "soup_2"},
	}
	ensureUniqueIDs(recipes)
	seen := map[string]bool{}
	for i, r := range recipes {
		if r.ID == "" {
			t.Errorf("recipe %d still has empty id", i)
		}
		if seen[r.ID] {
			t.Errorf("duplicate id after dedup: %s", r.ID)
		}
		seen[r.ID] = true
	}
	if recipes[0].ID != "pasta_1" || recipes[3].ID != "soup_2" {
		t.Error("unique ids should be kept as the model chose them")
	}
}

func TestFallbackIdentification(t *testing.T) {
	got := fallbackIdentification()
	if len(got.Ingredients) != 1 || got.Ingredients[0] != "mixed vegetables" {
		t.Errorf("unexpected fallback ingredients: %v", got.Ingredients)
	}
	if got.Confidence != 0.1 {
		t.Errorf("unexpected fallback confidence: %v", got.Confidence)
	}
}
