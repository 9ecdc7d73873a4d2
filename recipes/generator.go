package recipes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"souschef/config"
	"souschef/models"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

const identifyPrompt = `Analyze this image and identify all visible food ingredients.
Return a JSON object with the following structure:
{
    "ingredients": ["ingredient1", "ingredient2", ...],
    "confidence": 0.95
}

Focus only on ingredients that can be used for cooking. Be specific but concise.
If you can't clearly identify ingredients, set confidence lower.`

// minIngredients gates recipe generation; fewer identified ingredients than
// this returns the identification alone so the user can retake the photo.
const minIngredients = 5

// Generator turns ingredient photos into recipes via the gemini API.
type Generator struct {
	logger *slog.Logger
	client *genai.Client
	model  string
}

func NewGenerator(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*Generator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.GeminiAPIKey})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &Generator{
		logger: logger,
		client: client,
		model:  cfg.GeminiModel,
	}, nil
}

func (g *Generator) generate(ctx context.Context, parts []*genai.Part) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{
		{Parts: parts, Role: "user"},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("genai generate: %w", err)
	}
	var sb strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

// IdentifyIngredients asks the vision model what food is in the photo.
// Any failure degrades to a low-confidence generic answer rather than an
// error; the caller decides whether that is enough to cook with.
func (g *Generator) IdentifyIngredients(ctx context.Context, image []byte) *models.IngredientIdentification {
	parts := []*genai.Part{
		{Text: identifyPrompt},
		genai.NewPartFromBytes(image, "image/jpeg"),
	}
	text, err := g.generate(ctx, parts)
	if err != nil {
		g.logger.Error("ingredient identification failed", "error", err)
		return fallbackIdentification()
	}
	resp := &models.IngredientIdentification{}
	if err := json.Unmarshal([]byte(stripFences(text)), resp); err != nil {
		g.logger.Error("failed to parse identification response", "error", err, "text", text)
		return fallbackIdentification()
	}
	return resp
}

func fallbackIdentification() *models.IngredientIdentification {
	return &models.IngredientIdentification{
		Ingredients: []string{"mixed vegetables"},
		Confidence:  0.1,
	}
}

func generatePrompt(ingredients, excludeIDs []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate exactly 5 unique recipes using these ingredients: %s\n\n",
		strings.Join(ingredients, ", "))
	sb.WriteString(`Requirements:
- Each recipe must use at least 2-3 of the provided ingredients
- Provide complete recipes with all required fields
- Make recipes practical and achievable
- Vary difficulty levels (mix of Easy, Medium, Hard)
- Include diverse cuisine types

`)
	if len(excludeIDs) > 0 {
		fmt.Fprintf(&sb, "Exclude any recipes similar to these IDs: %s\n\n",
			strings.Join(excludeIDs, ", "))
	}
	sb.WriteString(`Return a JSON array with this exact structure:
[
    {
        "id": "unique_recipe_id_1",
        "title": "Recipe Name",
        "summary": "Brief description of the dish",
        "ingredients": ["ingredient with quantity", "another ingredient"],
        "instructions": ["Step 1", "Step 2", "Step 3"],
        "cookingTime": 30,
        "servings": 4,
        "difficulty": "Easy",
        "tags": ["tag1", "tag2"]
    }
]

Ensure ingredients include quantities and instructions are clear step-by-step directions.`)
	return sb.String()
}

// GenerateRecipes produces five recipes from an ingredient list, steering the
// model away from recipes the user already has. Model failures degrade to a
// single fallback recipe.
func (g *Generator) GenerateRecipes(ctx context.Context, ingredients, excludeIDs []string) []models.Recipe {
	parts := []*genai.Part{{Text: generatePrompt(ingredients, excludeIDs)}}
	text, err := g.generate(ctx, parts)
	if err != nil {
		g.logger.Error("recipe generation failed", "error", err)
		return fallbackRecipes(ingredients)
	}
	recipes := []models.Recipe{}
	if err := json.Unmarshal([]byte(stripFences(text)), &recipes); err != nil {
		g.logger.Error("failed to parse recipes response", "error", err, "text", text)
		return fallbackRecipes(ingredients)
	}
	ensureUniqueIDs(recipes)
	return recipes
}

// ensureUniqueIDs replaces missing or duplicated model-chosen ids; stored
// recipes are keyed on them.
func ensureUniqueIDs(recipes []models.Recipe) {
	seen := map[string]bool{}
	for i := range recipes {
		if recipes[i].ID == "" || seen[recipes[i].ID] {
			recipes[i].ID = uuid.NewString()
		}
		seen[recipes[i].ID] = true
	}
}

func fallbackRecipes(ingredients []string) []models.Recipe {
	main := "mixed vegetables"
	title := "Vegetable"
	if len(ingredients) > 0 {
		main = ingredients[0]
		title = ingredients[0]
	}
	return []models.Recipe{
		{
			ID:           "fallback_1",
			Title:        fmt.Sprintf("Simple %s Stir Fry", title),
			Summary:      "Quick and easy stir-fry with available ingredients",
			Ingredients:  []string{fmt.Sprintf("2 cups %s", main), "2 tbsp oil", "salt and pepper"},
			Instructions: []string{"Heat oil in pan", "Add ingredients", "Stir fry for 5-7 minutes", "Season and serve"},
			CookingTime:  15,
			Servings:     2,
			Difficulty:   "Easy",
			Tags:         []string{"Quick", "Easy"},
		},
	}
}

// GenerateFromImage is the full photo-to-recipes pipeline. When the photo
// yields too few ingredients the response carries the identification with no
// recipes.
func (g *Generator) GenerateFromImage(ctx context.Context, image []byte, excludeIDs []string) *models.RecipeGenerationResp {
	ident := g.IdentifyIngredients(ctx, image)
	if len(ident.Ingredients) < minIngredients {
		return &models.RecipeGenerationResp{
			Recipes:               []models.Recipe{},
			IdentifiedIngredients: ident.Ingredients,
		}
	}
	return &models.RecipeGenerationResp{
		Recipes:               g.GenerateRecipes(ctx, ident.Ingredients, excludeIDs),
		IdentifiedIngredients: ident.Ingredients,
	}
}

// stripFences removes a markdown code fence the model sometimes wraps around
// its JSON output.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.ReplaceAll(text, "```json", "")
		text = strings.ReplaceAll(text, "```", "")
	} else if strings.HasPrefix(text, "```") {
		text = strings.ReplaceAll(text, "```", "")
	}
	return strings.TrimSpace(text)
}
