package storage

import (
	"fmt"
	"log/slog"
	"os"
	"souschef/models"
	"testing"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"
)

func testProvider(t *testing.T) ProviderSQL {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open SQLite in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	p := ProviderSQL{
		db:     db,
		logger: slog.New(slog.NewTextHandler(os.Stdout, nil)),
	}
	p.Migrate()
	return p
}

func TestRecipes(t *testing.T) {
	provider := testProvider(t)
	cases := []struct {
		recipe *models.Recipe
	}{
		{recipe: &models.Recipe{
			ID:           "tomato_basil_pasta",
			Title:        "Tomato Basil Pasta",
			Summary:      "Quick weeknight pasta",
			Ingredients:  []string{"200g pasta", "3 tomatoes", "basil"},
			Instructions: []string{"Boil the pasta", "Make the sauce", "Combine"},
			CookingTime:  25,
			Servings:     2,
			Difficulty:   "Easy",
			Tags:         []string{"Quick"},
		}},
	}
	for i, tc := range cases {
		t.Run(fmt.Sprintf("run_%d", i), func(t *testing.T) {
			ids, err := provider.RecipeIDs()
			if err != nil {
				t.Fatalf("failed to list recipe ids: %v", err)
			}
			if len(ids) != 0 {
				t.Fatalf("expected no ids, got: %v", ids)
			}
			if err := provider.UpsertRecipe(tc.recipe); err != nil {
				t.Fatalf("failed to upsert recipe: %v", err)
			}
			got, err := provider.GetRecipeByID(tc.recipe.ID)
			if err != nil {
				t.Fatalf("failed to get recipe: %v", err)
			}
			if got.Title != tc.recipe.Title {
				t.Errorf("expected title %q, got %q", tc.recipe.Title, got.Title)
			}
			if len(got.Instructions) != len(tc.recipe.Instructions) {
				t.Errorf("expected %d instructions, got %d",
					len(tc.recipe.Instructions), len(got.Instructions))
			}
			rows, err := provider.ListRecipes()
			if err != nil {
				t.Fatalf("failed to list recipes: %v", err)
			}
			if len(rows) != 1 {
				t.Fatalf("expected 1 recipe row, got %d", len(rows))
			}
			ids, err = provider.RecipeIDs()
			if err != nil {
				t.Fatalf("failed to list recipe ids: %v", err)
			}
			if len(ids) != 1 || ids[0] != tc.recipe.ID {
				t.Errorf("unexpected ids: %v", ids)
			}
			if err := provider.RemoveRecipe(tc.recipe.ID); err != nil {
				t.Fatalf("failed to remove recipe: %v", err)
			}
			rows, err = provider.ListRecipes()
			if err != nil {
				t.Fatalf("failed to list recipes after remove: %v", err)
			}
			if len(rows) != 0 {
				t.Errorf("expected empty table, got %d rows", len(rows))
			}
		})
	}
}

func TestVoiceSessions(t *testing.T) {
	provider := testProvider(t)
	history := []models.RoleMsg{
		{Role: "assistant", Content: "Hi! I'm here to help you cook Tomato Basil Pasta. Ask me anything about the recipe!"},
		{Role: "user", Content: "what's step one"},
		{Role: "assistant", Content: "Boil the pasta first."},
	}
	msgs, err := models.HistoryToSJSON(history)
	if err != nil {
		t.Fatalf("failed to marshal history: %v", err)
	}
	maxID, err := provider.SessionGetMaxID()
	if err != nil {
		t.Fatalf("failed to get max session id: %v", err)
	}
	session := &models.VoiceSession{
		ID:        maxID + 1,
		RecipeID:  "tomato_basil_pasta",
		Msgs:      msgs,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	saved, err := provider.UpsertSession(session)
	if err != nil {
		t.Fatalf("failed to upsert session: %v", err)
	}
	if saved.RecipeID != session.RecipeID {
		t.Errorf("expected recipe id %q, got %q", session.RecipeID, saved.RecipeID)
	}
	sessions, err := provider.ListSessionsByRecipe("tomato_basil_pasta")
	if err != nil {
		t.Fatalf("failed to list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	restored, err := sessions[0].ToHistory()
	if err != nil {
		t.Fatalf("failed to restore history: %v", err)
	}
	if len(restored) != len(history) {
		t.Fatalf("expected %d messages, got %d", len(history), len(restored))
	}
	if restored[1].Content != "what's step one" {
		t.Errorf("unexpected user message: %q", restored[1].Content)
	}
	if err := provider.RemoveSession(saved.ID); err != nil {
		t.Fatalf("failed to remove session: %v", err)
	}
}
