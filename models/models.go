package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type AudioFormat string

const (
	AFMP3 AudioFormat = "mp3"
	AFWAV AudioFormat = "wav"
)

// RoleMsg is one turn of a conversation.
type RoleMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (m RoleMsg) ToText(i int) string {
	icon := fmt.Sprintf("(%d) <%s>: ", i, m.Role)
	textMsg := fmt.Sprintf("[-:-:b]%s[-:-:-]\n%s\n", icon, m.Content)
	return strings.ReplaceAll(textMsg, "\n\n", "\n")
}

// ChatBody is the request payload for an openai-compatible chat endpoint.
type ChatBody struct {
	Model    string    `json:"model"`
	Stream   bool      `json:"stream"`
	Messages []RoleMsg `json:"messages"`
}

type ChatResp struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Index        int    `json:"index"`
		Message      struct {
			Content string `json:"content"`
			Role    string `json:"role"`
		} `json:"message"`
	} `json:"choices"`
	Model string `json:"model"`
	ID    string `json:"id"`
}

// Recipe mirrors the wire format of the recipe generator API.
type Recipe struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Summary      string   `json:"summary"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
	CookingTime  int      `json:"cookingTime"` // minutes
	Servings     int      `json:"servings"`
	Difficulty   string   `json:"difficulty"` // Easy, Medium, Hard
	Tags         []string `json:"tags,omitempty"`
}

// Context returns the snapshot a voice session is anchored to.
func (r *Recipe) Context() RecipeContext {
	return RecipeContext{
		ID:           r.ID,
		Title:        r.Title,
		Ingredients:  append([]string{}, r.Ingredients...),
		Instructions: append([]string{}, r.Instructions...),
	}
}

// RecipeContext stays fixed for the duration of a voice session even if
// the UI moves on to another recipe.
type RecipeContext struct {
	ID           string
	Title        string
	Ingredients  []string
	Instructions []string
}

type IngredientIdentification struct {
	Ingredients []string `json:"ingredients"`
	Confidence  float64  `json:"confidence"`
}

type RecipeGenerationReq struct {
	Image            string   `json:"image"` // base64
	ExcludeRecipeIDs []string `json:"exclude_recipe_ids,omitempty"`
}

type RecipeGenerationResp struct {
	Recipes               []Recipe `json:"recipes"`
	IdentifiedIngredients []string `json:"identifiedIngredients"`
}

// RecipeRow is the recipe table shape; the full recipe is kept as a json blob.
type RecipeRow struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Data      string    `db:"data" json:"data"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (rr *RecipeRow) ToRecipe() (*Recipe, error) {
	resp := &Recipe{}
	if err := json.Unmarshal([]byte(rr.Data), resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipe %s: %w", rr.ID, err)
	}
	return resp, nil
}

func NewRecipeRow(r *Recipe) (*RecipeRow, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &RecipeRow{
		ID:        r.ID,
		Title:     r.Title,
		Data:      string(data),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// VoiceSession is a finished voice conversation saved for transcript display.
type VoiceSession struct {
	ID        uint32    `db:"id" json:"id"`
	RecipeID  string    `db:"recipe_id" json:"recipe_id"`
	Msgs      string    `db:"msgs" json:"msgs"` // []RoleMsg as json
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (s *VoiceSession) ToHistory() ([]RoleMsg, error) {
	resp := []RoleMsg{}
	if err := json.Unmarshal([]byte(s.Msgs), &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %d: %w", s.ID, err)
	}
	return resp, nil
}

func HistoryToSJSON(msgs []RoleMsg) (string, error) {
	data, err := json.Marshal(msgs)
	if err != nil {
		return "", err
	}
	if data == nil {
		return "", fmt.Errorf("nil data")
	}
	return string(data), nil
}
