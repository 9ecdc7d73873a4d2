package storage

import (
	"log/slog"
	"souschef/models"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"
)

type RecipeStore interface {
	ListRecipes() ([]models.RecipeRow, error)
	GetRecipeByID(id string) (*models.Recipe, error)
	UpsertRecipe(r *models.Recipe) error
	RemoveRecipe(id string) error
	RecipeIDs() ([]string, error)
}

type SessionStore interface {
	SessionGetMaxID() (uint32, error)
	UpsertSession(s *models.VoiceSession) (*models.VoiceSession, error)
	ListSessionsByRecipe(recipeID string) ([]models.VoiceSession, error)
	RemoveSession(id uint32) error
}

type FullRepo interface {
	RecipeStore
	SessionStore
}

type ProviderSQL struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func (p ProviderSQL) ListRecipes() ([]models.RecipeRow, error) {
	resp := []models.RecipeRow{}
	err := p.db.Select(&resp, "SELECT * FROM recipes ORDER BY updated_at DESC;")
	return resp, err
}

func (p ProviderSQL) GetRecipeByID(id string) (*models.Recipe, error) {
	row := models.RecipeRow{}
	if err := p.db.Get(&row, "SELECT * FROM recipes WHERE id=$1;", id); err != nil {
		return nil, err
	}
	return row.ToRecipe()
}

func (p ProviderSQL) UpsertRecipe(r *models.Recipe) error {
	row, err := models.NewRecipeRow(r)
	if err != nil {
		return err
	}
	query := `
        INSERT OR REPLACE INTO recipes (id, title, data, created_at, updated_at)
        VALUES (:id, :title, :data, :created_at, :updated_at);`
	_, err = p.db.NamedExec(query, row)
	return err
}

func (p ProviderSQL) RemoveRecipe(id string) error {
	_, err := p.db.Exec("DELETE FROM recipes WHERE id = $1;", id)
	return err
}

// RecipeIDs lists stored recipe ids; the generator excludes them on refresh.
func (p ProviderSQL) RecipeIDs() ([]string, error) {
	resp := []string{}
	err := p.db.Select(&resp, "SELECT id FROM recipes;")
	return resp, err
}

func (p ProviderSQL) SessionGetMaxID() (uint32, error) {
	var id uint32
	err := p.db.Get(&id, "SELECT COALESCE(MAX(id), 0) FROM voice_sessions;")
	return id, err
}

func (p ProviderSQL) UpsertSession(s *models.VoiceSession) (*models.VoiceSession, error) {
	query := `
        INSERT OR REPLACE INTO voice_sessions (id, recipe_id, msgs, created_at, updated_at)
        VALUES (:id, :recipe_id, :msgs, :created_at, :updated_at)
        RETURNING *;`
	stmt, err := p.db.PrepareNamed(query)
	if err != nil {
		return nil, err
	}
	var resp models.VoiceSession
	err = stmt.Get(&resp, s)
	return &resp, err
}

func (p ProviderSQL) ListSessionsByRecipe(recipeID string) ([]models.VoiceSession, error) {
	resp := []models.VoiceSession{}
	err := p.db.Select(&resp,
		"SELECT * FROM voice_sessions WHERE recipe_id=$1 ORDER BY created_at;", recipeID)
	return resp, err
}

func (p ProviderSQL) RemoveSession(id uint32) error {
	_, err := p.db.Exec("DELETE FROM voice_sessions WHERE id = $1;", id)
	return err
}

func NewProviderSQL(dbPath string, logger *slog.Logger) FullRepo {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		logger.Error("failed to open sqlite", "error", err, "path", dbPath)
		return nil
	}
	p := ProviderSQL{db: db, logger: logger}
	p.Migrate()
	return p
}
