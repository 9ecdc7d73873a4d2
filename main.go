package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
)

func main() {
	apiPort := flag.Int("port", 0, "port to host api")
	photoPath := flag.String("photo", "", "generate recipes from an ingredient photo and exit")
	flag.Parse()
	if apiPort != nil && *apiPort > 3000 {
		// start api server; no tui
		srv := &Server{config: *cfg}
		srv.ListenToRequests(strconv.Itoa(*apiPort))
		return
	}
	if photoPath != nil && *photoPath != "" {
		if err := generateFromPhoto(*photoPath); err != nil {
			fmt.Println("failed to generate recipes:", err)
			os.Exit(1)
		}
		return
	}
	pages.AddPage("main", flex, true, true)
	if err := app.SetRoot(pages,
		true).EnableMouse(true).EnablePaste(true).Run(); err != nil {
		logger.Error("failed to start tview app", "error", err)
		return
	}
}

// generateFromPhoto runs the photo-to-recipes pipeline once, stores the
// results and prints them to stdout.
func generateFromPhoto(path string) error {
	if generator == nil {
		return fmt.Errorf("recipe generation is not configured; set GeminiAPIKey")
	}
	image, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	excludeIDs, err := store.RecipeIDs()
	if err != nil {
		logger.Error("failed to list stored recipe ids", "error", err)
		excludeIDs = nil
	}
	resp := generator.GenerateFromImage(context.Background(), image, excludeIDs)
	for i := range resp.Recipes {
		if err := store.UpsertRecipe(&resp.Recipes[i]); err != nil {
			logger.Error("failed to store recipe", "error", err, "id", resp.Recipes[i].ID)
		}
	}
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
