package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"souschef/config"
	"souschef/models"
	"time"
)

type Server struct {
	// nolint
	config config.Config
}

func (srv *Server) ListenToRequests(port string) {
	mux := http.NewServeMux()
	server := &http.Server{
		Addr:        "localhost:" + port,
		Handler:     mux,
		ReadTimeout: time.Second * 5,
		// recipe generation holds the connection for the whole model call
		WriteTimeout: time.Minute * 3,
	}
	mux.HandleFunc("GET /ping", pingHandler)
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("POST /api/generate-recipes-json", generateRecipesHandler)
	mux.HandleFunc("POST /api/identify-ingredients-json", identifyIngredientsHandler)
	fmt.Println("Listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil {
		panic(err)
	}
}

func pingHandler(w http.ResponseWriter, req *http.Request) {
	if _, err := w.Write([]byte("pong")); err != nil {
		logger.Error("server ping", "error", err)
	}
}

func healthHandler(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status := map[string]any{"status": "healthy", "model": cfg.GeminiModel}
	if err := cfg.Validate(); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		status["status"] = "unhealthy"
		status["error"] = err.Error()
	} else if generator == nil {
		w.WriteHeader(http.StatusInternalServerError)
		status["status"] = "unhealthy"
		status["error"] = "recipe generator failed to initialize"
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		logger.Error("health handler", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]string{"detail": msg}); err != nil {
		logger.Error("failed to write error response", "error", err)
	}
}

// decodeImageReq pulls the base64 image out of the request body.
func decodeImageReq(req *http.Request) (*models.RecipeGenerationReq, []byte, error) {
	data := &models.RecipeGenerationReq{}
	if err := json.NewDecoder(req.Body).Decode(data); err != nil {
		return nil, nil, fmt.Errorf("invalid json: %w", err)
	}
	if data.Image == "" {
		return nil, nil, fmt.Errorf("no image data provided")
	}
	image, err := base64.StdEncoding.DecodeString(data.Image)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid base64 image data: %w", err)
	}
	return data, image, nil
}

func generateRecipesHandler(w http.ResponseWriter, req *http.Request) {
	data, image, err := decodeImageReq(req)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if generator == nil {
		writeJSONError(w, http.StatusInternalServerError, "recipe generation is not configured")
		return
	}
	logger.Info("generating recipes", "image_bytes", len(image),
		"exclude_ids", data.ExcludeRecipeIDs)
	resp := generator.GenerateFromImage(req.Context(), image, data.ExcludeRecipeIDs)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("generate recipes handler", "error", err)
	}
}

func identifyIngredientsHandler(w http.ResponseWriter, req *http.Request) {
	_, image, err := decodeImageReq(req)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if generator == nil {
		writeJSONError(w, http.StatusInternalServerError, "recipe generation is not configured")
		return
	}
	logger.Info("identifying ingredients", "image_bytes", len(image))
	resp := generator.IdentifyIngredients(req.Context(), image)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("identify ingredients handler", "error", err)
	}
}
