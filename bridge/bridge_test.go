package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"souschef/config"
	"souschef/models"
	"strings"
	"testing"
)

func testBridge(t *testing.T, sttURL, chatAPI, ttsURL string) *HTTPBridge {
	t.Helper()
	cfg := &config.Config{
		STT_URL:   sttURL,
		ChatAPI:   chatAPI,
		ChatModel: "testmodel",
		TTS_URL:   ttsURL,
		TTS_SPEED: 1.0,
		TTS_VOICE: "af_bella(1)+af_sky(1)",
	}
	return New(slog.New(slog.NewTextHandler(os.Stdout, nil)), cfg)
}

func TestTranscribe(t *testing.T) {
	cases := []struct {
		body     string
		expected string
	}{
		{body: "[_BEG_] what's step one\n", expected: "what's step one"},
		{body: "   \n", expected: ""},
		{body: "[_TT_42]", expected: ""},
	}
	for i, tc := range cases {
		t.Run(fmt.Sprintf("run_%d", i), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseMultipartForm(1 << 20); err != nil {
					t.Errorf("expected multipart form: %v", err)
				}
				if got := r.FormValue("response_format"); got != "text" {
					t.Errorf("expected response_format=text, got %q", got)
				}
				if _, _, err := r.FormFile("file"); err != nil {
					t.Errorf("expected file part: %v", err)
				}
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()
			b := testBridge(t, srv.URL, "", "")
			got, err := b.Transcribe(context.Background(), []byte("RIFFfake"))
			if err != nil {
				t.Fatalf("transcribe failed: %v", err)
			}
			if got != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestTranscribeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	b := testBridge(t, srv.URL, "", "")
	if _, err := b.Transcribe(context.Background(), []byte("RIFFfake")); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestConverse(t *testing.T) {
	recipe := models.RecipeContext{
		Title:        "Tomato Basil Pasta",
		Ingredients:  []string{"200g pasta"},
		Instructions: []string{"Boil the pasta"},
	}
	history := []models.RoleMsg{
		{Role: "assistant", Content: "Hi! I'm here to help."},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := models.ChatBody{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode chat body: %v", err)
		}
		if body.Stream {
			t.Error("expected non-streaming request")
		}
		// system + greeting + user
		if len(body.Messages) != 3 {
			t.Fatalf("expected 3 messages, got %d", len(body.Messages))
		}
		if body.Messages[0].Role != "system" ||
			!strings.Contains(body.Messages[0].Content, "Tomato Basil Pasta") {
			t.Errorf("bad system prompt: %+v", body.Messages[0])
		}
		last := body.Messages[len(body.Messages)-1]
		if last.Role != "user" || last.Content != "what's step one" {
			t.Errorf("expected user message last, got %+v", last)
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Boil the pasta first."}},
			},
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("failed to encode response: %v", err)
		}
	}))
	defer srv.Close()
	b := testBridge(t, "", srv.URL, "")
	got, err := b.Converse(context.Background(), recipe, history, "what's step one")
	if err != nil {
		t.Fatalf("converse failed: %v", err)
	}
	if got != "Boil the pasta first." {
		t.Errorf("unexpected reply: %q", got)
	}
}

func TestSynthesize(t *testing.T) {
	mp3Bytes := []byte{0xFF, 0xFB, 0x90, 0x00}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode tts payload: %v", err)
		}
		if payload["input"] != "Boil the pasta first." {
			t.Errorf("unexpected input: %v", payload["input"])
		}
		if payload["response_format"] != "mp3" {
			t.Errorf("unexpected format: %v", payload["response_format"])
		}
		if _, err := w.Write(mp3Bytes); err != nil {
			t.Fatalf("failed to write audio: %v", err)
		}
	}))
	defer srv.Close()
	b := testBridge(t, "", "", srv.URL)
	got, err := b.Synthesize(context.Background(), "Boil the pasta first.")
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
	if len(got) != len(mp3Bytes) {
		t.Errorf("expected %d bytes, got %d", len(mp3Bytes), len(got))
	}
}
