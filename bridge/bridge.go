package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"regexp"
	"souschef/config"
	"souschef/models"
	"strings"
	"time"
)

// whisper emits special tokens like [_BEG_] around transcripts
var specialRE = regexp.MustCompile(`\[.*?\]`)

// Bridge is the remote collaborator surface of the voice loop: speech in,
// conversational turn, speech out. All three are fallible; the conversation
// controller owns the recovery policy.
type Bridge interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
	Converse(ctx context.Context, recipe models.RecipeContext, history []models.RoleMsg, userMsg string) (string, error)
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type HTTPBridge struct {
	logger    *slog.Logger
	client    *http.Client
	sttURL    string
	chatAPI   string
	chatModel string
	chatToken string
	ttsURL    string
	ttsSpeed  float32
	ttsVoice  string
}

func New(logger *slog.Logger, cfg *config.Config) *HTTPBridge {
	return &HTTPBridge{
		logger:    logger,
		client:    createClient(time.Second * 90),
		sttURL:    cfg.STT_URL,
		chatAPI:   cfg.ChatAPI,
		chatModel: cfg.ChatModel,
		chatToken: cfg.ChatToken,
		ttsURL:    cfg.TTS_URL,
		ttsSpeed:  cfg.TTS_SPEED,
		ttsVoice:  cfg.TTS_VOICE,
	}
}

func createClient(connectTimeout time.Duration) *http.Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{
				Timeout:   connectTimeout,
				KeepAlive: 30 * time.Second,
			}
			return dialer.DialContext(ctx, network, addr)
		},
		TLSHandshakeTimeout: connectTimeout,
	}
	// no overall timeout; the voice loop relies on ctx cancellation instead
	return &http.Client{Transport: transport}
}

// Transcribe uploads a WAV blob to the whisper server and returns plain text.
// An empty or whitespace transcript is a valid result, not an error.
func (b *HTTPBridge) Transcribe(ctx context.Context, wav []byte) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "recording.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("failed to write audio part: %w", err)
	}
	if err := writer.WriteField("response_format", "text"); err != nil {
		return "", fmt.Errorf("failed to write response_format field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", b.sttURL, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("stt request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("stt unexpected status code: %d", resp.StatusCode)
	}
	responseTextBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read stt response: %w", err)
	}
	resptext := strings.TrimRight(string(responseTextBytes), "\n")
	resptext = specialRE.ReplaceAllString(resptext, "")
	return strings.TrimSpace(strings.ReplaceAll(resptext, "\n ", "\n")), nil
}

// sysPrompt anchors the assistant to the recipe the session was started on.
func sysPrompt(recipe models.RecipeContext) string {
	var sb strings.Builder
	sb.WriteString("You are a friendly cooking assistant helping the user cook ")
	sb.WriteString(recipe.Title)
	sb.WriteString(". Answer briefly; the reply will be spoken aloud.\n")
	if len(recipe.Ingredients) > 0 {
		sb.WriteString("Ingredients:\n")
		for _, ing := range recipe.Ingredients {
			sb.WriteString("- " + ing + "\n")
		}
	}
	if len(recipe.Instructions) > 0 {
		sb.WriteString("Instructions:\n")
		for i, step := range recipe.Instructions {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, step)
		}
	}
	return sb.String()
}

// Converse sends the recipe system prompt, the prior history and the latest
// user utterance as one non-streaming chat completion.
func (b *HTTPBridge) Converse(ctx context.Context, recipe models.RecipeContext, history []models.RoleMsg, userMsg string) (string, error) {
	messages := make([]models.RoleMsg, 0, len(history)+2)
	messages = append(messages, models.RoleMsg{Role: "system", Content: sysPrompt(recipe)})
	messages = append(messages, history...)
	messages = append(messages, models.RoleMsg{Role: "user", Content: userMsg})
	payload, err := json.Marshal(models.ChatBody{
		Model:    b.chatModel,
		Stream:   false,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", b.chatAPI, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Content-Type", "application/json")
	if b.chatToken != "" {
		req.Header.Add("Authorization", "Bearer "+b.chatToken)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat unexpected status code: %d", resp.StatusCode)
	}
	data := &models.ChatResp{}
	if err := json.NewDecoder(resp.Body).Decode(data); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(data.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}
	return strings.TrimSpace(data.Choices[0].Message.Content), nil
}

// Synthesize requests MP3 speech for the given text from a kokoro server.
func (b *HTTPBridge) Synthesize(ctx context.Context, text string) ([]byte, error) {
	payload := map[string]interface{}{
		"input":           text,
		"voice":           b.ttsVoice,
		"response_format": models.AFMP3,
		"download_format": models.AFMP3,
		"stream":          false,
		"speed":           b.ttsSpeed,
		"lang_code":       "a",
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", b.ttsURL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts unexpected status code: %d", resp.StatusCode)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tts response: %w", err)
	}
	return audio, nil
}
