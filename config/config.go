package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	LogFile string `toml:"LogFile"`
	DBPATH  string `toml:"DBPATH"`
	// conversational backend (openai-compatible chat endpoint)
	ChatAPI   string `toml:"ChatAPI"`
	ChatModel string `toml:"ChatModel"`
	ChatToken string `toml:"ChatToken"`
	// STT
	STT_URL string `toml:"STT_URL"`
	STT_SR  int    `toml:"STT_SR"`
	// TTS
	TTS_URL   string  `toml:"TTS_URL"`
	TTS_SPEED float32 `toml:"TTS_SPEED"`
	TTS_VOICE string  `toml:"TTS_VOICE"`
	// recipe generation
	GeminiAPIKey string `toml:"GeminiAPIKey"`
	GeminiModel  string `toml:"GeminiModel"`
}

func LoadConfig(fn string) (*Config, error) {
	if fn == "" {
		fn = "config.toml"
	}
	config := &Config{}
	if _, err := os.Stat(fn); err == nil {
		if _, err := toml.DecodeFile(fn, &config); err != nil {
			return nil, err
		}
	}
	// if any value is empty fill with default
	if config.LogFile == "" {
		config.LogFile = "souschef.log"
	}
	if config.DBPATH == "" {
		config.DBPATH = "souschef.db"
	}
	if config.ChatAPI == "" {
		config.ChatAPI = "http://localhost:8080/v1/chat/completions"
	}
	if config.STT_URL == "" {
		config.STT_URL = "http://localhost:8081/inference"
	}
	if config.STT_SR == 0 {
		config.STT_SR = 16000
	}
	if config.TTS_URL == "" {
		config.TTS_URL = "http://localhost:8880/v1/audio/speech"
	}
	if config.TTS_SPEED == 0 {
		config.TTS_SPEED = 1.0
	}
	if config.TTS_VOICE == "" {
		config.TTS_VOICE = "af_bella(1)+af_sky(1)"
	}
	if config.GeminiModel == "" {
		config.GeminiModel = "gemini-1.5-pro-latest"
	}
	if config.GeminiAPIKey == "" {
		config.GeminiAPIKey = os.Getenv("GOOGLE_API_KEY")
	}
	return config, nil
}

// Validate checks the parts of the config that cannot fall back to a default.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GeminiAPIKey (or GOOGLE_API_KEY env) is required for recipe generation")
	}
	return nil
}
