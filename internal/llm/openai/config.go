package openai

import "time"

// Config for the OpenAI chat/completions client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.Model == "" {
		c.Model = "gpt-4.1-mini"
	}
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	return c
}
