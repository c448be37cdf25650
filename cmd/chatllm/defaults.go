package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	// Telegram
	viper.SetDefault("telegram.token", "")
	viper.SetDefault("telegram.base_url", "")
	viper.SetDefault("telegram.poll_timeout", 30*time.Second)
	viper.SetDefault("telegram.max_concurrency", 8)
	viper.SetDefault("telegram.message_limit", 4000)
	viper.SetDefault("telegram.max_file_bytes", int64(20*1024*1024))

	// Access control
	viper.SetDefault("admin_id", int64(0))

	// Providers
	viper.SetDefault("groq.api_key", "")
	viper.SetDefault("groq.base_url", "https://api.groq.com/openai")
	viper.SetDefault("mistral.api_key", "")
	viper.SetDefault("mistral.base_url", "https://api.mistral.ai")
	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("gemini.speech_model", "gemini-2.0-flash")

	// Storage
	viper.SetDefault("store.backend", "file")
	viper.SetDefault("store.dir", "./data")
	viper.SetDefault("store.bolt_path", "./data/chatllm.db")

	// Chat behaviour
	viper.SetDefault("chat.history_max_turns", 10)
	viper.SetDefault("chat.system_prompt", "You are a helpful assistant. Answer in the language the user writes in.")
	viper.SetDefault("chat.models_file", "")

	// Health endpoint (disabled unless an address is set)
	viper.SetDefault("health.listen", "")

	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)
	viper.SetDefault("trace", false)
}
