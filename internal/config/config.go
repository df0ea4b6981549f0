package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración de ambos binarios.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	// Upstream de completions utilizado por el proxy (cmd/api).
	OpenAIAPIKey      string  `env:"OPENAI_API_KEY"`
	OpenAIBaseURL     string  `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel       string  `env:"OPENAI_MODEL" envDefault:"gpt-4o"`
	OpenAIMaxTokens   int     `env:"OPENAI_MAX_TOKENS" envDefault:"150"`
	OpenAITemperature float32 `env:"OPENAI_TEMPERATURE" envDefault:"0.7"`

	// Cliente de chat (cmd/cli_chat).
	ProxyURL      string `env:"PROXY_URL" envDefault:"http://localhost:8080/api/openai"`
	Persona       string `env:"PERSONA" envDefault:"Você é um assistente útil e amigável."`
	FallbackReply string `env:"FALLBACK_REPLY" envDefault:"Desculpe, ocorreu um erro ao processar sua mensagem."`

	// Persistencia local del historial de sesiones.
	StoreBackend string `env:"STORE_BACKEND" envDefault:"badger"`
	StorePath    string `env:"STORE_PATH" envDefault:".buddybot"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret            string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
