package util

import (
	"fmt"
	"net/url"
	"time"
)

// Config is the process configuration shared by the server and the
// worker. Every field comes from the environment.
type Config struct {
	Debug   bool
	JSONLog bool
	Port    string

	DatabaseURL string
	RedisAddr   string
	RedisTTL    time.Duration

	RabbitMQURL string

	AIAdapter      string
	EmbedModel     string
	EmbedURL       string
	EmbedKey       string
	EmbedDim       int
	AIParallelReq  int
	AITimeoutMin   int
	AuthURL        string
	SemanticWeight float64
	TensorWeight   float64
	Fanout         int
}

// LoadConfig reads Config from the environment. Call LoadEnv first to
// pick up a .env file.
func LoadConfig() Config {
	c := Config{
		Debug:   GetEnvBool("DEBUG", false),
		JSONLog: GetEnvBool("LOG_JSON", false),
		Port:    GetEnvString("PORT", "8080"),

		DatabaseURL: GetEnv("DATABASE_URL"),
		RedisAddr:   GetEnv("REDIS_ADDR"),
		RedisTTL:    GetEnvDuration("REDIS_TTL_SECONDS", 5*time.Minute),

		AIAdapter:      GetEnvString("AI_ADAPTER", "none"),
		EmbedModel:     GetEnv("AI_EMBED_MODEL"),
		EmbedURL:       GetEnv("AI_EMBED_URL"),
		EmbedKey:       GetEnv("AI_EMBED_KEY"),
		EmbedDim:       GetEnvInt("AI_EMBED_DIM", 0),
		AIParallelReq:  GetEnvInt("AI_PARALLEL_REQ", 15),
		AITimeoutMin:   GetEnvInt("AI_TIMEOUT_MIN", 1),
		AuthURL:        GetEnv("AUTH_URL"),
		SemanticWeight: GetEnvNumeric("SEARCH_SEMANTIC_WEIGHT", 0.6),
		TensorWeight:   GetEnvNumeric("SEARCH_TENSOR_WEIGHT", 0.4),
		Fanout:         GetEnvInt("ENGINE_FANOUT", 8),
	}

	if host := GetEnv("RABBITMQ_HOST"); host != "" {
		u := url.URL{
			Scheme: "amqp",
			User:   url.UserPassword(GetEnvString("RABBITMQ_USER", "guest"), GetEnvString("RABBITMQ_PASSWORD", "guest")),
			Host:   fmt.Sprintf("%s:%s", host, GetEnvString("RABBITMQ_PORT", "5672")),
			Path:   "/",
		}
		c.RabbitMQURL = u.String()
	}
	return c
}
