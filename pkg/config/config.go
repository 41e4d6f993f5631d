package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	App       AppConfig       `envPrefix:"APP_"`
	Output    OutputConfig    `envPrefix:"OUTPUT_"`
	Publisher PublisherConfig `envPrefix:"PUBLISHER_"`
	Kafka     KafkaConfig     `envPrefix:"KAFKA_"`
}

// AppConfig represents the application configuration.
type AppConfig struct {
	Name             string `env:"NAME" envDefault:"mbp-engine"`
	Environment      string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	PermissiveFilter bool   `env:"PERMISSIVE_FILTER" envDefault:"false"`
}

// OutputConfig controls the MBP-10 CSV output stream.
type OutputConfig struct {
	Path       string `env:"PATH" envDefault:"output.csv"`
	BufferSize int    `env:"BUFFER_SIZE" envDefault:"65536"`
}

// PublisherConfig holds the venue constants stamped on every output row.
type PublisherConfig struct {
	PublisherID  int    `env:"ID" envDefault:"2"`
	InstrumentID int    `env:"INSTRUMENT_ID" envDefault:"1108"`
	Symbol       string `env:"SYMBOL" envDefault:"ARL"`
}

// KafkaConfig configures the optional snapshot mirror topic.
type KafkaConfig struct {
	Enabled bool     `env:"ENABLED" envDefault:"false"`
	Brokers []string `env:"BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	Topic   string   `env:"TOPIC" envDefault:"mbp10-snapshots"`
}

// Load loads the configuration from the environment.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}
