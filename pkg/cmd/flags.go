package cmd

import (
	"github.com/dukex/nodeflow/pkg/log"
	cli "github.com/urfave/cli/v3"
)

// ModelFlags are the model provider flags shared by the binaries that run
// workflows.
func ModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "openai-api-key",
			Usage:   "OpenAI API key, enables the openai provider",
			Sources: cli.EnvVars("OPENAI_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "openai-base-url",
			Usage:   "Alternative OpenAI compatible endpoint",
			Sources: cli.EnvVars("OPENAI_BASE_URL"),
		},
		&cli.StringFlag{
			Name:    "anthropic-api-key",
			Usage:   "Anthropic API key, enables the anthropic provider",
			Sources: cli.EnvVars("ANTHROPIC_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "ollama-url",
			Usage:   "Ollama server URL, enables the ollama provider",
			Sources: cli.EnvVars("OLLAMA_URL"),
		},
		&cli.StringFlag{
			Name:    "default-model-provider",
			Usage:   "Provider used when a node names only a tier",
			Sources: cli.EnvVars("DEFAULT_MODEL_PROVIDER"),
		},
	}
}

// ModelConfigFrom reads the ModelFlags of command.
func ModelConfigFrom(command *cli.Command) ModelConfig {
	return ModelConfig{
		OpenAIAPIKey:    command.String("openai-api-key"),
		OpenAIBaseURL:   command.String("openai-base-url"),
		AnthropicAPIKey: command.String("anthropic-api-key"),
		OllamaURL:       command.String("ollama-url"),
		DefaultProvider: command.String("default-model-provider"),
	}
}

// ObservabilityFlags enable tracing and the metrics listener.
func ObservabilityFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export OpenTelemetry traces over OTLP/HTTP",
			Sources: cli.EnvVars("TRACING_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "metrics-addr",
			Usage:   "Address serving Prometheus metrics, empty to disable",
			Sources: cli.EnvVars("METRICS_ADDR"),
		},
	}
}

// LogFlags are the logging flags of every binary.
func LogFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log output format (text, json)",
			Value:   log.FormatText,
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
	}
}

// SetupLogging installs the default logger from the LogFlags values.
func SetupLogging(command *cli.Command) {
	log.Setup(command.String("log-level"), command.String("log-format"))
}

// EventBusFlags select the event bus transport.
func EventBusFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Value:   "kafka",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringSliceFlag{
			Name:    "kafka-brokers",
			Usage:   "Kafka broker addresses",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
	}
}
