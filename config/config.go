package config

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

type Config struct {
	App      App
	Server   Server
	Database Database
	MinIO    MinIO
	Queue    *RabbitMQ
	Speech   Speech
	LLM      LLM
	Pipeline Pipeline
}

type App struct {
	Environment string
	Host        string
	Protocol    string
}

type Server struct {
	HttpPort       string
	Workers        int
	MaxUploadBytes int64
}

type Database struct {
	DSN string
}

type MinIO struct {
	URL             string
	AccessID        string
	SecretAccessKey string
	Bucket          string
	Secure          bool
}

type RabbitMQ struct {
	Host     string
	Port     int
	User     string
	Pass     string
	Kind     string
	Topology Topology
}

// Topology names the exchange/queue pair the pipeline trigger travels on.
type Topology struct {
	Exchange             string
	Queue                string
	RoutingKey           string
	DeadLetterExchange   string
	DeadLetterQueue      string
	DeadLetterRoutingKey string
}

type Speech struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type LLM struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
}

type Pipeline struct {
	MaxBlobBytes      int64
	MaxExtractedChars int
	MaxSummaryChars   int
	KeyPointsPolicy   string
	StaleAfter        time.Duration
	Retry             Retry
}

type Retry struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Enabled reports whether a broker is configured; without one the service
// runs HTTP-only.
func (r *RabbitMQ) Enabled() bool {
	return r != nil && r.Host != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", EnvironmentDefault)
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.workers", 2)
	v.SetDefault("server.max_upload_bytes", 100<<20)
	v.SetDefault("postgresql_host", "")
	v.SetDefault("minio.url", "")
	v.SetDefault("minio.access_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.bucket", "uploads")
	v.SetDefault("minio.secure", false)
	v.SetDefault("rabbitmq_host", "")
	v.SetDefault("rabbitmq_port", 5672)
	v.SetDefault("rabbitmq_user", "guest")
	v.SetDefault("rabbitmq_pass", "guest")
	v.SetDefault("rabbitmq_kind", "topic")
	v.SetDefault("queue.exchange", "upload_exchange")
	v.SetDefault("queue.queue", "upload_processing_queue")
	v.SetDefault("queue.routing_key", "upload.process.request")
	v.SetDefault("queue.dead_letter_exchange", "upload_exchange_dlx")
	v.SetDefault("queue.dead_letter_queue", "upload_processing_queue_dlq")
	v.SetDefault("queue.dead_letter_routing_key", "dlq.upload.process.request")
	v.SetDefault("speech.api_key", "")
	v.SetDefault("speech.base_url", "https://api.elevenlabs.io")
	v.SetDefault("speech.model", "scribe_v1")
	v.SetDefault("speech.timeout", 10*time.Minute)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.openai.com")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", 3*time.Minute)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("pipeline.max_blob_bytes", 200<<20)
	v.SetDefault("pipeline.max_extracted_chars", 5_000_000)
	v.SetDefault("pipeline.max_summary_chars", 30_000)
	v.SetDefault("pipeline.key_points_policy", "best_effort")
	v.SetDefault("pipeline.stale_after", 30*time.Minute)
	v.SetDefault("pipeline.retry.max_tries", 3)
	v.SetDefault("pipeline.retry.initial_interval", 500*time.Millisecond)
	v.SetDefault("pipeline.retry.max_interval", 10*time.Second)
}

const EnvironmentDefault = "develop"

// Load reads config.yaml from path; every key can be overridden from the
// environment with dots replaced by underscores (speech.api_key -> SPEECH_API_KEY).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	rabbitmq := &RabbitMQ{
		Host: v.GetString("rabbitmq_host"),
		Port: v.GetInt("rabbitmq_port"),
		User: v.GetString("rabbitmq_user"),
		Pass: v.GetString("rabbitmq_pass"),
		Kind: v.GetString("rabbitmq_kind"),
		Topology: Topology{
			Exchange:             v.GetString("queue.exchange"),
			Queue:                v.GetString("queue.queue"),
			RoutingKey:           v.GetString("queue.routing_key"),
			DeadLetterExchange:   v.GetString("queue.dead_letter_exchange"),
			DeadLetterQueue:      v.GetString("queue.dead_letter_queue"),
			DeadLetterRoutingKey: v.GetString("queue.dead_letter_routing_key"),
		},
	}

	return &Config{
		App: App{
			Environment: v.GetString("app.environment"),
			Host:        v.GetString("app.host"),
			Protocol:    v.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort:       v.GetString("server.port"),
			Workers:        v.GetInt("server.workers"),
			MaxUploadBytes: v.GetInt64("server.max_upload_bytes"),
		},
		Database: Database{DSN: v.GetString("postgresql_host")},
		MinIO: MinIO{
			URL:             v.GetString("minio.url"),
			AccessID:        v.GetString("minio.access_id"),
			SecretAccessKey: v.GetString("minio.secret_access_key"),
			Bucket:          v.GetString("minio.bucket"),
			Secure:          v.GetBool("minio.secure"),
		},
		Queue: rabbitmq,
		Speech: Speech{
			APIKey:  v.GetString("speech.api_key"),
			BaseURL: v.GetString("speech.base_url"),
			Model:   v.GetString("speech.model"),
			Timeout: v.GetDuration("speech.timeout"),
		},
		LLM: LLM{
			APIKey:      v.GetString("llm.api_key"),
			BaseURL:     v.GetString("llm.base_url"),
			Model:       v.GetString("llm.model"),
			Timeout:     v.GetDuration("llm.timeout"),
			Temperature: v.GetFloat64("llm.temperature"),
		},
		Pipeline: Pipeline{
			MaxBlobBytes:      v.GetInt64("pipeline.max_blob_bytes"),
			MaxExtractedChars: v.GetInt("pipeline.max_extracted_chars"),
			MaxSummaryChars:   v.GetInt("pipeline.max_summary_chars"),
			KeyPointsPolicy:   v.GetString("pipeline.key_points_policy"),
			StaleAfter:        v.GetDuration("pipeline.stale_after"),
			Retry: Retry{
				MaxTries:        v.GetUint("pipeline.retry.max_tries"),
				InitialInterval: v.GetDuration("pipeline.retry.initial_interval"),
				MaxInterval:     v.GetDuration("pipeline.retry.max_interval"),
			},
		},
	}, nil
}

var ErrMissingDSN = errors.New("postgresql_host is not configured")

func NewDB(cfg Database) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, ErrMissingDSN
	}
	return sql.Open("postgres", cfg.DSN)
}

var ErrMissingMinIO = errors.New("minio.url is not configured")

func NewMinIOClient(cfg MinIO) (*minio.Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, ErrMissingMinIO
	}
	return minio.New(cfg.URL, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessID, cfg.SecretAccessKey, ""),
		Secure: cfg.Secure,
	})
}
