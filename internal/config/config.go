package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Embedding model
	Model               string  `envconfig:"MODEL_NAME" default:"Facenet512"`
	SimilarityThreshold float64 `envconfig:"SIMILARITY_THRESHOLD" default:"0.30"`
	MatchRatioThreshold float64 `envconfig:"MATCH_RATIO_THRESHOLD" default:"0.2"`

	// DeepFace comparator
	DeepFaceURL     string        `envconfig:"DEEPFACE_URL" default:"http://localhost:5005"`
	DeepFaceTimeout time.Duration `envconfig:"DEEPFACE_TIMEOUT" default:"30s"`

	// Queue
	QueuePrefetch     int           `envconfig:"QUEUE_PREFETCH" default:"10"`
	QueuePollInterval time.Duration `envconfig:"QUEUE_POLL_INTERVAL" default:"1s"`
	QueueMaxAttempts  int           `envconfig:"QUEUE_MAX_ATTEMPTS" default:"5"`
	HandlerTimeout    time.Duration `envconfig:"HANDLER_TIMEOUT" default:"60s"`

	// Resolver
	ANNIndexEnabled bool `envconfig:"ANN_INDEX_ENABLED" default:"false"`
	ANNCandidates   int  `envconfig:"ANN_CANDIDATES" default:"10"`

	// Blob store (S3-compatible, e.g. MinIO)
	S3Endpoint        string `envconfig:"S3_ENDPOINT" default:"http://localhost:9000"`
	S3Region          string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey       string `envconfig:"S3_ACCESS_KEY" default:"minioadmin"`
	S3SecretKey       string `envconfig:"S3_SECRET_KEY" default:"minioadmin"`
	DetectionsBucket  string `envconfig:"DETECTIONS_BUCKET" default:"deteccoes"`
	RecognitionBucket string `envconfig:"RECOGNITION_BUCKET" default:"reconhecimento"`

	// MQTT ingest bridge
	MQTTEnabled  bool   `envconfig:"MQTT_ENABLED" default:"false"`
	MQTTBroker   string `envconfig:"MQTT_BROKER" default:"localhost"`
	MQTTPort     int    `envconfig:"MQTT_PORT" default:"1883"`
	MQTTClientID string `envconfig:"MQTT_CLIENT_ID" default:"presenca-ingest"`
	MQTTUsername string `envconfig:"MQTT_USERNAME" default:""`
	MQTTPassword string `envconfig:"MQTT_PASSWORD" default:""`
	MQTTTopic    string `envconfig:"MQTT_TOPIC" default:"presenca/detections"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
