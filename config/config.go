package config

import (
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

type Config struct {
	MinIOBucket string        `yaml:"minio_bucket"`
	App         App           `yaml:"app"`
	Server      Server        `yaml:"server"`
	Reassembly  Reassembly    `yaml:"reassembly"`
	Queue       *RabbitMQ     `yaml:"rabbitmq"`
	Storage     *minio.Client `yaml:"storage"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort string `yaml:"http_port"`
	Workers  int    `yaml:"workers"`
}

// Reassembly controls the periodic sweep and the operator endpoint. MinChunks
// is the merge quorum: sessions with fewer committed chunks are left as-is
// and served chunk-by-chunk.
type Reassembly struct {
	Secret    string        `yaml:"secret"`
	Interval  time.Duration `yaml:"interval"`
	MinChunks int           `yaml:"min_chunks"`
}

type RabbitMQ struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Pass         string `json:"pass"`
	ExchangeName string `json:"exchange_name"`
	Kind         string `json:"kind"`
}

func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.workers", 4)
	viper.SetDefault("reassembly.interval_seconds", 300)
	viper.SetDefault("reassembly.min_chunks", 2)
	viper.SetDefault("rabbitmq_kind", "topic")
	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	rabbitmq := &RabbitMQ{
		Host: viper.GetString("rabbitmq_host"),
		Port: viper.GetInt("rabbitmq_port"),
		User: viper.GetString("rabbitmq_user"),
		Pass: viper.GetString("rabbitmq_pass"),
		Kind: viper.GetString("rabbitmq_kind"),
	}

	minioClient, err := minio.New(viper.GetString("minio.url"), &minio.Options{
		Creds:  credentials.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}

	return &Config{
		MinIOBucket: viper.GetString("minio.bucket"),
		App: App{
			Environment: viper.GetString("app.environment"),
			Host:        viper.GetString("app.host"),
			Protocol:    viper.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort: viper.GetString("server.port"),
			Workers:  viper.GetInt("server.workers"),
		},
		Reassembly: Reassembly{
			Secret:    viper.GetString("reassembly.secret"),
			Interval:  time.Duration(viper.GetInt("reassembly.interval_seconds")) * time.Second,
			MinChunks: viper.GetInt("reassembly.min_chunks"),
		},
		Queue:   rabbitmq,
		Storage: minioClient,
	}, nil
}
