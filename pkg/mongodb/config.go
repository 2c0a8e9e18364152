package mongodb

import (
	"os"

	"gopkg.in/yaml.v3"
)

type MongoConfig struct {
	Host       string `yaml:"host"`
	DBName     string `yaml:"dbname"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	AuthSource string `yaml:"authSource"`
}

type ServerConfig struct {
	Address string `yaml:"address"`
}

// StorageConfig names the GridFS bucket for localized images and the base
// URL under which they are served back.
type StorageConfig struct {
	Bucket  string `yaml:"bucket"`
	BaseURL string `yaml:"base_url"`
}

type Config struct {
	Mongo   MongoConfig   `yaml:"mongo"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "articles"
	}
	return &cfg, nil
}
