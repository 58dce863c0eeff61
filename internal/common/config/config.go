package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

type DB struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Pass     string `yaml:"password"`
	Name     string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
}

type Mongo struct {
	URI              string        `yaml:"uri"`
	Database         string        `yaml:"database"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
	MaxPoolSize      uint64        `yaml:"max_pool_size"`
}

type MQ struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Pass     string `yaml:"password"`
	VHost    string `yaml:"vhost"`
	UseTLS   bool   `yaml:"use_tls"`
	Exchange string `yaml:"exchange"`
}

type Server struct {
	Addr          string `yaml:"addr"`
	MaxConcurrent int64  `yaml:"max_concurrent"`
	Production    bool   `yaml:"production"`
}

type Auth struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	BcryptCost int           `yaml:"bcrypt_cost"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Realtime struct {
	RequireKitchenAuth bool          `yaml:"require_kitchen_auth"`
	SendBuffer         int           `yaml:"send_buffer"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
}

type Log struct {
	Level string `yaml:"level"`
}

type App struct {
	Server     Server   `yaml:"server"`
	OrderStore string   `yaml:"order_store"`
	Database   DB       `yaml:"database"`
	Mongo      Mongo    `yaml:"mongo"`
	Rabbit     MQ       `yaml:"rabbitmq"`
	Auth       Auth     `yaml:"auth"`
	CORS       CORS     `yaml:"cors"`
	Realtime   Realtime `yaml:"realtime"`
	Log        Log      `yaml:"log"`
}

func Default() App {
	return App{
		Server:     Server{Addr: ":5000", MaxConcurrent: 50},
		OrderStore: StorePostgres,
		Database:   DB{Host: "localhost", Port: 5432, SSLMode: "disable", MaxConns: 10},
		Mongo:      Mongo{URI: "mongodb://localhost:27017", Database: "qr_ordering", OperationTimeout: 5 * time.Second, MaxPoolSize: 20},
		Rabbit:     MQ{Port: 5672, VHost: "/", Exchange: "order_events_fanout"},
		Auth:       Auth{TokenTTL: 24 * time.Hour, BcryptCost: 10},
		CORS:       CORS{AllowedOrigins: []string{"http://localhost:3000"}},
		Realtime: Realtime{
			RequireKitchenAuth: true,
			SendBuffer:         256,
			PingInterval:       54 * time.Second,
			ReadTimeout:        60 * time.Second,
			WriteTimeout:       10 * time.Second,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads the YAML file at path on top of Default. An empty path yields the
// defaults.
func Load(path string) (App, error) {
	a := Default()
	if path == "" {
		return a, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return App{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &a); err != nil {
		return App{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return a, nil
}

func (a App) Validate() error {
	var errs []error
	switch a.OrderStore {
	case StorePostgres, StoreMemory:
	case StoreMongo:
		if a.Mongo.URI == "" || a.Mongo.Database == "" {
			errs = append(errs, errors.New("mongo: uri and database are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("order_store: unknown value %q", a.OrderStore))
	}
	if a.Database.Host == "" || a.Database.User == "" || a.Database.Name == "" {
		errs = append(errs, errors.New("database: host, user and database are required"))
	}
	if a.Rabbit.Enabled && (a.Rabbit.Host == "" || a.Rabbit.User == "") {
		errs = append(errs, errors.New("rabbitmq: host and user are required when enabled"))
	}
	if a.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth: jwt_secret is required"))
	}
	if a.Server.MaxConcurrent <= 0 {
		errs = append(errs, errors.New("server: max_concurrent must be positive"))
	}
	if a.Realtime.SendBuffer <= 0 {
		errs = append(errs, errors.New("realtime: send_buffer must be positive"))
	}
	return errors.Join(errs...)
}

func FindConfig() (string, error) {
	candidates := []string{"config.yaml", "deploy/config.example.yaml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fs.ErrNotExist
}
