package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config 服务配置
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Firebase  FirebaseConfig  `mapstructure:"firebase"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

type AppConfig struct {
	Env string `mapstructure:"env"` // development, production
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend"` // sql, firestore
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // mysql, postgres
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Migrate  bool   `mapstructure:"migrate"`
}

type FirebaseConfig struct {
	ProjectID         string `mapstructure:"project_id"`
	CredentialsPath   string `mapstructure:"credentials_path"`
	FirestoreDatabase string `mapstructure:"firestore_database"`
	AuthEnabled       bool   `mapstructure:"auth_enabled"`
}

type DashboardConfig struct {
	Lookback      time.Duration `mapstructure:"lookback"`
	ActivityLimit int           `mapstructure:"activity_limit"`
	ItemsPerPage  int           `mapstructure:"items_per_page"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
	PublicURL     string        `mapstructure:"public_url"`
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.trusted_proxies", []string{"127.0.0.1"})

	v.SetDefault("store.backend", "sql")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "donations")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.migrate", false)

	v.SetDefault("firebase.project_id", "")
	v.SetDefault("firebase.credentials_path", "")
	v.SetDefault("firebase.firestore_database", "(default)")
	v.SetDefault("firebase.auth_enabled", false)

	v.SetDefault("dashboard.lookback", 30*24*time.Hour)
	v.SetDefault("dashboard.activity_limit", 50)
	v.SetDefault("dashboard.items_per_page", 5)
	v.SetDefault("dashboard.fetch_timeout", 10*time.Second)
	v.SetDefault("dashboard.public_url", "http://localhost:8080")
}

// LoadConfig 加载配置
// Sources, lowest priority first: defaults, config.yaml (working directory,
// then the executable directory), .env, DASHBOARD_* environment variables.
func LoadConfig(dirs ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if len(dirs) == 0 {
		dirs = defaultConfigDirs()
	}

	for _, dir := range dirs {
		dotEnvPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				return nil, errors.Wrapf(err, "load %s", dotEnvPath)
			}
			break
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "stat %s", dotEnvPath)
		}
	}

	for _, dir := range dirs {
		path := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}
		break
	}

	v.SetEnvPrefix("DASHBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "sql":
		switch c.Database.Driver {
		case "mysql", "postgres":
		default:
			return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
		}
	case "firestore":
		if c.Firebase.ProjectID == "" {
			return errors.New("firebase.project_id is required for the firestore backend")
		}
	default:
		return fmt.Errorf("unsupported store.backend %q", c.Store.Backend)
	}
	if c.Firebase.AuthEnabled && c.Firebase.ProjectID == "" {
		return errors.New("firebase.project_id is required when firebase.auth_enabled is set")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Dashboard.Lookback <= 0 {
		return errors.New("dashboard.lookback must be positive")
	}
	if c.Dashboard.ActivityLimit <= 0 {
		return errors.New("dashboard.activity_limit must be positive")
	}
	if c.Dashboard.ItemsPerPage <= 0 {
		return errors.New("dashboard.items_per_page must be positive")
	}
	return nil
}

func defaultConfigDirs() []string {
	var dirs []string
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}
	if execDir, err := filepath.Abs(filepath.Dir(os.Args[0])); err == nil {
		dirs = append(dirs, execDir)
	}
	return dirs
}
