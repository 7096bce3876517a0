package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/scriptorium-io/scriptorium/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existingFiles = append(existingFiles, file)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"scriptorium"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

// IndexOptions configures the Redis search index mirror.
type IndexOptions struct {
	URL       string `env:"INDEX_REDIS_URL" envDefault:"localhost:6379"`
	Password  string `env:"INDEX_REDIS_PASSWORD" envDefault:""`
	DB        int    `env:"INDEX_REDIS_DB" envDefault:"0"`
	KeyPrefix string `env:"INDEX_KEY_PREFIX" envDefault:"idx"`
}

type RepairOptions struct {
	RelayEnabled      bool          `env:"REPAIR_RELAY_ENABLED" envDefault:"true"`
	RelayPollInterval time.Duration `env:"REPAIR_RELAY_POLL_INTERVAL" envDefault:"1s"`
	RelayBatchSize    int           `env:"REPAIR_RELAY_BATCH_SIZE" envDefault:"100"`
	RelayLockTTL      time.Duration `env:"REPAIR_RELAY_LOCK_TTL" envDefault:"60s"`
	RelayMaxAttempts  int           `env:"REPAIR_RELAY_MAX_ATTEMPTS" envDefault:"25"`
	RelaySingleActive bool          `env:"REPAIR_RELAY_SINGLE_ACTIVE" envDefault:"true"`

	LastErrorMaxBytes int `env:"REPAIR_LAST_ERROR_MAX_BYTES" envDefault:"2048"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type Configuration struct {
	Database   DatabaseOptions
	Index      IndexOptions
	Repair     RepairOptions
	Prometheus PrometheusOptions

	MigrationsEnabled bool          `env:"MIGRATIONS_ENABLED" envDefault:"true"`
	ServerPort        int           `env:"PORT" envDefault:"3200"`
	GoAppEnvironment  string        `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress     string        `env:"-"`
	Domain            string        `env:"DOMAIN" envDefault:"localhost"`
	Origin            string        `env:"ORIGIN" envDefault:"http://localhost:3200"`
	PageSize          int           `env:"PAGE_SIZE" envDefault:"25"`
	MaxPageSize       int           `env:"MAX_PAGE_SIZE" envDefault:"100"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"error"`
	LogPath           string        `env:"LOG_PATH" envDefault:"./logs/app.log"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`

	// Looked up in the request; absent means the mutation is rejected.
	ActorIDHeader string `env:"ACTOR_ID_HEADER" envDefault:"X-Actor-ID"`
	// Looked up in the request; absent means a random uuidv4 is generated.
	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	RealIPHeader    string `env:"REAL_IP_HEADER" envDefault:"X-Real-IP"`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func (c *Configuration) Scheme() string {
	if c.GoAppEnvironment == Production { // assume 'https' on production mode
		return "https"
	}
	return "http"
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}

	if os.Getenv("ORIGIN") == "" {
		if c.GoAppEnvironment == "development" {
			c.Origin = fmt.Sprintf("%s://%s:%d", c.Scheme(), c.Domain, c.ServerPort)
		} else {
			c.Origin = fmt.Sprintf("%s://%s", c.Scheme(), c.Domain)
		}
	}

	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
