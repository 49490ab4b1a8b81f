package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/db/sqlstore"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/notify"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/status"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of all environment variables read by Load.
const EnvPrefix = "SP"

type Config struct {
	Server     ServerConfig     `yaml:"server" split_words:"true"`
	Logging    LoggingConfig    `yaml:"logging" split_words:"true"`
	Database   DatabaseConfig   `yaml:"database" split_words:"true"`
	Blockfrost BlockfrostConfig `yaml:"blockfrost" split_words:"true"`
	Status     StatusConfig     `yaml:"status" split_words:"true"`
	Loader     LoaderConfig     `yaml:"loader" split_words:"true"`
	Notify     NotifyConfig     `yaml:"notify" split_words:"true"`
	Mail       MailConfig       `yaml:"mail" split_words:"true"`
	Auth       AuthConfig       `yaml:"auth" split_words:"true"`
}

type ServerConfig struct {
	Hostname string `yaml:"hostname" split_words:"true"`
	Port     int    `yaml:"port" split_words:"true"`
}

type LoggingConfig struct {
	Level string `yaml:"level" split_words:"true"`
	// Format is either "text" or "json".
	Format string `yaml:"format" split_words:"true"`
}

type DatabaseConfig struct {
	// Driver is either "sqlite3" or "pgx".
	Driver string `yaml:"driver" split_words:"true"`
	// Path is the directory of the sqlite database.
	Path string `yaml:"path" split_words:"true"`
	// URL is the connection string of the postgres database.
	URL string `yaml:"url" split_words:"true"`
}

type BlockfrostConfig struct {
	ProjectID string        `yaml:"projectId" split_words:"true"`
	Server    string        `yaml:"server" split_words:"true"`
	Retries   uint64        `yaml:"retries" split_words:"true"`
	Backoff   time.Duration `yaml:"backoff" split_words:"true"`
	Timeout   time.Duration `yaml:"timeout" split_words:"true"`
	CacheSize int           `yaml:"cacheSize" split_words:"true"`
}

type StatusConfig struct {
	// Schedule is a cron expression with a leading seconds field.
	Schedule            string `yaml:"schedule" split_words:"true"`
	NearBorderThreshold uint   `yaml:"nearBorderThreshold" split_words:"true"`
	RetryBudget         int    `yaml:"retryBudget" split_words:"true"`
	RewardsLag          uint   `yaml:"rewardsLag" split_words:"true"`
	ExplorerURL         string `yaml:"explorerUrl" split_words:"true"`
	Workers             int    `yaml:"workers" split_words:"true"`
}

type LoaderConfig struct {
	Enabled     bool   `yaml:"enabled" split_words:"true"`
	Schedule    string `yaml:"schedule" split_words:"true"`
	Root        string `yaml:"root" split_words:"true"`
	MaxFailures int    `yaml:"maxFailures" split_words:"true"`
}

type NotifyConfig struct {
	// Timeout bounds the delivery of a notification to a single sink.
	Timeout     time.Duration `yaml:"timeout" split_words:"true"`
	RedisAddr   string        `yaml:"redisAddr" split_words:"true"`
	RedisPrefix string        `yaml:"redisPrefix" split_words:"true"`
	NatsURL     string        `yaml:"natsUrl" split_words:"true"`
	NatsPrefix  string        `yaml:"natsPrefix" split_words:"true"`
	// Log writes every notification to the log, if it is true.
	Log bool `yaml:"log" split_words:"true"`
}

type MailConfig struct {
	// Enabled sends mails over SMTP, otherwise mails are only logged.
	Enabled   bool   `yaml:"enabled" split_words:"true"`
	Host      string `yaml:"host" split_words:"true"`
	Port      int    `yaml:"port" split_words:"true"`
	User      string `yaml:"user" split_words:"true"`
	Password  string `yaml:"password" split_words:"true"`
	Sender    string `yaml:"sender" split_words:"true"`
	Recipient string `yaml:"recipient" split_words:"true"`
}

type AuthConfig struct {
	Username string `yaml:"username" split_words:"true"`
	Password string `yaml:"password" split_words:"true"`
}

// Default returns the configuration used for everything that isn't
// specified otherwise.
func Default() *Config {
	opts := status.DefaultOptions()
	return &Config{
		Server:   ServerConfig{Hostname: "localhost", Port: 9001},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Driver: sqlstore.DriverSQLite, Path: ".db"},
		Blockfrost: BlockfrostConfig{
			Retries:   2,
			Backoff:   time.Second,
			Timeout:   20 * time.Second,
			CacheSize: 64,
		},
		Status: StatusConfig{
			Schedule:            "15,45 * * * * *",
			NearBorderThreshold: opts.NearBorderThreshold,
			RetryBudget:         opts.RetryBudget,
			RewardsLag:          opts.RewardsLag,
			ExplorerURL:         opts.ExplorerURL,
			Workers:             opts.Workers,
		},
		Loader: LoaderConfig{
			Schedule:    "0 */10 * * * *",
			Root:        "plans",
			MaxFailures: 3,
		},
		Notify: NotifyConfig{Timeout: 10 * time.Second, NatsPrefix: "stakepool", Log: true},
		Mail:   MailConfig{Port: 25},
	}
}

// Load reads the configuration. The defaults are overwritten by the YAML
// file at the given path (if the path isn't empty), then by the variables
// of an optional ".env" file and the environment.
//
// An error will be returned, if the file couldn't be read or a variable
// couldn't be parsed.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("couldn't read the config file '%s': %w", path, err)
		}
		err = yaml.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("couldn't parse the config file '%s': %w", path, err)
		}
	}
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("couldn't read the .env file: %w", err)
	}
	err = envconfig.Process(EnvPrefix, cfg)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse the environment: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for impossible values. The blockfrost
// project id is only required, if the chain is needed.
func (c *Config) Validate(needsChain bool) error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("the port must be between 1 and 65535, but was %d", c.Server.Port))
	}
	switch c.Database.Driver {
	case sqlstore.DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, fmt.Errorf("the sqlite database needs a path"))
		}
	case sqlstore.DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, fmt.Errorf("the postgres database needs a url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver '%s'", c.Database.Driver))
	}
	if needsChain && c.Blockfrost.ProjectID == "" {
		errs = append(errs, fmt.Errorf("no blockfrost project id specified (%s_BLOCKFROST_PROJECT_ID)", EnvPrefix))
	}
	if c.Status.RetryBudget < 0 {
		errs = append(errs, fmt.Errorf("the retry budget must not be negative"))
	}
	if c.Status.Workers <= 0 {
		errs = append(errs, fmt.Errorf("the number of workers must be positive"))
	}
	if c.Loader.MaxFailures <= 0 {
		errs = append(errs, fmt.Errorf("the maximal number of loader failures must be positive"))
	}
	if c.Mail.Enabled && c.Mail.Recipient == "" {
		errs = append(errs, fmt.Errorf("mails are enabled, but no recipient is specified"))
	}
	return errors.Join(errs...)
}

// StatusOptions returns the options of the status manager.
func (c *Config) StatusOptions() status.Options {
	return status.Options{
		NearBorderThreshold: c.Status.NearBorderThreshold,
		RetryBudget:         c.Status.RetryBudget,
		RewardsLag:          c.Status.RewardsLag,
		ExplorerURL:         c.Status.ExplorerURL,
		Workers:             c.Status.Workers,
	}
}

// SMTP returns the configuration of the SMTP mailer.
func (c *Config) SMTP() notify.MailConfig {
	return notify.MailConfig{
		Host:      c.Mail.Host,
		Port:      c.Mail.Port,
		User:      c.Mail.User,
		Password:  c.Mail.Password,
		Sender:    c.Mail.Sender,
		Recipient: c.Mail.Recipient,
	}
}
