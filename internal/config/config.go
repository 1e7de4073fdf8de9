package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level pipeline configuration.
type Config struct {
	Pipeline string            `yaml:"pipeline"`
	Env      map[string]string `yaml:"env,omitempty"`
	Stages   []StageConfig     `yaml:"stages,omitempty"`
	Matrix   MatrixConfig      `yaml:"matrix"`

	// Pipeline-level phase defaults; entries may override per phase.
	Install      CommandList `yaml:"install,omitempty"`
	BeforeScript CommandList `yaml:"before_script,omitempty"`
	Script       CommandList `yaml:"script,omitempty"`
	AfterSuccess CommandList `yaml:"after_success,omitempty"`

	Repository    *RepositoryConfig   `yaml:"repository,omitempty"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Daemon        DaemonConfig        `yaml:"daemon"`
}

// StageConfig declares one pipeline stage; If holds the optional
// run-condition expression ("trigger = cron").
type StageConfig struct {
	Name string `yaml:"name"`
	If   string `yaml:"if,omitempty"`
}

// MatrixConfig holds the matrix entries and fast-finish toggle.
type MatrixConfig struct {
	FastFinish bool          `yaml:"fast_finish,omitempty"`
	Include    []EntryConfig `yaml:"include"`
}

// EntryConfig is one matrix entry: interpreter/runtime tag, env overrides,
// target stage and optional per-phase command overrides.
type EntryConfig struct {
	Name         string            `yaml:"name,omitempty"`
	Stage        string            `yaml:"stage,omitempty"`
	Runtime      string            `yaml:"runtime,omitempty"`
	Env          map[string]string `yaml:"env,omitempty"`
	AllowFailure bool              `yaml:"allow_failure,omitempty"`
	Install      CommandList       `yaml:"install,omitempty"`
	BeforeScript CommandList       `yaml:"before_script,omitempty"`
	Script       CommandList       `yaml:"script,omitempty"`
	AfterSuccess CommandList       `yaml:"after_success,omitempty"`
}

// RepositoryConfig makes runs execute inside a fresh clone.
type RepositoryConfig struct {
	URL    string `yaml:"url"`
	Branch string `yaml:"branch,omitempty"`
	Depth  int    `yaml:"depth,omitempty"`
	Token  string `yaml:"token,omitempty"`
}

// NotificationsConfig holds completion side channels.
type NotificationsConfig struct {
	Webhooks WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig configures outbound HTTP notifications. Policies accept
// always|never|change.
type WebhookConfig struct {
	URLs      []string `yaml:"urls,omitempty"`
	OnSuccess string   `yaml:"on_success,omitempty"` // default: change
	OnFailure string   `yaml:"on_failure,omitempty"` // default: always
}

// DaemonConfig configures daemon mode only; one-shot runs ignore it.
type DaemonConfig struct {
	DataDir   string           `yaml:"data_dir,omitempty"`
	QueueSize int              `yaml:"queue_size,omitempty"`
	Workers   int              `yaml:"workers,omitempty"`
	Schedules []ScheduleConfig `yaml:"schedules,omitempty"`
	HTTP      HTTPConfig       `yaml:"http"`
	NATS      NATSConfig       `yaml:"nats"`
}

// ScheduleConfig maps a cron expression to a trigger kind.
type ScheduleConfig struct {
	Name    string `yaml:"name"`
	Cron    string `yaml:"cron"`
	Trigger string `yaml:"trigger,omitempty"` // default: cron
}

// HTTPConfig configures the daemon admin server.
type HTTPConfig struct {
	AdminPort int `yaml:"admin_port,omitempty"`
}

// NATSConfig configures optional run-event publishing.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// Load reads, expands and validates a pipeline configuration file.
// Environment files (.env, .env.local) are loaded first without overriding
// existing process variables, then ${VAR} references in the raw YAML are
// expanded before unmarshalling.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadEnvFiles loads .env then .env.local when present. godotenv never
// overrides variables already set in the process environment.
func loadEnvFiles() {
	for _, path := range []string{".env", ".env.local"} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			fmt.Fprintf(os.Stderr, "Note: %s couldn't be loaded: %v\n", path, err)
		}
	}
}

// applyDefaults fills in the implied parts of a sparse configuration.
func (c *Config) applyDefaults() {
	if c.Pipeline == "" {
		c.Pipeline = "default"
	}
	if len(c.Stages) == 0 {
		c.Stages = []StageConfig{{Name: "Tests"}}
	}
	for i := range c.Matrix.Include {
		e := &c.Matrix.Include[i]
		if e.Stage == "" {
			e.Stage = c.Stages[0].Name
		}
		if e.Name == "" {
			e.Name = fmt.Sprintf("entry-%d", i+1)
		}
	}
	if c.Notifications.Webhooks.OnSuccess == "" {
		c.Notifications.Webhooks.OnSuccess = "change"
	}
	if c.Notifications.Webhooks.OnFailure == "" {
		c.Notifications.Webhooks.OnFailure = "always"
	}
	if c.Repository != nil && c.Repository.Branch == "" {
		c.Repository.Branch = "main"
	}
	if c.Daemon.DataDir == "" {
		c.Daemon.DataDir = "./matrixci-data"
	}
	if c.Daemon.QueueSize <= 0 {
		c.Daemon.QueueSize = 50
	}
	if c.Daemon.Workers <= 0 {
		c.Daemon.Workers = 1
	}
	if c.Daemon.HTTP.AdminPort == 0 {
		c.Daemon.HTTP.AdminPort = 8478
	}
	if c.Daemon.NATS.Subject == "" {
		c.Daemon.NATS.Subject = "matrixci.runs"
	}
	for i := range c.Daemon.Schedules {
		if c.Daemon.Schedules[i].Trigger == "" {
			c.Daemon.Schedules[i].Trigger = "cron"
		}
	}
}

const exampleConfig = `# matrixci pipeline configuration
pipeline: sunray

env:
  PIP_DISABLE_PIP_VERSION_CHECK: "1"

stages:
  - name: Initial tests
  - name: Comprehensive tests
  - name: Cron tests
    if: trigger = cron

matrix:
  fast_finish: true
  include:
    - name: py311-core
      stage: Initial tests
      runtime: python3.11
      env:
        TOXENV: py311
    - name: py312-full
      stage: Comprehensive tests
      runtime: python3.12
      env:
        TOXENV: py312
    - name: py312-online
      stage: Cron tests
      runtime: python3.12
      env:
        TOXENV: py312-online
      allow_failure: true

install:
  - pip install tox
script:
  - tox
after_success:
  - codecov

notifications:
  webhooks:
    urls:
      - https://ci.example.com/hook?token=${WEBHOOK_TOKEN}
    on_success: change
    on_failure: always

daemon:
  data_dir: ./matrixci-data
  workers: 2
  schedules:
    - name: nightly
      cron: "0 3 * * *"
      trigger: cron
  http:
    admin_port: 8478
`

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
