package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lcalzada-xor/aegis/internal/adapters/llm"
	"github.com/lcalzada-xor/aegis/internal/core/services/session"
	"github.com/lcalzada-xor/aegis/internal/core/services/simulator"
)

// Config holds all application configuration.
type Config struct {
	Addr     string `yaml:"addr"`
	GRPCAddr string `yaml:"grpc_addr"`
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
	Tracing  bool   `yaml:"tracing"`
	// AnalyzeRateLimit is the number of analysis submissions accepted per
	// client per minute. Zero disables limiting.
	AnalyzeRateLimit int `yaml:"analyze_rate_limit"`

	Simulator SimulatorConfig `yaml:"simulator"`
	AI        AIConfig        `yaml:"ai"`
	NATS      NATSConfig      `yaml:"nats"`
}

type SimulatorConfig struct {
	TickInterval        time.Duration `yaml:"tick_interval"`
	Seed                int64         `yaml:"seed"`
	Sources             []string      `yaml:"sources"`
	Sink                string        `yaml:"sink"`
	RandomSources       int           `yaml:"random_sources"`
	EventCapacity       int           `yaml:"event_capacity"`
	PointCapacity       int           `yaml:"point_capacity"`
	ElevatedProbability float64       `yaml:"elevated_probability"`
	CriticalShare       float64       `yaml:"critical_share"`
	MediumShare         float64       `yaml:"medium_share"`
}

type AIConfig struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// NATSConfig enables broker fan-out when URL is set.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Default returns the built-in configuration. Simulator and analyzer values
// come from the packages that own them.
func Default() Config {
	sim := simulator.DefaultConfig()
	return Config{
		Addr:             ":8080",
		GRPCAddr:         ":9000",
		LogLevel:         "info",
		AnalyzeRateLimit: 10,
		Simulator: SimulatorConfig{
			TickInterval:        sim.TickInterval,
			Sources:             sim.Sources,
			Sink:                sim.Sink,
			EventCapacity:       session.DefaultEventCapacity,
			PointCapacity:       session.DefaultPointCapacity,
			ElevatedProbability: sim.ElevatedProbability,
			CriticalShare:       sim.CriticalShare,
			MediumShare:         sim.MediumShare,
		},
		AI: AIConfig{
			Model:   llm.DefaultModel,
			BaseURL: llm.DefaultBaseURL,
		},
		NATS: NATSConfig{
			Subject: "aegis.events",
		},
	}
}

// Load builds the configuration from, in increasing precedence: defaults, the
// YAML file named by -config or AEGIS_CONFIG, the .env file, environment
// variables and command-line flags. args excludes the program name.
func Load(args []string) (*Config, error) {
	flags := flag.NewFlagSet("aegis", flag.ContinueOnError)
	f := registerFlags(flags)
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()

	path := *f.configPath
	if path == "" {
		path = os.Getenv("AEGIS_CONFIG")
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := loadDotEnv(*f.envFile, isSet(flags, "env-file")); err != nil {
		return nil, err
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	f.apply(flags, &cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s not found: %w", path, err)
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// loadDotEnv exports the variables of an env file into the process
// environment. Variables already set win. A missing default file is ignored.
func loadDotEnv(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}

func applyEnv(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("AEGIS_ADDR", &cfg.Addr)
	str("AEGIS_GRPC_ADDR", &cfg.GRPCAddr)
	str("AEGIS_LOG_LEVEL", &cfg.LogLevel)
	boolean("AEGIS_LOG_JSON", &cfg.LogJSON)
	boolean("AEGIS_TRACING", &cfg.Tracing)
	integer("AEGIS_ANALYZE_RATE_LIMIT", &cfg.AnalyzeRateLimit)

	duration("AEGIS_TICK_INTERVAL", &cfg.Simulator.TickInterval)
	if v := os.Getenv("AEGIS_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("AEGIS_SEED: %w", err))
		} else {
			cfg.Simulator.Seed = seed
		}
	}
	if v := os.Getenv("AEGIS_SOURCES"); v != "" {
		cfg.Simulator.Sources = splitList(v)
	}
	str("AEGIS_SINK", &cfg.Simulator.Sink)
	integer("AEGIS_RANDOM_SOURCES", &cfg.Simulator.RandomSources)
	integer("AEGIS_EVENT_CAPACITY", &cfg.Simulator.EventCapacity)
	integer("AEGIS_POINT_CAPACITY", &cfg.Simulator.PointCapacity)
	float("AEGIS_ELEVATED_PROBABILITY", &cfg.Simulator.ElevatedProbability)
	float("AEGIS_CRITICAL_SHARE", &cfg.Simulator.CriticalShare)
	float("AEGIS_MEDIUM_SHARE", &cfg.Simulator.MediumShare)

	str("API_KEY", &cfg.AI.APIKey)
	str("AEGIS_AI_API_KEY", &cfg.AI.APIKey)
	str("AEGIS_AI_MODEL", &cfg.AI.Model)
	str("AEGIS_AI_BASE_URL", &cfg.AI.BaseURL)
	duration("AEGIS_AI_TIMEOUT", &cfg.AI.Timeout)

	str("AEGIS_NATS_URL", &cfg.NATS.URL)
	str("AEGIS_NATS_SUBJECT", &cfg.NATS.Subject)

	return errors.Join(errs...)
}

type flagValues struct {
	configPath *string
	envFile    *string

	addr, grpcAddr, logLevel *string
	logJSON, tracing         *bool
	rateLimit                *int

	tick          *time.Duration
	seed          *int64
	sources, sink *string
	randomSources *int

	model, baseURL *string
	aiTimeout      *time.Duration

	natsURL, natsSubject *string
}

func registerFlags(fs *flag.FlagSet) *flagValues {
	d := Default()
	return &flagValues{
		configPath: fs.String("config", "", "Path to a YAML configuration file"),
		envFile:    fs.String("env-file", ".env", "Path to a dotenv file"),

		addr:      fs.String("addr", d.Addr, "HTTP server address"),
		grpcAddr:  fs.String("grpc-addr", d.GRPCAddr, "gRPC server address (empty to disable)"),
		logLevel:  fs.String("log-level", d.LogLevel, "Log level: debug, info, warn, error"),
		logJSON:   fs.Bool("log-json", d.LogJSON, "Emit JSON logs"),
		tracing:   fs.Bool("tracing", d.Tracing, "Export OpenTelemetry traces to stdout"),
		rateLimit: fs.Int("analyze-rate-limit", d.AnalyzeRateLimit, "Analysis submissions per client per minute (0 disables)"),

		tick:          fs.Duration("tick", d.Simulator.TickInterval, "Simulator tick interval"),
		seed:          fs.Int64("seed", d.Simulator.Seed, "Simulator random seed (0 for time based)"),
		sources:       fs.String("sources", strings.Join(d.Simulator.Sources, ","), "Simulated source addresses (comma separated)"),
		sink:          fs.String("sink", d.Simulator.Sink, "Simulated destination address"),
		randomSources: fs.Int("random-sources", d.Simulator.RandomSources, "Extra random source addresses to add to the pool"),

		model:     fs.String("model", d.AI.Model, "Language model identifier"),
		baseURL:   fs.String("ai-base-url", d.AI.BaseURL, "OpenAI-compatible API base URL"),
		aiTimeout: fs.Duration("ai-timeout", d.AI.Timeout, "Analysis request timeout (0 for none)"),

		natsURL:     fs.String("nats-url", d.NATS.URL, "NATS server URL (empty to disable fan-out)"),
		natsSubject: fs.String("nats-subject", d.NATS.Subject, "NATS subject for simulated events"),
	}
}

// apply copies explicitly set flags over cfg.
func (f *flagValues) apply(fs *flag.FlagSet, cfg *Config) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "addr":
			cfg.Addr = *f.addr
		case "grpc-addr":
			cfg.GRPCAddr = *f.grpcAddr
		case "log-level":
			cfg.LogLevel = *f.logLevel
		case "log-json":
			cfg.LogJSON = *f.logJSON
		case "tracing":
			cfg.Tracing = *f.tracing
		case "analyze-rate-limit":
			cfg.AnalyzeRateLimit = *f.rateLimit
		case "tick":
			cfg.Simulator.TickInterval = *f.tick
		case "seed":
			cfg.Simulator.Seed = *f.seed
		case "sources":
			cfg.Simulator.Sources = splitList(*f.sources)
		case "sink":
			cfg.Simulator.Sink = *f.sink
		case "random-sources":
			cfg.Simulator.RandomSources = *f.randomSources
		case "model":
			cfg.AI.Model = *f.model
		case "ai-base-url":
			cfg.AI.BaseURL = *f.baseURL
		case "ai-timeout":
			cfg.AI.Timeout = *f.aiTimeout
		case "nats-url":
			cfg.NATS.URL = *f.natsURL
		case "nats-subject":
			cfg.NATS.Subject = *f.natsSubject
		}
	})
}

func isSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			set = true
		}
	})
	return set
}

// Validate rejects impossible values.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	if c.AnalyzeRateLimit < 0 {
		errs = append(errs, errors.New("analyze_rate_limit must not be negative"))
	}

	s := c.Simulator
	if s.TickInterval <= 0 {
		errs = append(errs, errors.New("simulator.tick_interval must be positive"))
	}
	if len(s.Sources) == 0 && s.RandomSources <= 0 {
		errs = append(errs, errors.New("simulator.sources must not be empty"))
	}
	if s.Sink == "" {
		errs = append(errs, errors.New("simulator.sink must not be empty"))
	}
	if s.RandomSources < 0 {
		errs = append(errs, errors.New("simulator.random_sources must not be negative"))
	}
	if s.EventCapacity < 1 || s.PointCapacity < 1 {
		errs = append(errs, errors.New("simulator capacities must be at least 1"))
	}
	for name, p := range map[string]float64{
		"elevated_probability": s.ElevatedProbability,
		"critical_share":       s.CriticalShare,
		"medium_share":         s.MediumShare,
	} {
		if p < 0 || p > 1 {
			errs = append(errs, fmt.Errorf("simulator.%s must be within [0,1], got %v", name, p))
		}
	}

	if c.AI.Model == "" {
		errs = append(errs, errors.New("ai.model must not be empty"))
	}
	if c.AI.Timeout < 0 {
		errs = append(errs, errors.New("ai.timeout must not be negative"))
	}
	if c.NATS.URL != "" && c.NATS.Subject == "" {
		errs = append(errs, errors.New("nats.subject is required when nats.url is set"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
