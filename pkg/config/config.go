package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Symbol      string `yaml:"symbol" default:"BTCUSDT"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORS            bool          `yaml:"cors" default:"true"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Log struct {
		Level   string `yaml:"level" default:"info"`
		Pretty  bool   `yaml:"pretty"`
		Output  string `yaml:"output" default:"stdout"`
		Collect struct {
			Enabled   bool          `yaml:"enabled"`
			Topic     string        `yaml:"topic" default:"logs:errors"`
			Interval  time.Duration `yaml:"interval" default:"30s"`
			Threshold int           `yaml:"threshold" default:"100"`
		} `yaml:"collect"`
	} `yaml:"log"`
	MarketFeed struct {
		URL            string        `yaml:"url"`
		APIKey         string        `yaml:"api_key"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
	} `yaml:"market_feed"`
	Sentiment struct {
		BaseURL    string        `yaml:"base_url"`
		NewsPath   string        `yaml:"news_path" default:"/sentiment/news"`
		SocialPath string        `yaml:"social_path" default:"/sentiment/social"`
		Timeout    time.Duration `yaml:"timeout" default:"3s"`
		Attempts   int           `yaml:"attempts" default:"3"`
		Interval   time.Duration `yaml:"interval" default:"30s"`
	} `yaml:"sentiment"`
	Kafka struct {
		Brokers      []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Topics       struct {
			Positions string `yaml:"positions" default:"riskdesk.positions"`
			Actions   string `yaml:"actions" default:"riskdesk.actions"`
			Reports   string `yaml:"reports" default:"riskdesk.reports"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id" default:"riskdesk"`
			Workers    int           `yaml:"workers" default:"1"`
			BufferSize int           `yaml:"buffer_size" default:"64"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"riskdesk.positions.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"market"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
		CandlePrefix     string        `yaml:"candle_prefix" default:"candles"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled     bool          `yaml:"enabled"`
		Addr        string        `yaml:"addr" default:"localhost:6379"`
		Password    string        `yaml:"password"`
		DB          int           `yaml:"db"`
		PoolSize    int           `yaml:"pool_size" default:"10"`
		MinIdle     int           `yaml:"min_idle" default:"2"`
		PoolTimeout time.Duration `yaml:"pool_timeout" default:"30s"`
	} `yaml:"redis"`
	Queue struct {
		Enabled     bool          `yaml:"enabled"`
		Name        string        `yaml:"name" default:"backtests"`
		Workers     int           `yaml:"workers" default:"2"`
		MaxRetries  int           `yaml:"max_retries" default:"3"`
		RetryDelay  time.Duration `yaml:"retry_delay" default:"10s"`
		PollTimeout time.Duration `yaml:"poll_timeout" default:"2s"`
		TopicCap    int64         `yaml:"topic_cap" default:"1000"`
	} `yaml:"queue"`
	Pipeline struct {
		AggregateInterval time.Duration `yaml:"aggregate_interval" default:"5s"`
		TickTimeout       time.Duration `yaml:"tick_timeout" default:"4s"`
		HistoryWindow     int           `yaml:"history_window" default:"500"`
		VolatilityWindow  int           `yaml:"volatility_window" default:"20"`
	} `yaml:"pipeline"`
	Signals struct {
		MaxHistory int `yaml:"max_history" default:"1000"`
	} `yaml:"signals"`
	Scorer struct {
		Weights             Weights       `yaml:"weights"`
		Cutoffs             Cutoffs       `yaml:"cutoffs"`
		VolatilityReference float64       `yaml:"volatility_reference" default:"1"`
		SlippageReference   float64       `yaml:"slippage_reference" default:"0.01"`
		LatencyReference    time.Duration `yaml:"latency_reference" default:"1s"`
	} `yaml:"scorer"`
	Controller struct {
		Cooldown       time.Duration `yaml:"cooldown" default:"5m"`
		ReduceFraction float64       `yaml:"reduce_fraction" default:"0.5"`
		AlertCap       int           `yaml:"alert_cap" default:"500"`
	} `yaml:"controller"`
	Backtest struct {
		CacheTTL    time.Duration `yaml:"cache_ttl" default:"1h"`
		JobStateTTL time.Duration `yaml:"job_state_ttl" default:"24h"`
		Timeframe   string        `yaml:"timeframe" default:"1d"`
		RateLimit   int           `yaml:"rate_limit" default:"10"`
		RateBurst   int           `yaml:"rate_burst" default:"5"`
	} `yaml:"backtest"`
}

// Weights for the four risk components. All zero means "use defaults".
type Weights struct {
	Market    float64 `yaml:"market"`
	Position  float64 `yaml:"position"`
	Execution float64 `yaml:"execution"`
	Systemic  float64 `yaml:"systemic"`
}

// Cutoffs are the lower bounds of the medium, high and extreme levels.
type Cutoffs struct {
	Medium  float64 `yaml:"medium"`
	High    float64 `yaml:"high"`
	Extreme float64 `yaml:"extreme"`
}

func DefaultWeights() Weights { return Weights{Market: 0.3, Position: 0.3, Execution: 0.2, Systemic: 0.2} }

func DefaultCutoffs() Cutoffs { return Cutoffs{Medium: 0.4, High: 0.6, Extreme: 0.8} }

// Default returns a configuration populated only from default tags.
func Default() *Config {
	var c Config
	_ = c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() error {
	if err := defaults.Set(c); err != nil {
		return err
	}
	if c.Scorer.Weights == (Weights{}) {
		c.Scorer.Weights = DefaultWeights()
	}
	if c.Scorer.Cutoffs == (Cutoffs{}) {
		c.Scorer.Cutoffs = DefaultCutoffs()
	}
	return nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, fills defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.applyDefaults(); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides selected fields from the environment lookup.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("SYMBOL"); v != "" {
		c.Symbol = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("MARKET_FEED_URL"); v != "" {
		c.MarketFeed.URL = v
	}
	if v := getenv("MARKET_FEED_API_KEY"); v != "" {
		c.MarketFeed.APIKey = v
	}
	if v := getenv("SENTIMENT_URL"); v != "" {
		c.Sentiment.BaseURL = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	if c.Pipeline.AggregateInterval <= 0 {
		return fmt.Errorf("pipeline.aggregate_interval must be positive")
	}
	if c.Pipeline.TickTimeout <= 0 || c.Pipeline.TickTimeout > c.Pipeline.AggregateInterval {
		return fmt.Errorf("pipeline.tick_timeout must be in (0, aggregate_interval]")
	}
	if c.Signals.MaxHistory < 0 {
		return fmt.Errorf("signals.max_history cannot be negative")
	}
	if err := c.Scorer.Weights.Validate(); err != nil {
		return fmt.Errorf("scorer.weights: %w", err)
	}
	if err := c.Scorer.Cutoffs.Validate(); err != nil {
		return fmt.Errorf("scorer.cutoffs: %w", err)
	}
	if c.Scorer.VolatilityReference <= 0 || c.Scorer.SlippageReference <= 0 || c.Scorer.LatencyReference <= 0 {
		return fmt.Errorf("scorer references must be positive")
	}
	if c.Controller.ReduceFraction <= 0 || c.Controller.ReduceFraction > 1 {
		return fmt.Errorf("controller.reduce_fraction must be in (0, 1], got %v", c.Controller.ReduceFraction)
	}
	if c.Controller.Cooldown < 0 {
		return fmt.Errorf("controller.cooldown cannot be negative")
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("queue.enabled requires redis.enabled")
	}
	if c.Log.Collect.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("log.collect.enabled requires redis.enabled")
	}
	return nil
}

func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"market": w.Market, "position": w.Position, "execution": w.Execution, "systemic": w.Systemic,
	} {
		if v < 0 {
			return fmt.Errorf("%s weight cannot be negative", name)
		}
	}
	if w.Sum() <= 0 {
		return fmt.Errorf("weights must sum to a positive value")
	}
	return nil
}

func (w Weights) Sum() float64 { return w.Market + w.Position + w.Execution + w.Systemic }

func (c Cutoffs) Validate() error {
	if !(0 < c.Medium && c.Medium < c.High && c.High < c.Extreme && c.Extreme <= 1) {
		return fmt.Errorf("cutoffs must satisfy 0 < medium < high < extreme <= 1, got %v/%v/%v", c.Medium, c.High, c.Extreme)
	}
	return nil
}
