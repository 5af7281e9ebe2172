package config

import (
	"strings"
	"testing"
	"time"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Pipeline.AggregateInterval != 5*time.Second {
		t.Fatalf("expected 5s interval, got %v", c.Pipeline.AggregateInterval)
	}
	if c.Scorer.Weights != DefaultWeights() {
		t.Fatalf("expected default weights, got %+v", c.Scorer.Weights)
	}
	if c.Controller.Cooldown != 5*time.Minute {
		t.Fatalf("expected 5m cooldown, got %v", c.Controller.Cooldown)
	}
	if len(c.Kafka.Brokers) != 1 || c.Kafka.Brokers[0] != "localhost:9092" {
		t.Fatalf("unexpected brokers %v", c.Kafka.Brokers)
	}
}

func TestParseRejectsBadCutoffs(t *testing.T) {
	_, err := Parse([]byte("environment: test\nscorer:\n  cutoffs:\n    medium: 0.6\n    high: 0.4\n    extreme: 0.8\n"))
	if err == nil || !strings.Contains(err.Error(), "cutoffs") {
		t.Fatalf("expected cutoff error, got %v", err)
	}
}

func TestParseRejectsNegativeWeight(t *testing.T) {
	_, err := Parse([]byte("environment: test\nscorer:\n  weights:\n    market: -1\n    position: 1\n"))
	if err == nil {
		t.Fatalf("expected weight error")
	}
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	env := map[string]string{"KAFKA_BROKERS": "a:1,b:2", "SYMBOL": "ETHUSDT"}
	c.ApplyEnv(func(k string) string { return env[k] })
	if len(c.Kafka.Brokers) != 2 || c.Symbol != "ETHUSDT" {
		t.Fatalf("env not applied: %v %s", c.Kafka.Brokers, c.Symbol)
	}
}

func TestParseQueueNeedsRedis(t *testing.T) {
	_, err := Parse([]byte("environment: test\nqueue:\n  enabled: true\n"))
	if err == nil || !strings.Contains(err.Error(), "redis") {
		t.Fatalf("expected redis error, got %v", err)
	}
	c, err := Parse([]byte("environment: test\nredis:\n  enabled: true\nqueue:\n  enabled: true\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Queue.TopicCap != 1000 || c.Backtest.JobStateTTL != 24*time.Hour {
		t.Fatalf("unexpected queue defaults %+v", c.Queue)
	}
}

func TestLoadSampleConfig(t *testing.T) {
	c, err := Load("../../config/config.yaml")
	if err != nil {
		t.Fatalf("load sample: %v", err)
	}
	if !c.Redis.Enabled || c.Redis.PoolSize != 10 || c.Redis.PoolTimeout != 30*time.Second {
		t.Fatalf("unexpected redis section: %+v", c.Redis)
	}
}
