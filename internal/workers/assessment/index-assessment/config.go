// internal/workers/assessment/index-assessment/config.go
package indexassessment

import (
	"time"

	"sme-cyber-assessment/internal/common/config"
)

type Config struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
	Index         string
}

func NewConfig(wc config.WorkerConfig, index string) *Config {
	timeout := config.GetDuration(wc.Timeout)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if index == "" {
		index = config.DefaultBenchmarkIndex
	}
	return &Config{
		Enabled:       wc.Enabled,
		MaxJobsActive: wc.MaxJobsActive,
		Timeout:       timeout,
		Index:         index,
	}
}
