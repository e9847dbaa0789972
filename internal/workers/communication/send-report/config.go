// internal/workers/communication/send-report/config.go
package sendreport

import (
	"fmt"
	"time"

	"sme-cyber-assessment/internal/common/config"
)

type Config struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
	Subject       string
	AlertsEnabled bool
}

func NewConfig(wc config.WorkerConfig, alertsEnabled bool) *Config {
	timeout := config.GetDuration(wc.Timeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Config{
		Enabled:       wc.Enabled,
		MaxJobsActive: wc.MaxJobsActive,
		Timeout:       timeout,
		Subject:       "Your cybersecurity self-assessment: {{companyName}}",
		AlertsEnabled: alertsEnabled,
	}
}

// SMTPConfig configures the fallback transport used when SES is off.
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	UseTLS      bool
	DefaultFrom string
}

func (c SMTPConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("smtp host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("smtp port must be between 1 and 65535")
	}
	if c.DefaultFrom == "" {
		return fmt.Errorf("smtp default_from is required")
	}
	return nil
}
