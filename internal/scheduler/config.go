package scheduler

import (
	"time"

	"github.com/smallbiznis/lokma/internal/config"
)

// Config controls scheduler intervals and job selection.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
	LockTTL     time.Duration

	// EnabledJobs limits which jobs run; empty enables all.
	EnabledJobs []string

	// MonthlyInvoiceDays is how many days into a month the previous
	// period is still swept for uninvoiced commission.
	MonthlyInvoiceDays     int
	IncludeSubscriptionFee bool
}

func DefaultConfig() Config {
	return Config{
		RunInterval:            time.Minute,
		JobTimeout:             30 * time.Second,
		LockTTL:                2 * time.Minute,
		MonthlyInvoiceDays:     5,
		IncludeSubscriptionFee: true,
	}
}

func ProvideConfig(cfg config.Config) Config {
	c := DefaultConfig()
	c.EnabledJobs = cfg.SchedulerJobs
	return c
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.MonthlyInvoiceDays <= 0 {
		c.MonthlyInvoiceDays = defaults.MonthlyInvoiceDays
	}
	return c
}
