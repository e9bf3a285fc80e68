package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BillingConfig is the bookkeeping policy shared by the commission, invoice
// and table session services.
type BillingConfig struct {
	// VAT rates in percent (19 means 19%).
	StandardVATRate float64 `mapstructure:"standardVatRate"`
	ReducedVATRate  float64 `mapstructure:"reducedVatRate"`

	// Fraction applied to net commission when a plan carries no VAT rate.
	DefaultCommissionVATRate float64 `mapstructure:"defaultCommissionVatRate"`
	CommissionInvoiceVATKey  string  `mapstructure:"commissionInvoiceVatKey"`

	InvoiceDueDays        int    `mapstructure:"invoiceDueDays"`
	InvoiceNumberPrefix   string `mapstructure:"invoiceNumberPrefix"`
	InvoiceCounterKey     string `mapstructure:"invoiceCounterKey"`
	CounterRetryAttempts  int    `mapstructure:"counterRetryAttempts"`
	StornoMinReasonLength int    `mapstructure:"stornoMinReasonLength"`

	DefaultCancelReason string `mapstructure:"defaultCancelReason"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		StandardVATRate:          19,
		ReducedVATRate:           7,
		DefaultCommissionVATRate: 0.19,
		CommissionInvoiceVATKey:  "standard",
		InvoiceDueDays:           14,
		InvoiceNumberPrefix:      "RE",
		InvoiceCounterKey:        "global",
		CounterRetryAttempts:     3,
		StornoMinReasonLength:    10,
		DefaultCancelReason:      "Cancelled by staff",
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewStaticBillingConfig returns a holder that never reloads.
func NewStaticBillingConfig(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

// NewBillingConfigHolder loads billing.yml from /etc/lokma or the working
// directory, with LOKMA_BILLING_* env overrides, and watches the file.
func NewBillingConfigHolder(log *zap.Logger) (*BillingConfigHolder, error) {
	log = log.Named("config.billing")
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/lokma")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LOKMA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.standardVatRate", defaults.StandardVATRate)
	v.SetDefault("billing.reducedVatRate", defaults.ReducedVATRate)
	v.SetDefault("billing.defaultCommissionVatRate", defaults.DefaultCommissionVATRate)
	v.SetDefault("billing.commissionInvoiceVatKey", defaults.CommissionInvoiceVATKey)
	v.SetDefault("billing.invoiceDueDays", defaults.InvoiceDueDays)
	v.SetDefault("billing.invoiceNumberPrefix", defaults.InvoiceNumberPrefix)
	v.SetDefault("billing.invoiceCounterKey", defaults.InvoiceCounterKey)
	v.SetDefault("billing.counterRetryAttempts", defaults.CounterRetryAttempts)
	v.SetDefault("billing.stornoMinReasonLength", defaults.StornoMinReasonLength)
	v.SetDefault("billing.defaultCancelReason", defaults.DefaultCancelReason)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := ValidateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticBillingConfig(cfg)
	if !fileLoaded {
		return holder, nil
	}

	// Rates are snapshotted into every invoice, so a reload only affects
	// documents issued afterwards.
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Warn("billing config reload failed", zap.Error(err))
			return
		}
		if err := ValidateBillingConfig(updated); err != nil {
			log.Warn("invalid billing config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("billing config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	if h == nil {
		return DefaultBillingConfig()
	}
	cfg, ok := h.current.Load().(BillingConfig)
	if !ok {
		return DefaultBillingConfig()
	}
	return cfg
}

func ValidateBillingConfig(cfg BillingConfig) error {
	if cfg.StandardVATRate < 0 || cfg.ReducedVATRate < 0 {
		return errors.New("billing vat rates cannot be negative")
	}
	if cfg.DefaultCommissionVATRate < 0 || cfg.DefaultCommissionVATRate >= 1 {
		return errors.New("billing.defaultCommissionVatRate must be a fraction in [0,1)")
	}
	if cfg.InvoiceDueDays <= 0 {
		return errors.New("billing.invoiceDueDays must be positive")
	}
	if strings.TrimSpace(cfg.InvoiceCounterKey) == "" {
		return errors.New("billing.invoiceCounterKey cannot be empty")
	}
	if cfg.CounterRetryAttempts <= 0 {
		return errors.New("billing.counterRetryAttempts must be positive")
	}
	if cfg.StornoMinReasonLength <= 0 {
		return errors.New("billing.stornoMinReasonLength must be positive")
	}
	return nil
}
