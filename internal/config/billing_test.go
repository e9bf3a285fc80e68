package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultBillingConfigIsValid(t *testing.T) {
	assert.NoError(t, ValidateBillingConfig(DefaultBillingConfig()))
}

func TestValidateBillingConfigRejectsBadValues(t *testing.T) {
	cases := map[string]func(*BillingConfig){
		"negative vat":       func(c *BillingConfig) { c.StandardVATRate = -1 },
		"commission vat > 1": func(c *BillingConfig) { c.DefaultCommissionVATRate = 1.5 },
		"zero due days":      func(c *BillingConfig) { c.InvoiceDueDays = 0 },
		"empty counter key":  func(c *BillingConfig) { c.InvoiceCounterKey = " " },
		"zero retries":       func(c *BillingConfig) { c.CounterRetryAttempts = 0 },
		"zero reason length": func(c *BillingConfig) { c.StornoMinReasonLength = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultBillingConfig()
			mutate(&cfg)
			assert.Error(t, ValidateBillingConfig(cfg))
		})
	}
}

func TestBillingConfigHolderFallsBackToDefaults(t *testing.T) {
	var holder *BillingConfigHolder
	assert.Equal(t, DefaultBillingConfig(), holder.Get())

	custom := DefaultBillingConfig()
	custom.InvoiceDueDays = 30
	assert.Equal(t, 30, NewStaticBillingConfig(custom).Get().InvoiceDueDays)
}

func TestNewBillingConfigHolderDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	holder, err := NewBillingConfigHolder(zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DefaultBillingConfig(), holder.Get())

	var unset *BillingConfigHolder
	assert.Equal(t, "global", unset.Get().InvoiceCounterKey)
}

func TestNewBillingConfigHolderReloadsFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "billing.yml")
	require.NoError(t, os.WriteFile(path, []byte("billing:\n  invoiceDueDays: 21\n  invoiceNumberPrefix: LK\n"), 0o644))

	holder, err := NewBillingConfigHolder(zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 21, holder.Get().InvoiceDueDays)
	assert.Equal(t, "LK", holder.Get().InvoiceNumberPrefix)
	assert.Equal(t, "global", holder.Get().InvoiceCounterKey)

	require.NoError(t, os.WriteFile(path, []byte("billing:\n  invoiceDueDays: 30\n  invoiceNumberPrefix: LK\n"), 0o644))
	assert.Eventually(t, func() bool {
		return holder.Get().InvoiceDueDays == 30
	}, 5*time.Second, 20*time.Millisecond)
}
