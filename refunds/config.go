package refunds

import "github.com/shopspring/decimal"

// Config is the configuration for the refund export application. Fee and
// thresholds are injected here rather than hidden as literals so they
// stay testable and auditable.
type Config struct {
	HTTPAddr string
	// APIKey authenticates export requests. Empty disables the check;
	// runtime deployments must set it.
	APIKey string
	// RefundFee is the flat processing fee deducted from each card
	// balance before refunding.
	RefundFee decimal.Decimal
	// MinimumRefund is the smallest net amount worth paying out.
	MinimumRefund decimal.Decimal
	// MaximumRefund is the per-transaction ceiling accepted by the bank.
	MaximumRefund decimal.Decimal
	// FilenamePrefix names the exported file: <prefix>_Refunds_<msgid>_<ts>.xml
	FilenamePrefix string
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:       "localhost:9090",
		RefundFee:      decimal.RequireFromString("2.00"),
		MinimumRefund:  decimal.RequireFromString("2.00"),
		MaximumRefund:  decimal.RequireFromString("500.00"),
		FilenamePrefix: "APERO",
	}
}
