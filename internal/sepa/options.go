package sepa

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/SachaDelcourt-Co/chateau-apero-charge-sub002/internal/iban"
	"github.com/SachaDelcourt-Co/chateau-apero-charge-sub002/internal/sepatext"
)

// InstructionPriority is the scheme-level urgency of a payment block.
type InstructionPriority string

const (
	PriorityNormal InstructionPriority = "NORM"
	PriorityHigh   InstructionPriority = "HIGH"
)

// payerCountries is the closed allow-list of debtor countries. The
// platform currently pays out of a single Belgian account.
var payerCountries = map[string]bool{"BE": true}

var bicPattern = regexp.MustCompile(`^[A-Z]{6}[A-Z0-9]{2}([A-Z0-9]{3})?$`)

// PayerConfig describes the debtor side of the generated document.
type PayerConfig struct {
	Name               string   `json:"name"`
	IBAN               string   `json:"account_number"`
	BIC                string   `json:"bank_code,omitempty"`
	Country            string   `json:"country"`
	AddressLines       []string `json:"address_lines,omitempty"`
	OrganizationID     string   `json:"organization_id,omitempty"`
	OrganizationIssuer string   `json:"organization_issuer,omitempty"`
}

// validate checks the payer configuration before any per-transaction
// work: a bad payer rejects the whole batch.
func (p PayerConfig) validate() error {
	if sepatext.Sanitize(p.Name) == "" {
		return fmt.Errorf("payer name is required")
	}
	if !iban.Valid(p.IBAN) {
		return fmt.Errorf("payer account number is not a valid IBAN")
	}
	country := strings.ToUpper(strings.TrimSpace(p.Country))
	if !payerCountries[country] {
		return fmt.Errorf("payer country %q is not supported", p.Country)
	}
	if p.BIC != "" && !bicPattern.MatchString(strings.ToUpper(p.BIC)) {
		return fmt.Errorf("payer bank code %q is not a valid BIC", p.BIC)
	}
	if p.OrganizationID != "" && sepatext.Sanitize(p.OrganizationID) == "" {
		return fmt.Errorf("organization id contains no usable characters")
	}
	return nil
}

// DocumentOptions controls document-level fields. Unset values fall back
// to the defaults in DefaultDocumentOptions.
type DocumentOptions struct {
	MessageIDPrefix   string              `json:"message_id_prefix,omitempty"`
	PaymentInfoPrefix string              `json:"payment_info_prefix,omitempty"`
	Priority          InstructionPriority `json:"instruction_priority,omitempty"`
	ServiceLevel      string              `json:"service_level,omitempty"`
	CategoryPurpose   string              `json:"category_purpose,omitempty"`
	ChargeBearer      string              `json:"charge_bearer,omitempty"`
	// BatchBooking is a pointer so "omitted" (default true) and an
	// explicit false stay distinguishable.
	BatchBooking *bool `json:"batch_booking,omitempty"`
	// ExecutionDate overrides the requested execution date, "2006-01-02".
	// Empty means the next calendar day.
	ExecutionDate string `json:"requested_execution_date,omitempty"`
}

// DefaultDocumentOptions returns the options used when the caller sends
// none: a standard SEPA supplier credit transfer, batch-booked, executed
// the next calendar day.
func DefaultDocumentOptions() DocumentOptions {
	batchBooked := true
	return DocumentOptions{
		MessageIDPrefix:   "APERO",
		PaymentInfoPrefix: "APERO-PMT",
		Priority:          PriorityNormal,
		ServiceLevel:      "SEPA",
		CategoryPurpose:   "SUPP",
		ChargeBearer:      "SLEV",
		BatchBooking:      &batchBooked,
	}
}

// withDefaults fills unset fields from DefaultDocumentOptions and
// resolves the execution date against now.
func (o DocumentOptions) withDefaults(now time.Time) (DocumentOptions, time.Time, error) {
	def := DefaultDocumentOptions()
	if o.MessageIDPrefix == "" {
		o.MessageIDPrefix = def.MessageIDPrefix
	}
	if o.PaymentInfoPrefix == "" {
		o.PaymentInfoPrefix = def.PaymentInfoPrefix
	}
	if o.Priority == "" {
		o.Priority = def.Priority
	}
	if o.Priority != PriorityNormal && o.Priority != PriorityHigh {
		return o, time.Time{}, fmt.Errorf("instruction priority %q is not supported", o.Priority)
	}
	if o.ServiceLevel == "" {
		o.ServiceLevel = def.ServiceLevel
	}
	if o.CategoryPurpose == "" {
		o.CategoryPurpose = def.CategoryPurpose
	}
	if o.ChargeBearer == "" {
		o.ChargeBearer = def.ChargeBearer
	}
	if o.BatchBooking == nil {
		o.BatchBooking = def.BatchBooking
	}

	execution := now.AddDate(0, 0, 1)
	if o.ExecutionDate != "" {
		d, err := time.Parse("2006-01-02", o.ExecutionDate)
		if err != nil {
			return o, time.Time{}, fmt.Errorf("requested execution date %q: want YYYY-MM-DD", o.ExecutionDate)
		}
		execution = d
	}
	return o, execution, nil
}
