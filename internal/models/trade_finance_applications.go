package models

import "time"

// TradeFinanceApplication is an application for a trade-finance instrument
// submitted through the website. Contact details are encrypted at rest.
type TradeFinanceApplication struct {
	Status         string     `db:"status"`
	ID             string     `db:"id"`
	CompanyName    string     `db:"company_name"`
	Country        string     `db:"country"`
	Instrument     string     `db:"instrument"`
	Amount         string     `db:"amount"`
	Currency       string     `db:"currency"`
	EmailHash      string     `db:"email_hash"`
	EmailEncrypted []byte     `db:"email_encrypted"`
	EmailKeyID     string     `db:"email_key_id"`
	Notes          string     `db:"notes"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      *time.Time `db:"updated_at"`
}

// Application statuses and the transitions allowed between them.
const (
	ApplicationStatusReceived = "received"
	ApplicationStatusInReview = "in_review"
	ApplicationStatusApproved = "approved"
	ApplicationStatusDeclined = "declined"
)

// Trade-finance instrument types accepted by the application form.
const (
	InstrumentLetterOfCredit  = "letter_of_credit"
	InstrumentBankGuarantee   = "bank_guarantee"
	InstrumentStandbyLC       = "standby_lc"
	InstrumentInvoiceDiscount = "invoice_discounting"
	InstrumentSupplyChainLoan = "supply_chain_finance"
)
