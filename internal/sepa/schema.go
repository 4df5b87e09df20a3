package sepa

import "encoding/xml"

// XML element tree for pain.001.001.03. Field names follow the ISO 20022
// message item names; tags carry the exact element names the scheme
// requires.

type Document struct {
	XMLName    xml.Name   `xml:"urn:iso:std:iso:20022:tech:xsd:pain.001.001.03 Document"`
	Initiation Initiation `xml:"CstmrCdtTrfInitn"`
}

type Initiation struct {
	GroupHeader GroupHeader `xml:"GrpHdr"`
	PaymentInfo PaymentInfo `xml:"PmtInf"`
}

type GroupHeader struct {
	MessageID        string `xml:"MsgId"`
	CreationDateTime string `xml:"CreDtTm"`
	TransactionCount int    `xml:"NbOfTxs"`
	ControlSum       string `xml:"CtrlSum"`
	InitiatingParty  Party  `xml:"InitgPty"`
}

type PaymentInfo struct {
	ID               string            `xml:"PmtInfId"`
	Method           string            `xml:"PmtMtd"`
	BatchBooking     bool              `xml:"BtchBookg"`
	TransactionCount int               `xml:"NbOfTxs"`
	ControlSum       string            `xml:"CtrlSum"`
	TypeInfo         PaymentTypeInfo   `xml:"PmtTpInf"`
	ExecutionDate    string            `xml:"ReqdExctnDt"`
	Debtor           Party             `xml:"Dbtr"`
	DebtorAcct       Account           `xml:"DbtrAcct"`
	DebtorAgent      *Agent            `xml:"DbtrAgt,omitempty"`
	ChargeBearer     string            `xml:"ChrgBr"`
	Transactions     []TransactionInfo `xml:"CdtTrfTxInf"`
}

type PaymentTypeInfo struct {
	Priority        string `xml:"InstrPrty"`
	ServiceLevel    Code   `xml:"SvcLvl"`
	CategoryPurpose Code   `xml:"CtgyPurp"`
}

type Code struct {
	Value string `xml:"Cd"`
}

type Party struct {
	Name          string         `xml:"Nm"`
	PostalAddress *PostalAddress `xml:"PstlAdr,omitempty"`
	ID            *PartyID       `xml:"Id,omitempty"`
}

type PostalAddress struct {
	Country      string   `xml:"Ctry,omitempty"`
	AddressLines []string `xml:"AdrLine,omitempty"`
}

type PartyID struct {
	OrgID OrgID `xml:"OrgId"`
}

type OrgID struct {
	Other OtherID `xml:"Othr"`
}

type OtherID struct {
	ID     string `xml:"Id"`
	Issuer string `xml:"Issr,omitempty"`
}

type Account struct {
	ID AccountID `xml:"Id"`
}

type AccountID struct {
	IBAN string `xml:"IBAN"`
}

type Agent struct {
	FinInstnID FinInstnID `xml:"FinInstnId"`
}

type FinInstnID struct {
	BIC string `xml:"BIC,omitempty"`
}

type TransactionInfo struct {
	PaymentID      PaymentID       `xml:"PmtId"`
	Amount         Amount          `xml:"Amt"`
	Creditor       Party           `xml:"Cdtr"`
	CreditorAcct   Account         `xml:"CdtrAcct"`
	RemittanceInfo *RemittanceInfo `xml:"RmtInf,omitempty"`
}

type PaymentID struct {
	InstructionID string `xml:"InstrId"`
	EndToEndID    string `xml:"EndToEndId"`
}

type Amount struct {
	Instructed InstructedAmount `xml:"InstdAmt"`
}

type InstructedAmount struct {
	Currency string `xml:"Ccy,attr"`
	Value    string `xml:",chardata"`
}

type RemittanceInfo struct {
	Unstructured string `xml:"Ustrd"`
}
