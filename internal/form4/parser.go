// Package form4 parses SEC Form 4 ownership documents (XML) into
// transaction records.
package form4

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bighogz/form4-scanner/internal/models"
)

// ownershipDocument mirrors the subset of the Form 4 XML schema the
// scanner cares about: issuer, reporting owners, non-derivative
// transactions. Derivative tables (options, RSUs) are ignored.
type ownershipDocument struct {
	XMLName            xml.Name          `xml:"ownershipDocument"`
	PeriodOfReport     string            `xml:"periodOfReport"`
	Issuer             issuer            `xml:"issuer"`
	ReportingOwners    []reportingOwner  `xml:"reportingOwner"`
	NonDerivativeTable nonDerivativeTabl `xml:"nonDerivativeTable"`
}

type issuer struct {
	CIK    string `xml:"issuerCik"`
	Name   string `xml:"issuerName"`
	Ticker string `xml:"issuerTradingSymbol"`
}

type reportingOwner struct {
	ID           ownerID           `xml:"reportingOwnerId"`
	Relationship ownerRelationship `xml:"reportingOwnerRelationship"`
}

type ownerID struct {
	CIK  string `xml:"rptOwnerCik"`
	Name string `xml:"rptOwnerName"`
}

type ownerRelationship struct {
	IsDirector        string `xml:"isDirector"`
	IsOfficer         string `xml:"isOfficer"`
	IsTenPercentOwner string `xml:"isTenPercentOwner"`
	OfficerTitle      string `xml:"officerTitle"`
}

type nonDerivativeTabl struct {
	Transactions []nonDerivativeTxn `xml:"nonDerivativeTransaction"`
}

type nonDerivativeTxn struct {
	TransactionDate    valueField `xml:"transactionDate"`
	Coding             txnCoding  `xml:"transactionCoding"`
	Amounts            txnAmounts `xml:"transactionAmounts"`
	PostTransaction    postAmount `xml:"postTransactionAmounts"`
}

type txnCoding struct {
	Code string `xml:"transactionCode"`
}

type txnAmounts struct {
	Shares           valueField `xml:"transactionShares"`
	PricePerShare    valueField `xml:"transactionPricePerShare"`
	AcquiredDisposed valueField `xml:"transactionAcquiredDisposedCode"`
}

type postAmount struct {
	SharesOwned valueField `xml:"sharesOwnedFollowingTransaction"`
}

// valueField covers the Form 4 <x><value>...</value></x> wrapper.
type valueField struct {
	Value string `xml:"value"`
}

// Parser turns Form 4 XML documents into transactions.
type Parser struct {
	log zerolog.Logger
}

// New returns a parser.
func New(log zerolog.Logger) *Parser {
	return &Parser{log: log.With().Str("component", "form4").Logger()}
}

// Parse extracts the non-derivative transactions from a Form 4 XML
// document. A malformed transaction element is skipped, not fatal;
// the document itself failing to decode is an error.
func (p *Parser) Parse(data []byte, accession, filingDate string) ([]models.Transaction, error) {
	var doc ownershipDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse form4 xml: %w", err)
	}

	// Multi-owner filings exist (joint filers); the first owner carries
	// the primary relationship, matching how EDGAR renders them.
	var owner reportingOwner
	if len(doc.ReportingOwners) > 0 {
		owner = doc.ReportingOwners[0]
	}

	var out []models.Transaction
	for i, raw := range doc.NonDerivativeTable.Transactions {
		t, err := p.buildTransaction(doc, owner, raw, accession, filingDate)
		if err != nil {
			p.log.Warn().
				Str("accession", accession).
				Int("index", i).
				Err(err).
				Msg("skipping malformed transaction")
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (p *Parser) buildTransaction(doc ownershipDocument, owner reportingOwner, raw nonDerivativeTxn, accession, filingDate string) (models.Transaction, error) {
	code := strings.TrimSpace(raw.Coding.Code)
	if code == "" {
		return models.Transaction{}, fmt.Errorf("missing transaction code")
	}

	shares, err := parseFloat(raw.Amounts.Shares.Value)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("shares: %w", err)
	}

	// Price is absent on some grant/award rows; treat as zero rather
	// than dropping the record.
	price, _ := parseFloat(raw.Amounts.PricePerShare.Value)

	t := models.Transaction{
		AccessionNumber:   accession,
		FilingDate:        filingDate,
		IssuerCIK:         strings.TrimSpace(doc.Issuer.CIK),
		IssuerName:        strings.TrimSpace(doc.Issuer.Name),
		IssuerTicker:      strings.ToUpper(strings.TrimSpace(doc.Issuer.Ticker)),
		InsiderCIK:        strings.TrimSpace(owner.ID.CIK),
		InsiderName:       strings.TrimSpace(owner.ID.Name),
		InsiderTitle:      strings.TrimSpace(owner.Relationship.OfficerTitle),
		IsDirector:        xmlBool(owner.Relationship.IsDirector),
		IsOfficer:         xmlBool(owner.Relationship.IsOfficer),
		IsTenPercentOwner: xmlBool(owner.Relationship.IsTenPercentOwner),
		TransactionDate:   strings.TrimSpace(raw.TransactionDate.Value),
		TransactionCode:   code,
		SharesAmount:      shares,
		PricePerShare:     price,
		TotalValue:        shares * price,
		AcquiredDisposed:  strings.ToUpper(strings.TrimSpace(raw.Amounts.AcquiredDisposed.Value)),
	}

	if v := strings.TrimSpace(raw.PostTransaction.SharesOwned.Value); v != "" {
		if owned, err := parseFloat(v); err == nil {
			t.SharesOwnedAfter = &owned
		}
	}
	return t, nil
}

func parseFloat(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	return strconv.ParseFloat(s, 64)
}

// xmlBool accepts the encodings filers actually use: "1", "true", "yes".
func xmlBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
