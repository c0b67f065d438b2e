// Package store persists Form 4 transactions, processed-filing markers,
// and the sent-alert dedup ledger in a single SQLite database.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/bighogz/form4-scanner/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS form4_transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    accession_number TEXT,
    filing_date DATE,
    accepted_datetime DATETIME,
    issuer_cik TEXT,
    issuer_name TEXT,
    issuer_ticker TEXT,
    insider_cik TEXT,
    insider_name TEXT,
    insider_title TEXT,
    is_director INTEGER,
    is_officer INTEGER,
    is_ten_percent_owner INTEGER,
    transaction_date DATE,
    transaction_code TEXT,
    shares_amount REAL,
    price_per_share REAL,
    total_value REAL,
    acquired_disposed TEXT,
    shares_owned_after REAL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(accession_number, insider_cik, transaction_date, transaction_code, shares_amount, price_per_share)
);

CREATE TABLE IF NOT EXISTS processed_filings (
    accession_number TEXT PRIMARY KEY,
    processed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    status TEXT,
    error_message TEXT
);

CREATE TABLE IF NOT EXISTS sent_alerts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    alert_type TEXT,
    issuer_ticker TEXT,
    alert_date DATE,
    details TEXT,
    sent_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(alert_type, issuer_ticker, alert_date)
);

CREATE INDEX IF NOT EXISTS idx_txn_ticker_date ON form4_transactions(issuer_ticker, transaction_date);
CREATE INDEX IF NOT EXISTS idx_txn_code_date ON form4_transactions(transaction_code, transaction_date);
`

// Store wraps the scanner database. The transaction table is an
// append-only ledger; sent_alerts enforces the same-day dedup key.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (creating if needed) the SQLite database at path and applies
// the schema. WAL mode keeps the daily scan and ad-hoc reads from
// blocking each other.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if !strings.HasPrefix(path, "file:") {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		path = abs
	}

	connStr := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{
		db:  db,
		log: log.With().Str("component", "store").Logger(),
	}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertTransaction appends a transaction to the ledger. Returns false
// when an identical row already exists (duplicate ingestion is a no-op,
// not an error).
func (s *Store) InsertTransaction(t models.Transaction) (bool, error) {
	res, err := s.db.Exec(`
        INSERT OR IGNORE INTO form4_transactions (
            accession_number, filing_date, accepted_datetime,
            issuer_cik, issuer_name, issuer_ticker,
            insider_cik, insider_name, insider_title,
            is_director, is_officer, is_ten_percent_owner,
            transaction_date, transaction_code, shares_amount,
            price_per_share, total_value, acquired_disposed, shares_owned_after
        ) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.AccessionNumber, t.FilingDate, t.AcceptedDatetime,
		t.IssuerCIK, t.IssuerName, t.IssuerTicker,
		t.InsiderCIK, t.InsiderName, t.InsiderTitle,
		boolToInt(t.IsDirector), boolToInt(t.IsOfficer), boolToInt(t.IsTenPercentOwner),
		t.TransactionDate, t.TransactionCode, t.SharesAmount,
		t.PricePerShare, t.TotalValue, t.AcquiredDisposed, t.SharesOwnedAfter)
	if err != nil {
		return false, fmt.Errorf("insert transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkFilingProcessed records the ingestion outcome for an accession
// number. Status is "success" or "error"; errMsg is kept for operators.
func (s *Store) MarkFilingProcessed(accession, status, errMsg string) error {
	_, err := s.db.Exec(`
        INSERT OR REPLACE INTO processed_filings (accession_number, status, error_message, processed_at)
        VALUES (?,?,?,?)`,
		accession, status, nullable(errMsg), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("mark filing processed: %w", err)
	}
	return nil
}

// IsFilingProcessed reports whether an accession number was already
// handled (successfully or not).
func (s *Store) IsFilingProcessed(accession string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM processed_filings WHERE accession_number = ?`, accession).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check filing processed: %w", err)
	}
	return true, nil
}

// ClearErrorFilings removes error markers so those filings are
// re-attempted if they reappear in the feed. There is no automatic
// retry; this is the manual re-queue behind --retry-errors.
func (s *Store) ClearErrorFilings() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM processed_filings WHERE status = 'error'`)
	if err != nil {
		return 0, fmt.Errorf("clear error filings: %w", err)
	}
	return res.RowsAffected()
}

// PurchasesSince returns all open-market purchases on or after cutoff
// with total value at or above minValue, across all tickers.
func (s *Store) PurchasesSince(cutoff string, minValue float64) ([]models.Transaction, error) {
	return s.queryTransactions(`
        SELECT `+txnColumns+`
        FROM form4_transactions
        WHERE transaction_code = 'P' AND acquired_disposed = 'A'
          AND transaction_date >= ?
          AND COALESCE(NULLIF(total_value, 0), shares_amount * price_per_share, 0) >= ?
          AND issuer_ticker IS NOT NULL AND issuer_ticker != ''
        ORDER BY transaction_date DESC`, cutoff, minValue)
}

// SignificantSells returns open-market sells on or after cutoff with
// total value at or above minValue, largest first.
func (s *Store) SignificantSells(cutoff string, minValue float64) ([]models.Transaction, error) {
	return s.queryTransactions(`
        SELECT `+txnColumns+`
        FROM form4_transactions
        WHERE transaction_code = 'S' AND acquired_disposed = 'D'
          AND transaction_date >= ?
          AND total_value >= ?
          AND issuer_ticker IS NOT NULL AND issuer_ticker != ''
        ORDER BY total_value DESC`, cutoff, minValue)
}

const txnColumns = `accession_number, COALESCE(filing_date,''), COALESCE(accepted_datetime,''),
    COALESCE(issuer_cik,''), COALESCE(issuer_name,''), COALESCE(issuer_ticker,''),
    COALESCE(insider_cik,''), COALESCE(insider_name,''), COALESCE(insider_title,''),
    is_director, is_officer, is_ten_percent_owner,
    COALESCE(transaction_date,''), COALESCE(transaction_code,''),
    COALESCE(shares_amount,0), COALESCE(price_per_share,0), COALESCE(total_value,0),
    COALESCE(acquired_disposed,''), shares_owned_after`

func (s *Store) queryTransactions(query string, args ...any) ([]models.Transaction, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var t models.Transaction
		var isDir, isOff, isTen int
		if err := rows.Scan(
			&t.AccessionNumber, &t.FilingDate, &t.AcceptedDatetime,
			&t.IssuerCIK, &t.IssuerName, &t.IssuerTicker,
			&t.InsiderCIK, &t.InsiderName, &t.InsiderTitle,
			&isDir, &isOff, &isTen,
			&t.TransactionDate, &t.TransactionCode,
			&t.SharesAmount, &t.PricePerShare, &t.TotalValue,
			&t.AcquiredDisposed, &t.SharesOwnedAfter,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.IsDirector = isDir != 0
		t.IsOfficer = isOff != 0
		t.IsTenPercentOwner = isTen != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

// WasAlertSent reports whether an alert with this (type, ticker, date)
// key was already recorded.
func (s *Store) WasAlertSent(alertType, ticker, alertDate string) (bool, error) {
	var one int
	err := s.db.QueryRow(`
        SELECT 1 FROM sent_alerts WHERE alert_type = ? AND issuer_ticker = ? AND alert_date = ?`,
		alertType, ticker, alertDate).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check alert sent: %w", err)
	}
	return true, nil
}

// RecordAlertSent marks an alert as sent. Insert-if-absent: a duplicate
// key is silently absorbed, the first record wins.
func (s *Store) RecordAlertSent(alertType, ticker, alertDate, details string) error {
	_, err := s.db.Exec(`
        INSERT OR IGNORE INTO sent_alerts (alert_type, issuer_ticker, alert_date, details)
        VALUES (?,?,?,?)`, alertType, ticker, alertDate, details)
	if err != nil {
		return fmt.Errorf("record alert sent: %w", err)
	}
	return nil
}

// Stats summarizes the ledger for the daily status report.
type Stats struct {
	TotalTransactions   int
	TotalPurchases      int
	TotalSells          int
	UniqueCompanies     int
	UniqueInsiders      int
	EarliestTransaction string
	LatestTransaction   string
	ProcessedFilings    int
}

// GetStats returns ledger counts and the transaction date range.
func (s *Store) GetStats() (Stats, error) {
	var st Stats
	counts := []struct {
		query string
		dst   *int
	}{
		{`SELECT COUNT(*) FROM form4_transactions`, &st.TotalTransactions},
		{`SELECT COUNT(*) FROM form4_transactions WHERE transaction_code = 'P'`, &st.TotalPurchases},
		{`SELECT COUNT(*) FROM form4_transactions WHERE transaction_code = 'S'`, &st.TotalSells},
		{`SELECT COUNT(DISTINCT issuer_ticker) FROM form4_transactions WHERE issuer_ticker IS NOT NULL`, &st.UniqueCompanies},
		{`SELECT COUNT(DISTINCT insider_cik) FROM form4_transactions`, &st.UniqueInsiders},
		{`SELECT COUNT(*) FROM processed_filings`, &st.ProcessedFilings},
	}
	for _, c := range counts {
		if err := s.db.QueryRow(c.query).Scan(c.dst); err != nil {
			return st, fmt.Errorf("stats query: %w", err)
		}
	}
	var earliest, latest sql.NullString
	if err := s.db.QueryRow(`SELECT MIN(transaction_date), MAX(transaction_date) FROM form4_transactions`).
		Scan(&earliest, &latest); err != nil {
		return st, fmt.Errorf("stats date range: %w", err)
	}
	st.EarliestTransaction = earliest.String
	st.LatestTransaction = latest.String
	return st, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
