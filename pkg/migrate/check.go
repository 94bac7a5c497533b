package migrate

import (
	"context"
	"database/sql"
	"fmt"
)

// LedgerCheck counts rows that break a bookkeeping invariant the schema
// cannot express on its own.
type LedgerCheck struct {
	Name  string
	Query string
}

// LedgerChecks run after every upgrade. Amounts are cast so the same text
// works on Postgres and on the TEXT columns of the SQLite test schema.
var LedgerChecks = []LedgerCheck{
	{
		Name: "account identity",
		Query: `SELECT COUNT(*) FROM ledger_accounts
			WHERE ABS(CAST(total_fund AS NUMERIC) - CAST(used_fund AS NUMERIC)
				- CAST(on_hold_fund AS NUMERIC) - CAST(available_fund AS NUMERIC)) > 0.005`,
	},
	{
		Name: "buckets within available",
		Query: `SELECT COUNT(*) FROM ledger_accounts a
			WHERE (SELECT COALESCE(SUM(CAST(c.amount AS NUMERIC)), 0) FROM category_balances c WHERE c.account_id = a.id)
				- CAST(a.available_fund AS NUMERIC) > 0.005`,
	},
	{
		Name:  "single base currency",
		Query: `SELECT CASE WHEN COUNT(*) > 1 THEN COUNT(*) ELSE 0 END FROM currencies WHERE is_base`,
	},
	{
		Name: "orphan balance rows",
		Query: `SELECT
			(SELECT COUNT(*) FROM currency_balances b WHERE NOT EXISTS (SELECT 1 FROM ledger_accounts a WHERE a.id = b.account_id))
			+ (SELECT COUNT(*) FROM category_balances c WHERE NOT EXISTS (SELECT 1 FROM ledger_accounts a WHERE a.id = c.account_id))`,
	},
}

// CheckFailure names a failed check and how many rows broke it.
type CheckFailure struct {
	Name string
	Rows int64
}

func (f CheckFailure) String() string {
	return fmt.Sprintf("%s: %d rows", f.Name, f.Rows)
}

// CheckLedger runs LedgerChecks and returns the ones with offending rows.
func CheckLedger(ctx context.Context, db *sql.DB) ([]CheckFailure, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	var failures []CheckFailure
	for _, check := range LedgerChecks {
		var rows int64
		if err := db.QueryRowContext(ctx, check.Query).Scan(&rows); err != nil {
			return nil, fmt.Errorf("ledger check %q: %w", check.Name, err)
		}
		if rows > 0 {
			failures = append(failures, CheckFailure{Name: check.Name, Rows: rows})
		}
	}
	return failures, nil
}
