package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is the log-side view of an error chain. It never reaches clients.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`

	Chain []string `json:"chain,omitempty"`

	// LedgerRule names the bookkeeping rule behind a violated constraint.
	LedgerRule string `json:"ledger_rule,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

var ledgerRules = map[string]string{
	"ux_allocations_scope_target":           "one allocation per case or project",
	"ux_fund_transactions_pending_hold":     "one pending hold per budget and target",
	"ux_currency_balances_account_currency": "one balance row per account and currency",
	"ux_category_balances_account_category": "one bucket per account and category",
	"ux_currencies_single_base":             "exactly one base currency",
	"chk_currencies_base_rate":              "base currency rate is 1",
	"chk_ledger_accounts_identity":          "total equals used plus on hold plus available",
	"chk_fund_transfer_requests_distinct":   "transfer endpoints differ",
}

// balance columns guarded by non-negative CHECKs.
var balanceColumns = []string{"available_fund", "on_hold_fund", "used_fund", "total_fund", "on_hold", "used", "amount"}

// Dump flattens err for structured logs.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
		d.Retryable = MetadataFor(te.Code()).Retryable
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	check := false
	switch {
	case errors.As(err, &pgxErr):
		d.PGCode = pgxErr.Code
		d.PGConstraint = pgxErr.ConstraintName
		d.PGTable = pgxErr.TableName
		d.PGColumn = pgxErr.ColumnName
		d.PGDetail = pgxErr.Detail
		d.PGMessage = pgxErr.Message
		check = pgxErr.Code == "23514"
	case errors.As(err, &pqErr):
		d.PGCode = string(pqErr.Code)
		d.PGConstraint = pqErr.Constraint
		d.PGTable = pqErr.Table
		d.PGColumn = pqErr.Column
		d.PGDetail = pqErr.Detail
		d.PGMessage = pqErr.Message
		check = string(pqErr.Code) == "23514"
	default:
		d.PGTable, d.PGColumn = sqliteConstraint(err.Error())
		check = strings.Contains(err.Error(), "CHECK constraint failed")
	}

	// serialization failures and deadlocks are safe to replay
	if d.PGCode == "40001" || d.PGCode == "40P01" {
		d.Retryable = true
	}
	d.LedgerRule = ledgerRule(d, check)
	return d
}

func ledgerRule(d ErrorDump, check bool) string {
	if rule, ok := ledgerRules[d.PGConstraint]; ok {
		return rule
	}
	if check {
		for _, col := range balanceColumns {
			if d.PGColumn == col || strings.Contains(d.PGConstraint, "_"+col+"_") {
				return "balances never go negative"
			}
		}
	}
	return ""
}

// sqliteConstraint extracts table and column from messages such as
// "UNIQUE constraint failed: allocations.scope, allocations.target_id" or
// "CHECK constraint failed: available_fund >= 0".
func sqliteConstraint(msg string) (string, string) {
	idx := strings.Index(msg, "constraint failed: ")
	if idx < 0 {
		return "", ""
	}
	rest := strings.TrimSpace(msg[idx+len("constraint failed: "):])
	fields := strings.Fields(strings.SplitN(rest, ",", 2)[0])
	if len(fields) == 0 {
		return "", ""
	}
	first := fields[0]
	if table, col, ok := strings.Cut(first, "."); ok {
		return table, col
	}
	return "", first
}
