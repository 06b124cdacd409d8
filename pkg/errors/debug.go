package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"go.uber.org/multierr"
)

// PGDiag is the server-side detail of a Postgres error, whichever driver raised it.
type PGDiag struct {
	Code       string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

// Postgres digs a Postgres error out of err's chain.
func Postgres(err error) (PGDiag, bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return PGDiag{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return PGDiag{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}, true
	}
	return PGDiag{}, false
}

// LogFields flattens err into structured log fields: the message, the typed
// code, the unwrap chain, aggregated causes and any Postgres diagnostics.
// Empty parts are left out.
func LogFields(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}
	fields := map[string]any{"error": err.Error()}
	if typed := As(err); typed != nil {
		fields["error_code"] = typed.Code()
	}

	var chain []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T: %v", e, e))
	}
	if len(chain) > 1 {
		fields["error_chain"] = chain
	}

	if causes := multierr.Errors(err); len(causes) > 1 {
		msgs := make([]string, len(causes))
		for i, cause := range causes {
			msgs[i] = cause.Error()
		}
		fields["error_causes"] = msgs
	}

	if pg, ok := Postgres(err); ok {
		set := func(key, value string) {
			if value != "" {
				fields[key] = value
			}
		}
		set("pg_code", pg.Code)
		set("pg_constraint", pg.Constraint)
		set("pg_table", pg.Table)
		set("pg_column", pg.Column)
		set("pg_detail", pg.Detail)
		set("pg_message", pg.Message)
	}
	return fields
}
