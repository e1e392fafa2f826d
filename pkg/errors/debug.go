package errors

import (
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// StoreFault is what a database driver reported alongside a failure.
type StoreFault struct {
	Driver     string `json:"driver"`
	SQLState   string `json:"sql_state,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ErrorDump is the log-friendly breakdown of an error chain.
type ErrorDump struct {
	TopMessage string      `json:"top_message"`
	Code       Code        `json:"code,omitempty"`
	Retryable  bool        `json:"retryable,omitempty"`
	Chain      []string    `json:"chain,omitempty"`
	Store      *StoreFault `json:"store,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error(), Retryable: Retryable(err), Store: storeFault(err)}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for link := err; link != nil; link = stdErrors.Unwrap(link) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", link, link))
	}
	return d
}

// Fields flattens the dump into logger fields.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_chain": d.Chain,
	}
	if d.Code != "" {
		fields["error_code"] = d.Code
	}
	if s := d.Store; s != nil {
		fields["db_driver"] = s.Driver
		fields["db_sql_state"] = s.SQLState
		fields["db_constraint"] = s.Constraint
		fields["db_table"] = s.Table
		fields["db_column"] = s.Column
		fields["db_detail"] = s.Detail
		fields["db_message"] = s.Message
	}
	return fields
}

func storeFault(err error) *StoreFault {
	if pgErr := (*pgconn.PgError)(nil); stdErrors.As(err, &pgErr) {
		return &StoreFault{"pgx", pgErr.Code, pgErr.ConstraintName, pgErr.TableName, pgErr.ColumnName, pgErr.Detail, pgErr.Message}
	}
	if pqErr := (*pq.Error)(nil); stdErrors.As(err, &pqErr) {
		return &StoreFault{"pq", string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Column, pqErr.Detail, pqErr.Message}
	}
	// sqlite only reports constraint failures as text.
	if msg := err.Error(); strings.Contains(msg, "constraint failed") {
		return &StoreFault{Driver: "sqlite", Message: msg}
	}
	return nil
}
