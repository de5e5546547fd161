package dbx

import (
	"database/sql"
	"fmt"
	"time"
)

// NullInt64 converts an optional id into a nullable column value.
func NullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// NullString stores "" as NULL.
func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// ScanMillis scans a millisecond column into *t.
func ScanMillis(t *time.Time) sql.Scanner { return millisScanner{t: t} }

// ScanNullMillis scans a nullable millisecond column into *t (nil for NULL).
func ScanNullMillis(t **time.Time) sql.Scanner { return nullMillisScanner{t: t} }

// ScanNullInt64 scans a nullable integer column into *v (nil for NULL).
func ScanNullInt64(v **int64) sql.Scanner { return nullInt64Scanner{v: v} }

// ScanNullString scans a nullable text column into *s ("" for NULL).
func ScanNullString(s *string) sql.Scanner { return nullStringScanner{s: s} }

type millisScanner struct{ t *time.Time }

func (s millisScanner) Scan(src any) error {
	var n sql.NullInt64
	if err := n.Scan(src); err != nil {
		return err
	}
	if !n.Valid {
		return fmt.Errorf("unexpected NULL timestamp")
	}
	*s.t = FromMillis(n.Int64)
	return nil
}

type nullMillisScanner struct{ t **time.Time }

func (s nullMillisScanner) Scan(src any) error {
	var n sql.NullInt64
	if err := n.Scan(src); err != nil {
		return err
	}
	*s.t = FromNullMillis(n)
	return nil
}

type nullInt64Scanner struct{ v **int64 }

func (s nullInt64Scanner) Scan(src any) error {
	var n sql.NullInt64
	if err := n.Scan(src); err != nil {
		return err
	}
	if !n.Valid {
		*s.v = nil
		return nil
	}
	v := n.Int64
	*s.v = &v
	return nil
}

type nullStringScanner struct{ s *string }

func (s nullStringScanner) Scan(src any) error {
	var n sql.NullString
	if err := n.Scan(src); err != nil {
		return err
	}
	*s.s = n.String
	return nil
}
