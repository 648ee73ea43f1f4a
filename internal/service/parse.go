package service

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jjenkins/factbase/internal/model"
)

// ParseError describes one record that could not be converted. The rest of
// the batch is unaffected.
type ParseError struct {
	Source model.SyncSource
	// Line is the CSV line number, or the record index for YAML and JSON.
	Line   int
	Field  string
	Value  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s record %d", e.Source, e.Line)
	if e.Field != "" {
		fmt.Fprintf(&b, " field %s", e.Field)
	}
	if e.Value != "" {
		fmt.Fprintf(&b, " value %q", e.Value)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateRecord checks the struct tags of a parsed record and reports the
// first failing field as a ParseError.
func validateRecord(source model.SyncSource, line int, rec any) error {
	err := validate.Struct(rec)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		fe := fields[0]
		value := ""
		if v := fe.Value(); v != nil {
			value = fmt.Sprint(v)
		}
		return &ParseError{Source: source, Line: line, Field: fe.Field(), Value: value, Reason: "failed " + fe.Tag() + " check"}
	}
	return &ParseError{Source: source, Line: line, Err: err}
}

// parseDate tries each layout in order. Blank input, or input no layout
// accepts, yields an invalid NullTime.
func parseDate(value string, layouts ...string) (sql.NullTime, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return sql.NullTime{}, true
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return sql.NullTime{Time: dateOnly(t), Valid: true}, true
		}
	}
	return sql.NullTime{}, false
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

// checksum accumulates an MD5 over everything written to it.
type checksum struct {
	h hash.Hash
}

func newChecksum() *checksum { return &checksum{h: md5.New()} }

func (c *checksum) Write(p []byte) (int, error) { return c.h.Write(p) }

func (c *checksum) Sum() string { return hex.EncodeToString(c.h.Sum(nil)) }

// calculateChecksum computes the MD5 hash of content.
func calculateChecksum(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}
