package service

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"

	"github.com/jjenkins/factbase/internal/model"
)

// PLUM CSV column names.
const (
	plumAgencyName      = "AgencyName"
	plumOrgName         = "OrganizationName"
	plumPositionTitle   = "PositionTitle"
	plumPositionStatus  = "PositionStatus"
	plumAppointmentType = "AppointmentTypeDescription"
	plumExpirationDate  = "ExpirationDate"
	plumLevelGradePay   = "LevelGradePay"
	plumLocation        = "Location"
	plumFirstName       = "IncumbentFirstName"
	plumLastName        = "IncumbentLastName"
	plumPayPlan         = "PaymentPlanDescription"
	plumTenure          = "Tenure"
	plumBeginDate       = "IncumbentBeginDate"
	plumVacateDate      = "IncumbentVacateDate"
)

var plumDateLayouts = []string{"1/2/2006 15:04", "1/2/2006"}

const utf8BOM = "\ufeff"

// PlumParser converts PLUM CSV rows using the column positions of a header.
type PlumParser struct {
	columns map[string]int
}

// NewPlumParser maps the header row. The agency name and position title
// columns must be present.
func NewPlumParser(header []string) (*PlumParser, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		columns[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{plumAgencyName, plumPositionTitle} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("PLUM header is missing column %s", required)
		}
	}
	return &PlumParser{columns: columns}, nil
}

func (p *PlumParser) get(row []string, column string) string {
	i, ok := p.columns[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Parse converts one data row. line is the 1-based line in the file.
func (p *PlumParser) Parse(line int, row []string) (model.PlumRecord, error) {
	rec := model.PlumRecord{
		Line:             line,
		AgencyName:       p.get(row, plumAgencyName),
		OrganizationName: p.get(row, plumOrgName),
		PositionTitle:    p.get(row, plumPositionTitle),
		Vacant:           strings.EqualFold(p.get(row, plumPositionStatus), "vacant"),
		AppointmentType:  model.ParseAppointmentType(p.get(row, plumAppointmentType)),
		PayGrade:         p.get(row, plumLevelGradePay),
		PayPlan:          payPlanCode(p.get(row, plumPayPlan)),
		Location:         p.get(row, plumLocation),
		FirstName:        p.get(row, plumFirstName),
		LastName:         p.get(row, plumLastName),
	}

	// Unparseable dates and tenure codes are dropped, not fatal.
	rec.ExpirationDate, _ = parseDate(p.get(row, plumExpirationDate), plumDateLayouts...)
	rec.BeginDate, _ = parseDate(p.get(row, plumBeginDate), plumDateLayouts...)
	rec.VacateDate, _ = parseDate(p.get(row, plumVacateDate), plumDateLayouts...)
	if t := p.get(row, plumTenure); t != "" {
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			rec.Tenure.Int64, rec.Tenure.Valid = n, true
		}
	}

	if err := validateRecord(model.SyncPlum, line, rec); err != nil {
		return model.PlumRecord{}, err
	}
	return rec, nil
}

// payPlanCode returns the code that prefixes a pay plan description, such
// as "EX" for "EX - Executive Schedule".
func payPlanCode(desc string) string {
	if desc == "" {
		return ""
	}
	if i := strings.IndexAny(desc, "- "); i > 0 {
		return strings.TrimSpace(desc[:i])
	}
	return desc
}

// ReadPlumCSV streams PLUM records from r. A row that cannot be read or
// parsed is yielded as a *ParseError and reading continues; any other
// error ends the sequence.
func ReadPlumCSV(r io.Reader) iter.Seq2[model.PlumRecord, error] {
	return func(yield func(model.PlumRecord, error) bool) {
		reader := csv.NewReader(stripBOM(r))
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true
		reader.TrimLeadingSpace = true
		reader.ReuseRecord = true

		header, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = fmt.Errorf("PLUM CSV is empty")
			}
			yield(model.PlumRecord{}, fmt.Errorf("failed to read PLUM header: %w", err))
			return
		}
		parser, err := NewPlumParser(header)
		if err != nil {
			yield(model.PlumRecord{}, err)
			return
		}

		for {
			row, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				if !yield(model.PlumRecord{}, &ParseError{Source: model.SyncPlum, Line: csvErr.StartLine, Err: csvErr.Err}) {
					return
				}
				continue
			}
			if err != nil {
				yield(model.PlumRecord{}, fmt.Errorf("failed to read PLUM CSV: %w", err))
				return
			}
			if blankRow(row) {
				continue
			}
			line, _ := reader.FieldPos(0)
			if !yield(parser.Parse(line, row)) {
				return
			}
		}
	}
}

func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && string(b) == utf8BOM {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
