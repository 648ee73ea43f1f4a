package service

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jjenkins/factbase/internal/model"
)

const frDateLayout = "2006-01-02"

// documentsPage is the envelope of /documents.json.
type documentsPage struct {
	Count       int               `json:"count"`
	TotalPages  int               `json:"total_pages"`
	NextPageURL string            `json:"next_page_url"`
	Results     []json.RawMessage `json:"results"`
}

type documentJSON struct {
	DocumentNumber     string   `json:"document_number"`
	Title              string   `json:"title"`
	Abstract           string   `json:"abstract"`
	Type               string   `json:"type"`
	PublicationDate    string   `json:"publication_date"`
	EffectiveOn        string   `json:"effective_on"`
	SigningDate        string   `json:"signing_date"`
	RegulationIDNumber flexible `json:"regulation_id_number"`
	HTMLURL            string   `json:"html_url"`
	PDFURL             string   `json:"pdf_url"`
	DocketIDs          []string `json:"docket_ids"`
	Agencies           []struct {
		ID        int64  `json:"id"`
		Name      string `json:"name"`
		RawName   string `json:"raw_name"`
		ShortName string `json:"short_name"`
	} `json:"agencies"`
	CFRReferences []struct {
		Title   int      `json:"title"`
		Part    flexible `json:"part"`
		Section flexible `json:"section"`
	} `json:"cfr_references"`
}

// flexible decodes a JSON string, number, or list of strings as text.
// The API is not consistent about these fields.
type flexible string

func (f *flexible) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexible(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*f = flexible(strings.Join(list, ","))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexible(n.String())
		return nil
	}
	return fmt.Errorf("unsupported value %s", b)
}

// ParseDocument converts one Federal Register document.
func ParseDocument(index int, raw json.RawMessage) (model.DocumentRecord, error) {
	var doc documentJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return model.DocumentRecord{}, &ParseError{Source: model.SyncRegulations, Line: index, Err: err}
	}

	rec := model.DocumentRecord{
		Index:              index,
		DocumentNumber:     strings.TrimSpace(doc.DocumentNumber),
		Title:              strings.TrimSpace(doc.Title),
		Abstract:           strings.TrimSpace(doc.Abstract),
		Type:               model.ParseDocumentType(doc.Type),
		RegulationIDNumber: strings.TrimSpace(string(doc.RegulationIDNumber)),
		HTMLURL:            doc.HTMLURL,
		PDFURL:             doc.PDFURL,
	}

	pub, ok := parseDate(doc.PublicationDate, frDateLayout)
	if !ok {
		return model.DocumentRecord{}, &ParseError{Source: model.SyncRegulations, Line: index, Field: "publication_date", Value: doc.PublicationDate, Reason: "not a date"}
	}
	rec.PublicationDate = pub.Time
	// Optional dates are dropped when malformed.
	rec.EffectiveOn, _ = parseDate(doc.EffectiveOn, frDateLayout)
	rec.SigningDate, _ = parseDate(doc.SigningDate, frDateLayout)

	for _, a := range doc.Agencies {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			name = strings.TrimSpace(a.RawName)
		}
		if name == "" && a.ID == 0 {
			continue
		}
		rec.Agencies = append(rec.Agencies, model.AgencyRef{ID: a.ID, Name: name, ShortName: strings.TrimSpace(a.ShortName)})
	}
	for _, c := range doc.CFRReferences {
		rec.CFRReferences = append(rec.CFRReferences, model.CFRReference{
			Title:   c.Title,
			Part:    string(c.Part),
			Section: string(c.Section),
		})
	}
	for _, d := range doc.DocketIDs {
		if d = strings.TrimSpace(d); d != "" {
			rec.DocketIDs = append(rec.DocketIDs, d)
		}
	}

	if err := validateRecord(model.SyncRegulations, index, rec); err != nil {
		return model.DocumentRecord{}, err
	}
	return rec, nil
}

type agencyJSON struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ShortName   string `json:"short_name"`
	Slug        string `json:"slug"`
	URL         string `json:"url"`
	ParentID    *int64 `json:"parent_id"`
	Description string `json:"description"`
}

// ParseAgency converts one entry of the /agencies listing.
func ParseAgency(index int, raw json.RawMessage) (model.AgencyRecord, error) {
	var a agencyJSON
	if err := json.Unmarshal(raw, &a); err != nil {
		return model.AgencyRecord{}, &ParseError{Source: model.SyncAgencies, Line: index, Err: err}
	}
	rec := model.AgencyRecord{
		Index:       index,
		ID:          a.ID,
		Name:        strings.TrimSpace(a.Name),
		ShortName:   strings.TrimSpace(a.ShortName),
		Slug:        strings.TrimSpace(a.Slug),
		URL:         strings.TrimSpace(a.URL),
		Description: strings.TrimSpace(a.Description),
	}
	if a.ParentID != nil {
		rec.ParentID = sql.NullInt64{Int64: *a.ParentID, Valid: true}
	}
	if err := validateRecord(model.SyncAgencies, index, rec); err != nil {
		return model.AgencyRecord{}, err
	}
	return rec, nil
}
