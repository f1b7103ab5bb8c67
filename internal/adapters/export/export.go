// Package export converts the roster and sessions to and from the portable
// JSON document offered for download.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/okian/hurdletime/internal/domain/model"
)

// ErrInvalidDocument is returned when an import does not describe a valid
// data set.
var ErrInvalidDocument = errors.New("invalid export document")

// Document is the exported data set.
type Document struct {
	Athletes   []model.Athlete         `json:"athletes"`
	Sessions   []model.TrainingSession `json:"sessions"`
	ExportDate time.Time               `json:"exportDate"`
}

// New builds a document stamped at now. Dates are normalized to UTC.
func New(athletes []model.Athlete, sessions []model.TrainingSession, now time.Time) Document {
	doc := Document{
		Athletes:   append([]model.Athlete{}, athletes...),
		Sessions:   make([]model.TrainingSession, len(sessions)),
		ExportDate: now.UTC(),
	}
	for i, s := range sessions {
		s.Date = s.Date.UTC()
		s.HurdleTimes = append([]uint32(nil), s.HurdleTimes...)
		doc.Sessions[i] = s
	}
	return doc
}

// Encode writes doc as indented JSON.
func Encode(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

// Marshal is Encode into a byte slice.
func Marshal(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads and validates a document. Unknown fields are rejected.
func Decode(r io.Reader) (Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	if doc.Athletes == nil {
		doc.Athletes = []model.Athlete{}
	}
	if doc.Sessions == nil {
		doc.Sessions = []model.TrainingSession{}
	}
	return doc, nil
}

// Validate checks every athlete and session.
func (d Document) Validate() error {
	seen := make(map[string]struct{}, len(d.Athletes))
	for i, a := range d.Athletes {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("%w: athlete %d: %w", ErrInvalidDocument, i, err)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("%w: duplicate athlete id %s", ErrInvalidDocument, a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	for i, s := range d.Sessions {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("%w: session %d: %w", ErrInvalidDocument, i, err)
		}
	}
	return nil
}

// FileName is the suggested download name, timing-data-YYYY-MM-DD.json.
func FileName(now time.Time) string {
	return "timing-data-" + now.Format(time.DateOnly) + ".json"
}
