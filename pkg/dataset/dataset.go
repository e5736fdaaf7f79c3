// Package dataset moves triples between knowledge bases and CSV, the
// interchange format of public knowledge-graph datasets.
//
// Rows are subject, predicate, object, optionally followed by three
// JSON attribute columns (subject, object, edge). A leading "~" on the
// predicate marks a negative example.
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/orneryd/munindb/pkg/munindb"
)

// Options tunes CSV handling.
type Options struct {
	// Delimiter separates fields; default comma.
	Delimiter rune

	// Header skips the first row on import and writes one on export.
	Header bool

	// Start skips this many data rows on import.
	Start int

	// Limit stops an import after this many stored triples; 0 means
	// no limit.
	Limit int

	// WithData exports the attribute bags as JSON columns.
	WithData bool

	// Logger receives skipped-row diagnostics; nil for none.
	Logger *zap.Logger
}

func (o *Options) delimiter() rune {
	if o == nil || o.Delimiter == 0 {
		return ','
	}
	return o.Delimiter
}

func (o *Options) logger() *zap.Logger {
	if o == nil || o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Report summarizes one import.
type Report struct {
	Stored  int
	Skipped int
}

// FromCSV reads triples from r and stores each as a fact with its
// attributes. Rows that do not cleanse into valid identifiers, or
// whose attribute columns are not valid JSON, are skipped and counted,
// not fatal; a malformed CSV stream is.
func FromCSV(kb *munindb.KB, r io.Reader, opts *Options) (Report, error) {
	log := opts.logger()
	reader := csv.NewReader(r)
	reader.Comma = opts.delimiter()
	reader.FieldsPerRecord = -1

	var rep Report
	row, dataRows := 0, 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return rep, nil
		}
		if err != nil {
			return rep, fmt.Errorf("row %d: %w", row+1, err)
		}
		row++
		if opts != nil && opts.Header && row == 1 {
			continue
		}
		dataRows++
		if opts != nil && dataRows <= opts.Start {
			continue
		}
		if len(record) < 3 {
			rep.Skipped++
			log.Debug("row skipped: too few fields", zap.Int("row", row))
			continue
		}
		sub := Cleanse(record[0])
		pred := strings.TrimSpace(record[1])
		negative := strings.HasPrefix(pred, "~")
		pred = Cleanse(strings.TrimPrefix(pred, "~"))
		ob := Cleanse(record[2])
		if pred == "" || sub == "" || ob == "" {
			rep.Skipped++
			log.Debug("row skipped: empty identifier", zap.Int("row", row))
			continue
		}

		subAttrs, err1 := parseAttrs(record, 3)
		obAttrs, err2 := parseAttrs(record, 4)
		edgeAttrs, err3 := parseAttrs(record, 5)
		if err1 != nil || err2 != nil || err3 != nil {
			rep.Skipped++
			log.Debug("row skipped: bad attribute JSON", zap.Int("row", row))
			continue
		}

		statement := fmt.Sprintf("%s(%s, %s)", pred, sub, ob)
		if negative {
			statement = "~" + statement
		}
		var nodeAttrs []munindb.Attrs
		if subAttrs != nil || obAttrs != nil {
			nodeAttrs = []munindb.Attrs{subAttrs, obAttrs}
		}
		if _, err := kb.StoreWithAttributes(statement, nodeAttrs, edgeAttrs); err != nil {
			rep.Skipped++
			log.Debug("row skipped", zap.Int("row", row), zap.Error(err))
			continue
		}
		rep.Stored++
		if opts != nil && opts.Limit > 0 && rep.Stored >= opts.Limit {
			return rep, nil
		}
	}
}

func parseAttrs(record []string, i int) (munindb.Attrs, error) {
	if i >= len(record) || strings.TrimSpace(record[i]) == "" {
		return nil, nil
	}
	var attrs munindb.Attrs
	if err := json.Unmarshal([]byte(record[i]), &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}

// ToCSV writes the knowledge base's triples to w, one row per triple:
// subject, predicate, object, with negatives carrying a "~" predicate
// prefix and, under WithData, three JSON attribute columns. The output
// reimports cleanly through FromCSV.
func ToCSV(kb *munindb.KB, w io.Writer, opts *Options) error {
	writer := csv.NewWriter(w)
	writer.Comma = opts.delimiter()
	withData := opts != nil && opts.WithData
	if opts != nil && opts.Header {
		header := []string{"subject", "predicate", "object"}
		if withData {
			header = append(header, "subject_attrs", "object_attrs", "edge_attrs")
		}
		if err := writer.Write(header); err != nil {
			return err
		}
	}
	for _, td := range kb.ToTriples(withData) {
		pred := td.Predicate
		if td.Negative {
			pred = "~" + pred
		}
		record := []string{td.Subject, pred, td.Object}
		if withData {
			cols, err := attrColumns(td.SubjectAttrs, td.ObjectAttrs, td.EdgeAttrs)
			if err != nil {
				return err
			}
			record = append(record, cols...)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func attrColumns(bags ...munindb.Attrs) ([]string, error) {
	out := make([]string, len(bags))
	for i, bag := range bags {
		if len(bag) == 0 {
			continue
		}
		data, err := json.Marshal(bag)
		if err != nil {
			return nil, fmt.Errorf("marshal attributes: %w", err)
		}
		out[i] = string(data)
	}
	return out, nil
}

// Cleanse folds free text into a statement-safe identifier: trimmed,
// spaces and hyphens to underscores, everything but letters, digits
// and underscores dropped. Empty output means the field is unusable.
func Cleanse(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '-':
			b.WriteRune('_')
		}
	}
	return b.String()
}
