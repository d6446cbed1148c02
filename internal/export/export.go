// Package export writes discovery results as CSV or JSONL with a fixed
// column layout shared by both formats.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/wom-group/openings-cli/internal/model"
)

// Columns is the fixed output column order.
var Columns = []string{
	"name", "full_address", "description", "tags", "opening_date", "source", "last_edit",
}

// Row is the flat export shape of one record. The tags column carries the
// sorted tag list plus the confidence tier, semicolon-joined.
type Row struct {
	Name        string `json:"name"`
	FullAddress string `json:"full_address"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
	OpeningDate string `json:"opening_date"`
	Source      string `json:"source"`
	LastEdit    string `json:"last_edit"`
}

// BuildRow flattens a record into its export row.
func BuildRow(r *model.Record) Row {
	tags := r.Tags.Sorted()
	tags = append(tags, "confidence:"+string(r.Confidence))

	return Row{
		Name:        r.Name,
		FullAddress: r.Address,
		Description: r.Description,
		Tags:        strings.Join(tags, ";"),
		OpeningDate: r.OpeningDateISO(),
		Source:      string(r.Source),
		LastEdit:    r.LastEdited,
	}
}

func (row Row) values() []string {
	return []string{
		row.Name, row.FullAddress, row.Description, row.Tags,
		row.OpeningDate, row.Source, row.LastEdit,
	}
}

// WriteCSV writes the records as CSV with a header row.
func WriteCSV(w io.Writer, records []*model.Record) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, r := range records {
		if err := cw.Write(BuildRow(r).values()); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteJSONL writes the records as one JSON object per line, using the
// same field set as the CSV columns.
func WriteJSONL(w io.Writer, records []*model.Record) error {
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(BuildRow(r)); err != nil {
			return eris.Wrap(err, "export: write jsonl row")
		}
	}
	return nil
}

// Write dispatches on format ("csv" or "jsonl").
func Write(w io.Writer, format string, records []*model.Record) error {
	switch format {
	case "csv":
		return WriteCSV(w, records)
	case "jsonl":
		return WriteJSONL(w, records)
	default:
		return eris.Errorf("export: unsupported format %q", format)
	}
}
