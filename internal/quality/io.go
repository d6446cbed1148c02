package quality

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// ReadRows loads an input dataset. The format is chosen by extension:
// .csv, .jsonl/.ndjson, or .json (a list, or an object with a data/items
// list).
func ReadRows(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "quality: open %s", path)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(f)
	case ".jsonl", ".ndjson":
		return readJSONL(f)
	case ".json":
		return readJSON(f)
	default:
		return nil, eris.Errorf("quality: unsupported input format %s", filepath.Ext(path))
	}
}

func readCSV(r io.Reader) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	all, err := cr.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "quality: read csv")
	}
	if len(all) == 0 {
		return nil, nil
	}

	header := all[0]
	rows := make([]map[string]string, 0, len(all)-1)
	for _, rec := range all[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func readJSONL(r io.Reader) ([]map[string]string, error) {
	var rows []map[string]string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		row, err := decodeRow([]byte(line))
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, eris.Wrap(scanner.Err(), "quality: read jsonl")
}

func readJSON(r io.Reader) ([]map[string]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "quality: read json")
	}

	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil {
		return decodeRows(list)
	}

	var wrapper struct {
		Data  []json.RawMessage `json:"data"`
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "quality: parse json")
	}
	if wrapper.Data != nil {
		return decodeRows(wrapper.Data)
	}
	return decodeRows(wrapper.Items)
}

func decodeRows(raw []json.RawMessage) ([]map[string]string, error) {
	rows := make([]map[string]string, 0, len(raw))
	for _, msg := range raw {
		row, err := decodeRow(msg)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// decodeRow flattens a JSON object to string values; non-string scalars
// are rendered with their JSON encoding.
func decodeRow(data []byte) (map[string]string, error) {
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, eris.Wrap(err, "quality: parse row")
	}

	row := make(map[string]string, len(generic))
	for k, v := range generic {
		switch val := v.(type) {
		case string:
			row[k] = val
		case nil:
			row[k] = ""
		default:
			enc, err := json.Marshal(val)
			if err != nil {
				return nil, eris.Wrapf(err, "quality: encode field %s", k)
			}
			row[k] = string(enc)
		}
	}
	return row, nil
}

// WriteRows writes annotated rows. CSV output uses the sorted union of all
// keys as the header; any other extension writes JSONL.
func WriteRows(path string, rows []map[string]string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "quality: create %s", path)
	}
	defer f.Close()

	if strings.ToLower(filepath.Ext(path)) == ".csv" {
		return writeCSV(f, rows)
	}
	return writeJSONL(f, rows)
}

func writeCSV(w io.Writer, rows []map[string]string) error {
	keySet := make(map[string]struct{})
	for _, row := range rows {
		for k := range row {
			keySet[k] = struct{}{}
		}
	}
	header := make([]string, 0, len(keySet))
	for k := range keySet {
		header = append(header, k)
	}
	sort.Strings(header)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "quality: write csv header")
	}
	for _, row := range rows {
		rec := make([]string, len(header))
		for i, col := range header {
			rec[i] = row[col]
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrap(err, "quality: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "quality: flush csv")
}

func writeJSONL(w io.Writer, rows []map[string]string) error {
	enc := json.NewEncoder(w)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return eris.Wrap(err, "quality: write jsonl row")
		}
	}
	return nil
}

// llmPrompt asks a reviewer model for the same four-way decision the rule
// engine makes.
const llmPrompt = "Classify this recommendation into one of: Keep, Remove, " +
	"Needs more information, Needs editing. Provide a short reason."

// EmitLLMBatch writes one JSONL review request per record for offline
// model-assisted review.
func EmitLLMBatch(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	for _, r := range records {
		payload := map[string]string{
			"name":        r.Name,
			"description": r.Description,
			"address":     r.Address,
			"tags":        r.Tags,
			"source":      r.Source,
			"prompt":      llmPrompt,
		}
		if err := enc.Encode(payload); err != nil {
			return eris.Wrap(err, "quality: write llm batch row")
		}
	}
	return nil
}
