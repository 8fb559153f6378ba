package interchange

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Columns is the header row written by WriteTSV.
var Columns = []string{"display_id", "question", "answer", "explanation", "due_date", "interval", "reps", "ef"}

var ErrNoHeader = errors.New("tsv header has no question column")

var validate = validator.New(validator.WithRequiredStructEnabled())

// RowError reports a data row that was skipped.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e RowError) Unwrap() error { return e.Err }

// ReadTSV reads tab-separated records. The first row names the columns;
// unknown columns are ignored and absent ones read as empty. Rows that fail
// validation are skipped and returned as RowErrors.
func ReadTSV(r io.Reader) ([]Record, []RowError, error) {
	cr := newReader(r)

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, ErrNoHeader
		}
		return nil, nil, fmt.Errorf("failed to read tsv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := index["question"]; !ok {
		return nil, nil, ErrNoHeader
	}
	get := func(row []string, col string) string {
		if i, ok := index[col]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	var (
		records []Record
		skipped []RowError
	)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped = append(skipped, RowError{Line: perr.StartLine, Err: perr.Err})
				continue
			}
			return records, skipped, fmt.Errorf("failed to read tsv: %w", err)
		}
		line, _ := cr.FieldPos(0)

		rec := Record{
			DisplayID:   get(row, "display_id"),
			Question:    strings.TrimSpace(get(row, "question")),
			Answer:      get(row, "answer"),
			Explanation: get(row, "explanation"),
			DueDate:     get(row, "due_date"),
			Interval:    get(row, "interval"),
			Reps:        get(row, "reps"),
			EF:          get(row, "ef"),
		}
		if err := validate.Struct(rec); err != nil {
			skipped = append(skipped, RowError{Line: line, Err: err})
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

// WriteTSV writes a header row followed by one row per record.
func WriteTSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{rec.DisplayID, rec.Question, rec.Answer, rec.Explanation, rec.DueDate, rec.Interval, rec.Reps, rec.EF}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}
