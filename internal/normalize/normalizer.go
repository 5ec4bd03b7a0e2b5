// Package normalize maps per-agency rows onto model.Project.
package normalize

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/projectmerge/internal/model"
)

// Result is the outcome of normalizing one data row.
type Result struct {
	Row     int // 1-based, header excluded
	Project *model.Project
	Err     error // SchemaError, FieldError, or ErrRowFiltered
}

// Binding is a schema bound to one file's header.
type Binding struct {
	Schema *Schema
	File   string
	Header []string // cleaned header, as it should be written back out

	// Strict makes unparseable coordinates and negative amounts an error
	// instead of treating the value as absent. Used for the canonical
	// snapshot, whose records anchor the index.
	Strict bool

	decodeHeader []string
}

// Bind checks header against the schema's required columns and prepares a
// decoder binding for the file.
func (s *Schema) Bind(file string, header []string) (*Binding, error) {
	if err := s.CheckHeader(file, header); err != nil {
		return nil, err
	}
	clean := make([]string, len(header))
	decode := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		clean[i] = cleanHeader(h)
		// Repeated column names keep their first occurrence bound.
		name := clean[i]
		if n := seen[name]; n > 0 {
			name = name + "#" + strconv.Itoa(n+1)
		}
		seen[clean[i]]++
		decode[i] = name
	}
	return &Binding{Schema: s, File: file, Header: clean, decodeHeader: decode}, nil
}

// Normalize maps a single row with the given 1-based row number.
func (b *Binding) Normalize(row []string, rowNum int) (*model.Project, error) {
	res, err := b.decode([][]string{row}, rowNum)
	if err != nil {
		return nil, err
	}
	return res[0].Project, res[0].Err
}

// Records maps every row in order. The returned error is non-nil only when
// the decoder itself cannot be built; per-row failures are reported in
// each Result.
func (b *Binding) Records(rows [][]string) ([]Result, error) {
	return b.decode(rows, 1)
}

func (b *Binding) decode(rows [][]string, firstRow int) ([]Result, error) {
	dec, err := csvutil.NewDecoder(&sliceReader{rows: rows, width: len(b.decodeHeader)}, b.decodeHeader...)
	if err != nil {
		return nil, eris.Wrapf(err, "normalize: bind %s decoder for %s", b.Schema.Name, b.File)
	}

	results := make([]Result, 0, len(rows))
	for i := range rows {
		rowNum := firstRow + i
		src := b.Schema.newRow()
		if err := dec.Decode(src); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			results = append(results, Result{Row: rowNum, Err: &SchemaError{
				Schema: b.Schema.Name, File: b.File, Row: rowNum, Reason: err.Error(),
			}})
			continue
		}

		rc := rowContext{File: b.File, Row: rowNum}
		d, err := src.draft(rc)
		if err != nil {
			results = append(results, Result{Row: rowNum, Err: err})
			continue
		}

		p, err := b.finish(d, rc, dec.Record())
		results = append(results, Result{Row: rowNum, Project: p, Err: err})
	}
	return results, nil
}

// finish converts a draft into a validated Project.
func (b *Binding) finish(d draft, rc rowContext, record []string) (*model.Project, error) {
	p := &model.Project{
		ID:            d.ID,
		Name:          strings.TrimSpace(d.Name),
		Description:   strings.TrimSpace(d.Description),
		FundingSource: d.Funding,
		Agency:        strings.TrimSpace(d.Agency),
		Bureau:        strings.TrimSpace(d.Bureau),
		ProgramName:   strings.TrimSpace(d.ProgramName),
		ProgramID:     strings.TrimSpace(d.ProgramID),
		Category:      strings.TrimSpace(d.Category),
		Subcategory:   strings.TrimSpace(d.Subcategory),
		City:          strings.TrimSpace(d.City),
		County:        strings.TrimSpace(d.County),
		Tribe:         strings.TrimSpace(d.Tribe),
		District:      strings.TrimSpace(d.District),
		Link:          strings.TrimSpace(d.Link),
		Precision:     model.PrecisionNone,
		Source:        model.Provenance{Schema: b.Schema.Name, File: b.File, Row: rc.Row},
		Raw:           make(map[string]string, len(b.Header)),
	}
	for i, h := range b.Header {
		if _, dup := p.Raw[h]; dup || i >= len(record) {
			continue
		}
		p.Raw[h] = record[i]
	}
	p.NameNorm = Text(p.Name)
	p.DescriptionNorm = Text(p.Description)
	p.State, p.StateKnown = State(d.State)

	if err := b.locate(p, d, rc); err != nil {
		return nil, err
	}

	p.Amount = Amount(d.Amount)
	if b.Strict && !p.Amount.Known && negativeAmount(d.Amount) {
		return nil, &FieldError{Row: rc.Row, Field: "amount", Value: d.Amount, Err: errOutOfRange}
	}

	if b.Strict {
		p.Status = model.StatusConfirmed
		return p, nil
	}

	if p.Name == "" {
		return nil, &SchemaError{Schema: b.Schema.Name, File: b.File, Row: rc.Row, Reason: "missing project name"}
	}
	if !p.HasLocation() && p.State == "" && p.DescriptionNorm == "" {
		return nil, &SchemaError{Schema: b.Schema.Name, File: b.File, Row: rc.Row, Reason: "no geographic or textual anchor"}
	}
	return p, nil
}

// locate resolves coordinates, falling back to the approximate pair.
func (b *Binding) locate(p *model.Project, d draft, rc rowContext) error {
	pt, err := Location(d.Lat, d.Lon)
	if err != nil {
		if b.Strict {
			var fe *FieldError
			if errors.As(err, &fe) {
				fe.Row = rc.Row
			}
			return err
		}
		zap.L().Debug("normalize: dropping unusable coordinates",
			zap.String("schema", b.Schema.Name),
			zap.String("file", b.File),
			zap.Int("row", rc.Row),
			zap.Error(err),
		)
		pt = nil
	}
	if pt != nil {
		p.Location = pt
		p.Precision = precisionFor(d.LocationType)
		return nil
	}

	if d.AltLat == "" && d.AltLon == "" {
		return nil
	}
	if alt, err := Location(d.AltLat, d.AltLon); err == nil && alt != nil {
		p.Location = alt
		p.Precision = model.PrecisionApproximate
	}
	return nil
}

// precisionFor reads a "Project Location Type" value.
func precisionFor(locationType string) model.LocationPrecision {
	lt := strings.ToLower(locationType)
	if containsAny(lt, "hq", "headquarter", "approximate", "centroid", "recipient") {
		return model.PrecisionApproximate
	}
	return model.PrecisionPrecise
}

func negativeAmount(raw string) bool {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		return true
	}
	s = strings.TrimLeft(s, "$ ")
	return len(s) > 1 && s[0] == '-'
}

// sliceReader feeds rows to csvutil, padding or truncating each to the
// header width.
type sliceReader struct {
	rows  [][]string
	width int
	next  int
}

func (r *sliceReader) Read() ([]string, error) {
	if r.next >= len(r.rows) {
		return nil, io.EOF
	}
	row := r.rows[r.next]
	r.next++
	if len(row) == r.width {
		return row, nil
	}
	out := make([]string, r.width)
	copy(out, row)
	return out, nil
}
