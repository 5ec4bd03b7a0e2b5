package normalize

import (
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// Schema describes one known input layout.
type Schema struct {
	Name        string   // short name, also the "Data Source" tag
	Description string   // human-readable source
	Tokens      []string // lower-case filename tokens that select this schema
	Required    []string // header columns that must be present

	newRow func() sourceRow
}

// Baseline is the canonical database schema.
const Baseline = "WH"

var registry = []*Schema{
	{
		Name:        Baseline,
		Description: "White House baseline (canonical)",
		Tokens:      []string{"wh", "main", "canonical", "baseline"},
		Required:    []string{"Unique ID", "Project Name", "Latitude", "Longitude", "State", "Funding Amount", "Funding Source", "Agency Name"},
		newRow:      func() sourceRow { return &whRow{} },
	},
	{
		Name:        "BIA",
		Description: "Bureau of Indian Affairs",
		Tokens:      []string{"bia"},
		Required:    []string{"project", "POINT_Y", "POINT_X", "location_n", "proj_am"},
		newRow:      func() sourceRow { return &biaRow{} },
	},
	{
		Name:        "DOE",
		Description: "Department of Energy",
		Tokens:      []string{"doe"},
		Required:    []string{"project", "latitude", "longitude", "state", "pubinvest"},
		newRow:      func() sourceRow { return &doeRow{} },
	},
	{
		Name:        "DOI",
		Description: "Department of the Interior",
		Tokens:      []string{"doi"},
		Required:    []string{"Project Title", "Latitude", "Longitude", "State or US Territory", "Total Announced Funding Amount"},
		newRow:      func() sourceRow { return &doiRow{} },
	},
	{
		Name:        "EPA",
		Description: "Environmental Protection Agency",
		Tokens:      []string{"epa"},
		Required:    []string{"Project Title", "Latitude", "Longitude", "State", "Award Amount", "Funding Source"},
		newRow:      func() sourceRow { return &epaRow{} },
	},
	{
		Name:        "NOAA",
		Description: "National Oceanic and Atmospheric Administration",
		Tokens:      []string{"noaa"},
		Required:    []string{"Project Title", "Total Award Amount", "Funding Statute"},
		newRow:      func() sourceRow { return &noaaRow{} },
	},
	{
		Name:        "USBR",
		Description: "Bureau of Reclamation",
		Tokens:      []string{"usbr"},
		Required:    []string{"ProjectName", "Latitude", "Longitude", "State", "Announced"},
		newRow:      func() sourceRow { return &usbrRow{} },
	},
}

// Schemas returns the registered schemas in registration order.
func Schemas() []*Schema {
	out := make([]*Schema, len(registry))
	copy(out, registry)
	return out
}

// Lookup finds a schema by name, case-insensitively.
func Lookup(name string) (*Schema, error) {
	for _, s := range registry {
		if strings.EqualFold(s.Name, strings.TrimSpace(name)) {
			return s, nil
		}
	}
	return nil, &UnknownSchemaError{Source: name}
}

// Detect chooses a schema from a file name. Whole tokens of the base name
// are tried first ("2024_doe_projects.csv"), agency schemas before the
// baseline; agency schemas then fall back to a substring match in
// registration order. The baseline is only chosen by token.
func Detect(path string) (*Schema, error) {
	base := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	tokens := strings.FieldsFunc(base, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}

	match := func(agency bool, hit func(tok string) bool) *Schema {
		for _, s := range registry {
			if (s.Name != Baseline) != agency {
				continue
			}
			for _, tok := range s.Tokens {
				if hit(tok) {
					return s
				}
			}
		}
		return nil
	}

	byToken := func(tok string) bool { return tokenSet[tok] }
	if s := match(true, byToken); s != nil {
		return s, nil
	}
	if s := match(false, byToken); s != nil {
		return s, nil
	}
	if s := match(true, func(tok string) bool { return strings.Contains(base, tok) }); s != nil {
		return s, nil
	}
	return nil, &UnknownSchemaError{Source: path}
}

// ResolveInput splits an input argument into schema and path. An explicit
// "schema:path" prefix wins over filename detection.
func ResolveInput(arg string) (*Schema, string, error) {
	if name, path, ok := strings.Cut(arg, ":"); ok && path != "" {
		if s, err := Lookup(name); err == nil {
			return s, path, nil
		}
	}
	s, err := Detect(arg)
	if err != nil {
		return nil, arg, err
	}
	return s, arg, nil
}

// CheckHeader returns an UnknownSchemaError listing required columns absent
// from header. Header names are compared after trimming.
func (s *Schema) CheckHeader(source string, header []string) error {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[cleanHeader(h)] = true
	}
	var missing []string
	for _, req := range s.Required {
		if !have[req] {
			missing = append(missing, req)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &UnknownSchemaError{Source: source, Schema: s.Name, Missing: missing}
}

// cleanHeader trims whitespace and a leading byte-order mark.
func cleanHeader(h string) string {
	return strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
}
