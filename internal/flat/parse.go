package flat

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
)

// Number of comma-separated fields in a record literal without the house
const literalFields = 8

// ParseRecord parses a record given either as a literal
//
//	{name,x,y,area,rooms,isNew,transitMinutes,view[,{houseName,year,flatsPerFloor}]}
//
// or as a JSON object. ID, CreatedAt and OwnerID are left zero. The result
// is validated.
func ParseRecord(s string) (*Flat, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, mdwerror.InvalidInput("record is empty")
	}

	var (
		f   *Flat
		err error
	)
	if IsJSONObject(s) {
		f, err = parseJSONRecord(s)
	} else {
		f, err = ParseLiteral(s)
	}
	if err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// IsJSONObject reports whether s looks like a JSON object rather than a
// record literal
func IsJSONObject(s string) bool {
	if !strings.HasPrefix(s, "{") {
		return false
	}
	rest := strings.TrimLeft(s[1:], " \t")
	return strings.HasPrefix(rest, `"`) || rest == "}"
}

// ParseLiteral parses the comma-separated record literal. The house is
// either a nested brace group or three trailing fields. The result is not
// validated beyond per-field syntax.
func ParseLiteral(s string) (*Flat, error) {
	body := unbrace(strings.TrimSpace(s))
	parts, err := splitTopLevel(body)
	if err != nil {
		return nil, err
	}

	var house []string
	switch len(parts) {
	case literalFields:
	case literalFields + 1:
		nested := strings.TrimSpace(parts[literalFields])
		if !strings.HasPrefix(nested, "{") {
			return nil, fieldCountError(len(parts))
		}
		if house, err = splitTopLevel(unbrace(nested)); err != nil {
			return nil, err
		}
		if len(house) != 3 {
			return nil, mdwerror.Newf("house needs 3 fields (name,year,flatsPerFloor), got %d", len(house)).
				WithCode(mdwerror.CodeInvalidFormat).WithDetail("field", "house")
		}
	case literalFields + 3:
		house = parts[literalFields:]
	default:
		return nil, fieldCountError(len(parts))
	}

	f := &Flat{}
	for i, spec := range RecordFields() {
		if err := spec.Apply(f, parts[i]); err != nil {
			return nil, err
		}
	}
	if house != nil {
		f.House = &House{}
		for i, spec := range HouseFields() {
			if err := spec.Apply(f, house[i]); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

func fieldCountError(n int) error {
	return mdwerror.Newf("expected %d fields plus an optional house, got %d", literalFields, n).
		WithCode(mdwerror.CodeInvalidFormat)
}

func unbrace(s string) string {
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// splitTopLevel splits on commas outside brace groups
func splitTopLevel(s string) ([]string, error) {
	var (
		parts []string
		depth int
		start int
	)
	for i, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return nil, mdwerror.InvalidInput("unbalanced braces in record").WithCode(mdwerror.CodeInvalidFormat)
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, mdwerror.InvalidInput("unbalanced braces in record").WithCode(mdwerror.CodeInvalidFormat)
	}
	return append(parts, s[start:]), nil
}

// FieldSpec describes one user-supplied field. Literal parsing and
// interactive prompting both go through Apply.
type FieldSpec struct {
	Key      string
	Prompt   string
	Optional bool
	Apply    func(f *Flat, raw string) error
}

// RecordFields returns the specs of the literal fields in literal order
func RecordFields() []FieldSpec {
	return []FieldSpec{
		{Key: "name", Prompt: "name (non-empty)", Apply: func(f *Flat, raw string) error {
			name, err := parseName(raw, "name")
			f.Name = name
			return err
		}},
		{Key: "x", Prompt: "coordinate x (integer)", Apply: func(f *Flat, raw string) error {
			v, err := parseInt(raw, "coordinates.x")
			f.Coordinates.X = v
			return err
		}},
		{Key: "y", Prompt: "coordinate y (integer > -318)", Apply: func(f *Flat, raw string) error {
			v, err := parseInt(raw, "coordinates.y")
			if err != nil {
				return err
			}
			c, err := NewCoordinates(f.Coordinates.X, v)
			if err != nil {
				return err
			}
			f.Coordinates = c
			return nil
		}},
		{Key: "area", Prompt: "area (integer > 0)", Apply: func(f *Flat, raw string) error {
			v, err := parsePositive(raw, "area")
			f.Area = v
			return err
		}},
		{Key: "rooms", Prompt: "number of rooms (integer > 0)", Apply: func(f *Flat, raw string) error {
			v, err := parsePositive(raw, "rooms")
			f.Rooms = v
			return err
		}},
		{Key: "isNew", Prompt: "is new (true/false, empty for unknown)", Optional: true, Apply: func(f *Flat, raw string) error {
			v, err := parseOptionalBool(raw, "isNew")
			f.IsNew = v
			return err
		}},
		{Key: "transitMinutes", Prompt: "time to metro by transport (number >= 0)", Apply: func(f *Flat, raw string) error {
			v, err := parseTransit(raw)
			f.TransitMinutes = v
			return err
		}},
		{Key: "view", Prompt: "view (STREET, PARK, BAD, NORMAL)", Apply: func(f *Flat, raw string) error {
			v, err := ParseView(raw)
			f.View = v
			return err
		}},
	}
}

// HouseFields returns the specs of the house fields. Apply expects f.House
// to be non-nil.
func HouseFields() []FieldSpec {
	return []FieldSpec{
		{Key: "house.name", Prompt: "house name (non-empty)", Apply: func(f *Flat, raw string) error {
			name, err := parseName(raw, "house.name")
			f.House.Name = name
			return err
		}},
		{Key: "house.year", Prompt: "house year (integer > 0)", Apply: func(f *Flat, raw string) error {
			v, err := parsePositive(raw, "house.year")
			f.House.Year = int(v)
			return err
		}},
		{Key: "house.flatsPerFloor", Prompt: "flats per floor (integer > 0)", Apply: func(f *Flat, raw string) error {
			v, err := parsePositive(raw, "house.flatsPerFloor")
			f.House.FlatsPerFloor = int(v)
			return err
		}},
	}
}

func parseName(raw, field string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", mdwerror.ValidationFailed(field, "%s must not be empty", field)
	}
	return s, nil
}

func parseInt(raw, field string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, mdwerror.InvalidInput("%s: %q is not an integer", field, strings.TrimSpace(raw)).WithDetail("field", field)
	}
	return v, nil
}

func parsePositive(raw, field string) (int64, error) {
	s := strings.TrimSpace(raw)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, mdwerror.InvalidInput("%s: %q is not an integer", field, s).WithDetail("field", field)
	}
	if v <= 0 {
		return 0, mdwerror.ValidationFailed(field, "%s must be positive, got %d", field, v)
	}
	return v, nil
}

func parseOptionalBool(raw, field string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "null":
		return nil, nil
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	default:
		return nil, mdwerror.InvalidInput("%s: expected true, false or null, got %q", field, strings.TrimSpace(raw)).
			WithDetail("field", field)
	}
}

func parseTransit(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, mdwerror.InvalidInput("transitMinutes: %q is not a number", s).WithDetail("field", "transitMinutes")
	}
	if v < 0 || v != v {
		return 0, mdwerror.ValidationFailed("transitMinutes", "time to metro must be >= 0, got %v", v)
	}
	return v, nil
}

// jsonRecord is the JSON form accepted by add and friends
type jsonRecord struct {
	Name        string `json:"name"`
	Coordinates struct {
		X int `json:"x"`
		Y int `json:"y"`
	} `json:"coordinates"`
	Area          int64      `json:"area"`
	NumberOfRooms int64      `json:"numberOfRooms"`
	New           *bool      `json:"new"`
	TransitTime   float64    `json:"timeToMetroByTransport"`
	View          string     `json:"view"`
	House         *jsonHouse `json:"house"`
}

type jsonHouse struct {
	Name                 string `json:"name"`
	Year                 int    `json:"year"`
	NumberOfFlatsOnFloor int    `json:"numberOfFlatsOnFloor"`
}

func parseJSONRecord(s string) (*Flat, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.DisallowUnknownFields()

	var rec jsonRecord
	if err := dec.Decode(&rec); err != nil {
		return nil, mdwerror.Wrap(err, "invalid JSON record").WithCode(mdwerror.CodeInvalidFormat)
	}

	view, err := ParseView(rec.View)
	if err != nil {
		return nil, err
	}
	f := &Flat{
		Name:           rec.Name,
		Coordinates:    Coordinates{X: rec.Coordinates.X, Y: rec.Coordinates.Y},
		Area:           rec.Area,
		Rooms:          rec.NumberOfRooms,
		IsNew:          rec.New,
		TransitMinutes: rec.TransitTime,
		View:           view,
	}
	if rec.House != nil {
		f.House = &House{Name: rec.House.Name, Year: rec.House.Year, FlatsPerFloor: rec.House.NumberOfFlatsOnFloor}
	}
	return f, nil
}
