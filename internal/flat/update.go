package flat

import (
	"bytes"
	"encoding/json"
	"strings"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
)

// Patch keys are matched case-insensitively; the map folds aliases
var patchKeys = map[string]string{
	"name":                   "name",
	"coordinates":            "coordinates",
	"area":                   "area",
	"numberofrooms":          "rooms",
	"rooms":                  "rooms",
	"new":                    "isNew",
	"isnew":                  "isNew",
	"timetometrobytransport": "transit",
	"transitminutes":         "transit",
	"view":                   "view",
	"house":                  "house",
}

var houseKeys = map[string]string{
	"name":                 "name",
	"year":                 "year",
	"numberofflatsonfloor": "flatsPerFloor",
	"flatsperfloor":        "flatsPerFloor",
}

// ApplyPatch applies a partial JSON update to a copy of f and returns the
// validated copy. Identity fields (ID, CreatedAt, OwnerID) never change. Any
// unknown key fails the whole update.
func ApplyPatch(f *Flat, payload string) (*Flat, error) {
	fields, err := decodeObject([]byte(payload), "update")
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, mdwerror.InvalidInput("update payload has no fields")
	}

	out := f.Clone()
	for key, raw := range fields {
		canonical, ok := patchKeys[strings.ToLower(key)]
		if !ok {
			return nil, mdwerror.InvalidInput("unknown field %q", key).WithDetail("field", key)
		}
		if err := applyPatchField(out, canonical, raw); err != nil {
			return nil, err
		}
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func applyPatchField(f *Flat, key string, raw json.RawMessage) error {
	switch key {
	case "name":
		return decodeField(raw, key, &f.Name)
	case "area":
		return decodeField(raw, key, &f.Area)
	case "rooms":
		return decodeField(raw, key, &f.Rooms)
	case "transit":
		return decodeField(raw, "transitMinutes", &f.TransitMinutes)
	case "isNew":
		if isNull(raw) {
			f.IsNew = nil
			return nil
		}
		var v bool
		if err := decodeField(raw, key, &v); err != nil {
			return err
		}
		f.IsNew = &v
		return nil
	case "view":
		var name string
		if err := decodeField(raw, key, &name); err != nil {
			return err
		}
		v, err := ParseView(name)
		if err != nil {
			return err
		}
		f.View = v
		return nil
	case "coordinates":
		return patchCoordinates(f, raw)
	case "house":
		return patchHouse(f, raw)
	}
	return nil
}

func patchCoordinates(f *Flat, raw json.RawMessage) error {
	fields, err := decodeObject(raw, "coordinates")
	if err != nil {
		return err
	}
	for key, v := range fields {
		switch strings.ToLower(key) {
		case "x":
			if err := decodeField(v, "coordinates.x", &f.Coordinates.X); err != nil {
				return err
			}
		case "y":
			if err := decodeField(v, "coordinates.y", &f.Coordinates.Y); err != nil {
				return err
			}
		default:
			return mdwerror.InvalidInput("unknown field %q in coordinates", key).WithDetail("field", "coordinates."+key)
		}
	}
	return nil
}

func patchHouse(f *Flat, raw json.RawMessage) error {
	if isNull(raw) {
		f.House = nil
		return nil
	}
	fields, err := decodeObject(raw, "house")
	if err != nil {
		return err
	}
	if f.House == nil {
		f.House = &House{}
	}
	for key, v := range fields {
		canonical, ok := houseKeys[strings.ToLower(key)]
		if !ok {
			return mdwerror.InvalidInput("unknown field %q in house", key).WithDetail("field", "house."+key)
		}
		var dst *int
		switch canonical {
		case "name":
			if err := decodeField(v, "house.name", &f.House.Name); err != nil {
				return err
			}
			continue
		case "year":
			dst = &f.House.Year
		case "flatsPerFloor":
			dst = &f.House.FlatsPerFloor
		}
		if err := decodeField(v, "house."+canonical, dst); err != nil {
			return err
		}
	}
	return nil
}

func decodeObject(data []byte, what string) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, mdwerror.InvalidInput("%s: expected a JSON object", what).WithCode(mdwerror.CodeInvalidFormat)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, mdwerror.Wrapf(err, "%s: invalid JSON", what).WithCode(mdwerror.CodeInvalidFormat)
	}
	return fields, nil
}

func decodeField(raw json.RawMessage, field string, dst interface{}) error {
	if isNull(raw) {
		return mdwerror.InvalidInput("%s must not be null", field).WithDetail("field", field)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return mdwerror.Wrapf(err, "%s: invalid value %s", field, string(raw)).
			WithCode(mdwerror.CodeInvalidInput).WithDetail("field", field)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// Replace copies the user-editable fields of src onto a copy of dst,
// keeping dst's identity (ID, CreatedAt, OwnerID).
func Replace(dst, src *Flat) *Flat {
	out := src.Clone()
	out.ID = dst.ID
	out.CreatedAt = dst.CreatedAt
	out.OwnerID = nil
	if dst.OwnerID != nil {
		out.OwnerID = Int64(*dst.OwnerID)
	}
	return out
}
