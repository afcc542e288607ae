// ============================================================================
// flatset - Flat collection manager
// ============================================================================
//
// Package:     flat
// Description: Flat record model, validation and total ordering
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package flat

import (
	"fmt"
	"math"
	"strings"
	"time"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
)

// MinY is the exclusive lower bound for the y coordinate
const MinY = -318

// View describes what a flat looks out on. Declaration order is the sort order.
type View int

const (
	ViewStreet View = iota
	ViewPark
	ViewBad
	ViewNormal
)

var viewNames = [...]string{"STREET", "PARK", "BAD", "NORMAL"}

// Views lists all views in ascending order
func Views() []View {
	return []View{ViewStreet, ViewPark, ViewBad, ViewNormal}
}

func (v View) String() string {
	if v < 0 || int(v) >= len(viewNames) {
		return fmt.Sprintf("View(%d)", int(v))
	}
	return viewNames[v]
}

// Valid reports whether v is one of the declared views
func (v View) Valid() bool {
	return v >= ViewStreet && v <= ViewNormal
}

// ParseView parses a view name case-insensitively
func ParseView(s string) (View, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range viewNames {
		if n == name {
			return View(i), nil
		}
	}
	return 0, mdwerror.InvalidInput("invalid view %q, expected one of %s", s, strings.Join(viewNames[:], ", ")).
		WithDetail("field", "view")
}

// MarshalText implements encoding.TextMarshaler
func (v View) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("invalid view %d", int(v))
	}
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (v *View) UnmarshalText(text []byte) error {
	parsed, err := ParseView(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Coordinates of a flat. Y must be greater than MinY.
type Coordinates struct {
	X int
	Y int
}

// NewCoordinates validates y and never clamps
func NewCoordinates(x, y int) (Coordinates, error) {
	if y <= MinY {
		return Coordinates{}, mdwerror.ValidationFailed("coordinates.y", "y must be greater than %d, got %d", MinY, y)
	}
	return Coordinates{X: x, Y: y}, nil
}

// House the flat belongs to. Two houses are equal when all fields are equal.
type House struct {
	Name          string
	Year          int
	FlatsPerFloor int
}

// Validate checks the house fields
func (h *House) Validate() error {
	if strings.TrimSpace(h.Name) == "" {
		return mdwerror.ValidationFailed("house.name", "house name must not be empty")
	}
	if h.Year <= 0 {
		return mdwerror.ValidationFailed("house.year", "house year must be positive, got %d", h.Year)
	}
	if h.FlatsPerFloor <= 0 {
		return mdwerror.ValidationFailed("house.flatsPerFloor", "flats per floor must be positive, got %d", h.FlatsPerFloor)
	}
	return nil
}

func (h *House) String() string {
	if h == nil {
		return "-"
	}
	return fmt.Sprintf("%s (%d, %d flats/floor)", h.Name, h.Year, h.FlatsPerFloor)
}

// Flat is one record of the collection
type Flat struct {
	ID             int64
	Name           string
	Coordinates    Coordinates
	CreatedAt      time.Time
	Area           int64
	Rooms          int64
	IsNew          *bool
	TransitMinutes float64
	View           View
	House          *House
	OwnerID        *int64
}

// Validate checks every field constraint except the ID, which the
// collection assigns.
func (f *Flat) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return mdwerror.ValidationFailed("name", "name must not be empty")
	}
	if f.Coordinates.Y <= MinY {
		return mdwerror.ValidationFailed("coordinates.y", "y must be greater than %d, got %d", MinY, f.Coordinates.Y)
	}
	if f.Area <= 0 {
		return mdwerror.ValidationFailed("area", "area must be positive, got %d", f.Area)
	}
	if f.Rooms <= 0 {
		return mdwerror.ValidationFailed("rooms", "number of rooms must be positive, got %d", f.Rooms)
	}
	if math.IsNaN(f.TransitMinutes) || math.IsInf(f.TransitMinutes, 0) || f.TransitMinutes < 0 {
		return mdwerror.ValidationFailed("transitMinutes", "time to metro must be a non-negative number, got %v", f.TransitMinutes)
	}
	if !f.View.Valid() {
		return mdwerror.ValidationFailed("view", "invalid view %d", int(f.View))
	}
	if f.House != nil {
		if err := f.House.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy; the house and optional values are never shared
func (f *Flat) Clone() *Flat {
	if f == nil {
		return nil
	}
	c := *f
	if f.IsNew != nil {
		v := *f.IsNew
		c.IsNew = &v
	}
	if f.House != nil {
		h := *f.House
		c.House = &h
	}
	if f.OwnerID != nil {
		v := *f.OwnerID
		c.OwnerID = &v
	}
	return &c
}

// Equal reports whether all fields are equal
func (f *Flat) Equal(o *Flat) bool {
	return Compare(f, o) == 0
}

// OwnedBy reports whether the flat belongs to the given user
func (f *Flat) OwnedBy(userID int64) bool {
	return f.OwnerID != nil && *f.OwnerID == userID
}

func (f *Flat) String() string {
	isNew := "-"
	if f.IsNew != nil {
		isNew = fmt.Sprintf("%t", *f.IsNew)
	}
	owner := "-"
	if f.OwnerID != nil {
		owner = fmt.Sprintf("%d", *f.OwnerID)
	}
	return fmt.Sprintf("#%d %q at (%d, %d), %d m², %d rooms, new=%s, metro=%gmin, view=%s, house=%s, owner=%s, created=%s",
		f.ID, f.Name, f.Coordinates.X, f.Coordinates.Y, f.Area, f.Rooms, isNew,
		f.TransitMinutes, f.View, f.House, owner, f.CreatedAt.Format(time.RFC3339))
}

// Bool returns a pointer to b
func Bool(b bool) *bool { return &b }

// Int64 returns a pointer to v
func Int64(v int64) *int64 { return &v }
