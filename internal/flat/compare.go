package flat

import "cmp"

// Compare is the total order over flats. Fields are compared in declaration
// order; absent optional values (IsNew, House, OwnerID) sort before present
// ones and false sorts before true. Compare returns 0 exactly when all fields
// are equal.
func Compare(a, b *Flat) int {
	switch {
	case a == b:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if c := cmp.Compare(a.ID, b.ID); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	if c := compareCoordinates(a.Coordinates, b.Coordinates); c != 0 {
		return c
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Area, b.Area); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Rooms, b.Rooms); c != 0 {
		return c
	}
	if c := compareOptional(a.IsNew, b.IsNew, compareBool); c != 0 {
		return c
	}
	if c := cmp.Compare(a.TransitMinutes, b.TransitMinutes); c != 0 {
		return c
	}
	if c := cmp.Compare(a.View, b.View); c != 0 {
		return c
	}
	if c := CompareHouses(a.House, b.House); c != 0 {
		return c
	}
	return compareOptional(a.OwnerID, b.OwnerID, cmp.Compare[int64])
}

// CompareHouses orders houses by name, year, flats per floor. nil sorts first.
func CompareHouses(a, b *House) int {
	return compareOptional(a, b, func(x, y House) int {
		if c := cmp.Compare(x.Name, y.Name); c != 0 {
			return c
		}
		if c := cmp.Compare(x.Year, y.Year); c != 0 {
			return c
		}
		return cmp.Compare(x.FlatsPerFloor, y.FlatsPerFloor)
	})
}

func compareCoordinates(a, b Coordinates) int {
	if c := cmp.Compare(a.X, b.X); c != 0 {
		return c
	}
	return cmp.Compare(a.Y, b.Y)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func compareOptional[T any](a, b *T, compare func(x, y T) int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return compare(*a, *b)
	}
}
