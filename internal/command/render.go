package command

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/msto63/flatset/foundation/utils/stringx"
	"github.com/msto63/flatset/internal/flat"
	"github.com/msto63/flatset/internal/output"
)

const maxNameWidth = 24

var flatHeaders = []string{"ID", "NAME", "X", "Y", "CREATED", "AREA", "ROOMS", "NEW", "METRO", "VIEW", "HOUSE", "OWNER"}

// renderFlats draws flats as a table
func renderFlats(styles output.Styles, flats []*flat.Flat) string {
	rows := make([][]string, 0, len(flats))
	for _, f := range flats {
		rows = append(rows, flatRow(f))
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styles.Muted).
		Headers(flatHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.Heading.Padding(0, 1)
			}
			return styles.Cell
		})
	return t.Render()
}

func flatRow(f *flat.Flat) []string {
	isNew := "-"
	if f.IsNew != nil {
		isNew = strconv.FormatBool(*f.IsNew)
	}
	house := "-"
	if f.House != nil {
		house = stringx.Truncate(f.House.String(), maxNameWidth, "…")
	}
	owner := "-"
	if f.OwnerID != nil {
		owner = strconv.FormatInt(*f.OwnerID, 10)
	}
	return []string{
		strconv.FormatInt(f.ID, 10),
		stringx.Truncate(f.Name, maxNameWidth, "…"),
		strconv.Itoa(f.Coordinates.X),
		strconv.Itoa(f.Coordinates.Y),
		f.CreatedAt.Local().Format(time.DateTime),
		strconv.FormatInt(f.Area, 10),
		strconv.FormatInt(f.Rooms, 10),
		isNew,
		strconv.FormatFloat(f.TransitMinutes, 'g', -1, 64),
		f.View.String(),
		house,
		owner,
	}
}

// keyValues renders aligned "label: value" lines
func keyValues(styles output.Styles, pairs [][2]string) string {
	width := 0
	for _, p := range pairs {
		width = max(width, len(p[0])+1)
	}
	var b strings.Builder
	for _, p := range pairs {
		b.WriteString(styles.Label.Render(stringx.PadRight(p[0]+":", width, ' ')))
		b.WriteString(" ")
		b.WriteString(p[1])
		b.WriteString("\n")
	}
	return b.String()
}

func idList(flats []*flat.Flat) string {
	ids := make([]string, len(flats))
	for i, f := range flats {
		ids[i] = fmt.Sprintf("#%d", f.ID)
	}
	return strings.Join(ids, ", ")
}
