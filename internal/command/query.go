package command

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
	"unsafe"

	"github.com/msto63/flatset/foundation/utils/filex"
	"github.com/msto63/flatset/foundation/utils/stringx"
	"github.com/msto63/flatset/internal/collection"
	"github.com/msto63/flatset/internal/flat"
)

var categoryOrder = []string{CategoryQuery, CategoryModify, CategoryPersistence, CategorySession, "other"}

type helpCommand struct{ meta }

func newHelp() Command {
	return &helpCommand{meta{
		name:        "help",
		usage:       "help",
		description: "list the available commands",
		category:    CategorySession,
	}}
}

func (c *helpCommand) Execute(ctx context.Context, env *Env, arg string) error {
	groups := make(map[string][]Command)
	for _, cmd := range env.Registry.Commands() {
		category := "other"
		if cc, ok := cmd.(Categorized); ok {
			category = cc.Category()
		}
		groups[category] = append(groups[category], cmd)
	}

	width := 0
	for _, cmd := range env.Registry.Commands() {
		width = max(width, len(cmd.Usage()))
	}

	styles := env.Out.Styles()
	var b strings.Builder
	for _, category := range categoryOrder {
		cmds := groups[category]
		if len(cmds) == 0 {
			continue
		}
		b.WriteString(styles.Heading.Render(category))
		b.WriteString("\n")
		for _, cmd := range cmds {
			line := "  " + stringx.PadRight(cmd.Usage(), width, ' ') + "  " + cmd.Description()
			if a, ok := cmd.(Aliased); ok && len(a.Aliases()) > 0 {
				line += styles.Muted.Render(" (alias: " + strings.Join(a.Aliases(), ", ") + ")")
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	env.Out.Print(b.String())
	return nil
}

type infoCommand struct{ meta }

func newInfo() Command {
	return &infoCommand{meta{
		name:        "info",
		usage:       "info",
		description: "print collection type, initialisation time, size and persistence target",
		category:    CategoryQuery,
	}}
}

func (c *infoCommand) Execute(ctx context.Context, env *Env, arg string) error {
	snapshot := env.Collection.Snapshot()

	target := "none"
	if env.Store != nil {
		target = env.Store.Describe()
	}
	env.Out.Print(keyValues(env.Out.Styles(), [][2]string{
		{"Type", collection.TypeName},
		{"Initialised", env.Collection.CreatedAt().Format(time.RFC3339)},
		{"Elements", fmt.Sprint(len(snapshot))},
		{"Highest ID", fmt.Sprint(env.Collection.HighWater())},
		{"Approx. memory", filex.FormatSize(approxSize(snapshot))},
		{"Persistence", target},
	}))
	return nil
}

func approxSize(flats []*flat.Flat) int64 {
	var total int64
	for _, f := range flats {
		total += int64(unsafe.Sizeof(*f)) + int64(len(f.Name))
		if f.House != nil {
			total += int64(unsafe.Sizeof(*f.House)) + int64(len(f.House.Name))
		}
		if f.IsNew != nil {
			total++
		}
		if f.OwnerID != nil {
			total += 8
		}
	}
	return total
}

type showCommand struct{ meta }

func newShow() Command {
	return &showCommand{meta{
		name:        "show",
		usage:       "show",
		description: "print all flats ordered by id",
		category:    CategoryQuery,
	}}
}

func (c *showCommand) Execute(ctx context.Context, env *Env, arg string) error {
	flats := env.Collection.Snapshot()
	if len(flats) == 0 {
		env.Out.Print("collection is empty")
		return nil
	}
	env.Out.Print(renderFlats(env.Out.Styles(), flats))
	return nil
}

type printUniqueHouseCommand struct{ meta }

func newPrintUniqueHouse() Command {
	return &printUniqueHouseCommand{meta{
		name:        "print_unique_house",
		usage:       "print_unique_house",
		description: "print the distinct houses in ascending order",
		category:    CategoryQuery,
	}}
}

func (c *printUniqueHouseCommand) Execute(ctx context.Context, env *Env, arg string) error {
	var houses []*flat.House
	for _, f := range env.Collection.Snapshot() {
		if f.House == nil {
			continue
		}
		if !slices.ContainsFunc(houses, func(h *flat.House) bool { return flat.CompareHouses(h, f.House) == 0 }) {
			houses = append(houses, f.House)
		}
	}
	if len(houses) == 0 {
		env.Out.Print("no flat has a house")
		return nil
	}
	slices.SortFunc(houses, flat.CompareHouses)

	var b strings.Builder
	for _, h := range houses {
		b.WriteString(h.String())
		b.WriteString("\n")
	}
	env.Out.Print(b.String())
	return nil
}

type printRoomsCommand struct{ meta }

func newPrintRooms() Command {
	return &printRoomsCommand{meta{
		name:        "print_field_ascending_number_of_rooms",
		usage:       "print_field_ascending_number_of_rooms",
		description: "print flat ids grouped by number of rooms, ascending",
		category:    CategoryQuery,
	}}
}

func (c *printRoomsCommand) Execute(ctx context.Context, env *Env, arg string) error {
	flats := env.Collection.Snapshot()
	if len(flats) == 0 {
		env.Out.Print("collection is empty")
		return nil
	}

	groups := make(map[int64][]*flat.Flat)
	var rooms []int64
	for _, f := range flats {
		if _, seen := groups[f.Rooms]; !seen {
			rooms = append(rooms, f.Rooms)
		}
		groups[f.Rooms] = append(groups[f.Rooms], f)
	}
	slices.Sort(rooms)

	styles := env.Out.Styles()
	var b strings.Builder
	for _, n := range rooms {
		fmt.Fprintf(&b, "%s %s\n", styles.Label.Render(fmt.Sprintf("%d rooms:", n)), idList(groups[n]))
	}
	env.Out.Print(b.String())
	return nil
}

type printHouseDescCommand struct{ meta }

func newPrintHouseDesc() Command {
	return &printHouseDescCommand{meta{
		name:        "print_field_descending_house",
		usage:       "print_field_descending_house",
		description: "print houses in descending order with the ids of their flats",
		category:    CategoryQuery,
	}}
}

type houseGroup struct {
	house *flat.House
	flats []*flat.Flat
}

func (c *printHouseDescCommand) Execute(ctx context.Context, env *Env, arg string) error {
	flats := env.Collection.Snapshot()
	if len(flats) == 0 {
		env.Out.Print("collection is empty")
		return nil
	}

	var groups []*houseGroup
	var homeless []*flat.Flat
	for _, f := range flats {
		if f.House == nil {
			homeless = append(homeless, f)
			continue
		}
		i := slices.IndexFunc(groups, func(g *houseGroup) bool { return flat.CompareHouses(g.house, f.House) == 0 })
		if i < 0 {
			groups = append(groups, &houseGroup{house: f.House})
			i = len(groups) - 1
		}
		groups[i].flats = append(groups[i].flats, f)
	}
	slices.SortFunc(groups, func(a, b *houseGroup) int {
		return flat.CompareHouses(b.house, a.house)
	})

	styles := env.Out.Styles()
	var b strings.Builder
	for _, g := range groups {
		fmt.Fprintf(&b, "%s %s\n", styles.Label.Render(g.house.String()+":"), idList(g.flats))
	}
	if len(homeless) > 0 {
		fmt.Fprintf(&b, "%s %s\n", styles.Muted.Render("(no house):"), idList(homeless))
	}
	env.Out.Print(b.String())
	return nil
}
