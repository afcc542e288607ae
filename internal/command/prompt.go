package command

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
	"github.com/msto63/flatset/foundation/utils/stringx"
	"github.com/msto63/flatset/internal/flat"
)

// ask prompts on terminals and reads one line. The end of input fails the
// command.
func ask(env *Env, in Input, prompt string) (string, error) {
	if in.Terminal() {
		env.Out.Prompt(prompt + ": ")
	}
	line, err := in.ReadLine()
	if errors.Is(err, io.EOF) {
		return "", mdwerror.InvalidInput("input ended while asking for %s", prompt)
	}
	if errors.Is(err, context.Canceled) {
		return "", mdwerror.Wrap(err, "input cancelled").WithCode(mdwerror.CodeShutdown)
	}
	if err != nil {
		return "", mdwerror.Wrap(err, "failed to read input").WithCode(mdwerror.CodeIOError)
	}
	return line, nil
}

// form asks for the fields of one record. A person at a terminal is asked
// again after an invalid value. Scripts and piped input keep reading the
// remaining answers of the record and fail at the end with the first
// invalid value, so those answers are never dispatched as commands.
type form struct {
	env     *Env
	in      Input
	invalid error
}

func newForm(env *Env, in Input) *form {
	return &form{env: env, in: in}
}

// field reads values for spec until one applies. With keep set, a blank
// answer leaves the field unchanged.
func (fm *form) field(f *flat.Flat, spec flat.FieldSpec, keep bool) error {
	prompt := spec.Prompt
	if keep {
		prompt += " [" + currentValue(f, spec.Key) + "]"
	}
	for {
		raw, err := ask(fm.env, fm.in, prompt)
		if err != nil {
			if fm.invalid != nil && mdwerror.HasCode(err, mdwerror.CodeInvalidInput) {
				return fm.invalid
			}
			return err
		}
		if keep && stringx.IsBlank(raw) {
			return nil
		}
		err = spec.Apply(f, raw)
		switch {
		case err == nil:
			return nil
		case fm.in.Terminal():
			fm.env.Out.Error(err)
		default:
			if fm.invalid == nil {
				fm.invalid = err
			}
			return nil
		}
	}
}

// fields asks every spec in order
func (fm *form) fields(f *flat.Flat, specs []flat.FieldSpec, keep bool) error {
	for _, spec := range specs {
		if err := fm.field(f, spec, keep); err != nil {
			return err
		}
	}
	return nil
}

// yesNo reads a y/n answer. def is used for blank answers when non-nil.
// An invalid answer from a script fails at once since the number of
// answers that follow depends on it.
func (fm *form) yesNo(prompt string, def *bool) (bool, error) {
	if def != nil {
		if *def {
			prompt += " [y]"
		} else {
			prompt += " [n]"
		}
	}
	for {
		raw, err := ask(fm.env, fm.in, prompt)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		case "":
			if def != nil {
				return *def, nil
			}
		}
		err = mdwerror.InvalidInput("answer y or n, got %q", strings.TrimSpace(raw))
		if !fm.in.Terminal() {
			if fm.invalid != nil {
				return false, fm.invalid
			}
			return false, err
		}
		fm.env.Out.Error(err)
	}
}

// done returns f once every answer applied and the record is valid
func (fm *form) done(f *flat.Flat) (*flat.Flat, error) {
	if fm.invalid != nil {
		return nil, fm.invalid
	}
	return f, f.Validate()
}

// collectRecord builds a new record field by field
func collectRecord(env *Env, in Input) (*flat.Flat, error) {
	fm := newForm(env, in)
	f := &flat.Flat{}
	if err := fm.fields(f, flat.RecordFields(), false); err != nil {
		return nil, err
	}

	hasHouse, err := fm.yesNo("has house? (y/n)", nil)
	if err != nil {
		return nil, err
	}
	if hasHouse {
		f.House = &flat.House{}
		if err := fm.fields(f, flat.HouseFields(), false); err != nil {
			return nil, err
		}
	}
	return fm.done(f)
}

// editRecord walks the fields of a copy of cur; blank answers keep the
// current value
func editRecord(env *Env, in Input, cur *flat.Flat) (*flat.Flat, error) {
	fm := newForm(env, in)
	f := cur.Clone()
	if err := fm.fields(f, flat.RecordFields(), true); err != nil {
		return nil, err
	}

	had := f.House != nil
	hasHouse, err := fm.yesNo("has house? (y/n)", &had)
	if err != nil {
		return nil, err
	}
	switch {
	case !hasHouse:
		f.House = nil
	case had:
		err = fm.fields(f, flat.HouseFields(), true)
	default:
		f.House = &flat.House{}
		err = fm.fields(f, flat.HouseFields(), false)
	}
	if err != nil {
		return nil, err
	}
	return fm.done(f)
}

func currentValue(f *flat.Flat, key string) string {
	switch key {
	case "name":
		return f.Name
	case "x":
		return strconv.Itoa(f.Coordinates.X)
	case "y":
		return strconv.Itoa(f.Coordinates.Y)
	case "area":
		return strconv.FormatInt(f.Area, 10)
	case "rooms":
		return strconv.FormatInt(f.Rooms, 10)
	case "isNew":
		if f.IsNew == nil {
			return "null"
		}
		return strconv.FormatBool(*f.IsNew)
	case "transitMinutes":
		return strconv.FormatFloat(f.TransitMinutes, 'g', -1, 64)
	case "view":
		return f.View.String()
	}
	if f.House == nil {
		return ""
	}
	switch key {
	case "house.name":
		return f.House.Name
	case "house.year":
		return strconv.Itoa(f.House.Year)
	case "house.flatsPerFloor":
		return strconv.Itoa(f.House.FlatsPerFloor)
	}
	return ""
}
