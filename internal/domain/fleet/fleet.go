// Package fleet holds the editable fleet configuration form: raw text drafts
// for each car, strict parsing of floor lists, and per-field validation.
package fleet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/liftcall/internal/domain/model"
)

// Field names a column of a fleet entry.
type Field string

const (
	FieldID             Field = "id"
	FieldCurrentFloor   Field = "current_floor"
	FieldFloorsServiced Field = "floors_serviced"

	// FieldFleet marks an error about the form as a whole.
	FieldFleet Field = "fleet"
)

// FormIndex is the entry index of form-level errors.
const FormIndex = -1

const (
	msgRequired    = "please fill out this field"
	msgFloorsEmpty = "please provide a list of floors to be serviced"
	msgDuplicateID = "id is already used by another elevator"
	msgNoElevators = "please add at least one elevator"
)

// Draft is one car as typed into the form.
type Draft struct {
	ID             string `json:"id"`
	CurrentFloor   string `json:"current_floor"`
	FloorsServiced string `json:"floors_serviced"`
}

// Form is an ordered list of drafts. It is not safe for concurrent use.
type Form struct {
	drafts []Draft
}

// NewForm returns a form pre-filled with drafts.
func NewForm(drafts ...Draft) *Form {
	return &Form{drafts: append([]Draft(nil), drafts...)}
}

// FormFromEntries renders already-typed entries back into drafts.
func FormFromEntries(entries []model.FleetEntry) *Form {
	f := &Form{drafts: make([]Draft, len(entries))}
	for i, e := range entries {
		parts := make([]string, len(e.FloorsServiced))
		for j, fl := range e.FloorsServiced {
			parts[j] = strconv.Itoa(fl)
		}
		f.drafts[i] = Draft{
			ID:             e.ID.String(),
			CurrentFloor:   strconv.Itoa(e.CurrentFloor),
			FloorsServiced: strings.Join(parts, ","),
		}
	}
	return f
}

// Add appends an empty draft and returns its index.
func (f *Form) Add() int {
	f.drafts = append(f.drafts, Draft{})
	return len(f.drafts) - 1
}

// Remove deletes the draft at index.
func (f *Form) Remove(index int) error {
	if index < 0 || index >= len(f.drafts) {
		return fmt.Errorf("%w: %d", ErrNoEntry, index)
	}
	f.drafts = append(f.drafts[:index], f.drafts[index+1:]...)
	return nil
}

// Set edits one field of the draft at index.
func (f *Form) Set(index int, field Field, value string) error {
	if index < 0 || index >= len(f.drafts) {
		return fmt.Errorf("%w: %d", ErrNoEntry, index)
	}
	d := &f.drafts[index]
	switch field {
	case FieldID:
		d.ID = value
	case FieldCurrentFloor:
		d.CurrentFloor = value
	case FieldFloorsServiced:
		d.FloorsServiced = value
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	return nil
}

// Len returns the number of drafts.
func (f *Form) Len() int { return len(f.drafts) }

// Drafts returns a copy of the drafts.
func (f *Form) Drafts() []Draft { return append([]Draft(nil), f.drafts...) }

// Validate checks every draft and returns the typed entries. Every invalid
// field is reported; the entries are only meaningful when errs is empty.
func (f *Form) Validate() ([]model.FleetEntry, ValidationErrors) {
	var errs ValidationErrors
	entries := make([]model.FleetEntry, 0, len(f.drafts))
	seen := make(map[string]int, len(f.drafts))
	if len(f.drafts) == 0 {
		errs = append(errs, noElevators())
	}

	for i, d := range f.drafts {
		var e model.FleetEntry

		id := strings.TrimSpace(d.ID)
		switch {
		case id == "":
			errs = append(errs, FieldError{Index: i, Field: FieldID, Message: msgRequired, Err: ErrValidation})
		default:
			if _, dup := seen[id]; dup {
				errs = append(errs, FieldError{Index: i, Field: FieldID, Message: msgDuplicateID, Err: ErrValidation})
			}
			seen[id] = i
			e.ID = model.ElevatorID(id)
		}

		floor, err := ParseFloor(d.CurrentFloor)
		switch {
		case strings.TrimSpace(d.CurrentFloor) == "":
			errs = append(errs, FieldError{Index: i, Field: FieldCurrentFloor, Message: msgRequired, Err: ErrValidation})
		case err != nil:
			errs = append(errs, FieldError{Index: i, Field: FieldCurrentFloor, Message: err.Error(), Err: err})
		default:
			e.CurrentFloor = floor
		}

		floors, err := ParseFloors(d.FloorsServiced)
		switch {
		case err != nil:
			errs = append(errs, FieldError{Index: i, Field: FieldFloorsServiced, Message: err.Error(), Err: err})
		case len(floors) == 0:
			errs = append(errs, FieldError{Index: i, Field: FieldFloorsServiced, Message: msgFloorsEmpty, Err: ErrValidation})
		default:
			e.FloorsServiced = floors
		}

		entries = append(entries, e)
	}
	return entries, errs
}

// ValidateEntries applies the same rules to entries that were never drafts,
// e.g. a fleet loaded from the config file.
func ValidateEntries(entries []model.FleetEntry) ValidationErrors {
	var errs ValidationErrors
	seen := make(map[model.ElevatorID]struct{}, len(entries))
	if len(entries) == 0 {
		errs = append(errs, noElevators())
	}
	for i, e := range entries {
		if strings.TrimSpace(e.ID.String()) == "" {
			errs = append(errs, FieldError{Index: i, Field: FieldID, Message: msgRequired, Err: ErrValidation})
		} else if _, dup := seen[e.ID]; dup {
			errs = append(errs, FieldError{Index: i, Field: FieldID, Message: msgDuplicateID, Err: ErrValidation})
		}
		seen[e.ID] = struct{}{}
		if len(e.FloorsServiced) == 0 {
			errs = append(errs, FieldError{Index: i, Field: FieldFloorsServiced, Message: msgFloorsEmpty, Err: ErrValidation})
		}
	}
	return errs
}

func noElevators() FieldError {
	return FieldError{Index: FormIndex, Field: FieldFleet, Message: msgNoElevators, Err: ErrValidation}
}

// ParseFloor parses a single floor number.
func ParseFloor(raw string) (int, error) {
	tok := strings.TrimSpace(raw)
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, &ParseError{Token: tok}
	}
	return n, nil
}

// ParseFloors parses a comma separated floor list such as "1, 2,5".
// Blank input yields an empty list. A token that is not an integer is a
// *ParseError.
func ParseFloors(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	floors := make([]int, 0, len(parts))
	for i, p := range parts {
		tok := strings.TrimSpace(p)
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, &ParseError{Token: tok, Position: i}
		}
		floors = append(floors, n)
	}
	return floors, nil
}
