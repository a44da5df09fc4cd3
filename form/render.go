package form

// Entry is a catalog item offered as a choice by a catalog-backed field.
type Entry struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Entries holds resolved catalog choices keyed by field id. A catalog-backed
// field without a key has not been resolved yet.
type Entries map[string][]Entry

type OptionsState string

const (
	// Declared options come from the field itself.
	Declared OptionsState = "declared"
	// Pending marks a catalog-backed field whose lookup has not completed.
	// Renderers show a loading affordance, never an empty choice list.
	Pending OptionsState = "pending"
	// Resolved options are catalog entries.
	Resolved OptionsState = "resolved"
)

// Options is the choice list of a rendered field.
type Options struct {
	State   OptionsState `json:"state"`
	Values  []string     `json:"values,omitempty"`
	Entries []Entry      `json:"entries,omitempty"`
}

func optionsFor(f Field, entries Entries) Options {
	if !f.CatalogBacked() {
		return Options{State: Declared, Values: f.Options}
	}
	e, ok := entries[f.ID]
	if !ok {
		return Options{State: Pending}
	}
	if e == nil {
		e = []Entry{}
	}
	return Options{State: Resolved, Entries: e}
}

type FieldView struct {
	Field   Field     `json:"field"`
	Value   Value     `json:"value,omitempty"`
	Error   ErrorKind `json:"error,omitempty"`
	Options Options   `json:"options"`
}

// Row is one layout row: a single full field, or up to two half fields.
type Row []FieldView

type StepView struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
	Title string `json:"title"`
	Rows  []Row  `json:"rows"`
}

// View is what a renderer draws for a form and a live answer set.
type View struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Current     int        `json:"current"`
	Steps       []StepView `json:"steps"`
	// Result is the advisory validation of the current step.
	Result Result `json:"result"`
}

// Render lays out every step of cfg in order and attaches the inline errors
// of the current step. Validation here never blocks input, it is only
// advisory until the user moves on or submits.
func Render(cfg Config, answers AnswerSet, current int, entries Entries) (View, error) {
	result, err := ValidateStep(cfg, answers, current)
	if err != nil {
		return View{}, err
	}

	v := View{
		Title:       cfg.Title,
		Description: cfg.Description,
		Current:     current,
		Result:      result,
	}
	for i, s := range cfg.Pages() {
		sv := StepView{Index: i, ID: s.ID, Title: s.Title}
		views := make([]FieldView, len(s.Fields))
		for j, f := range s.Fields {
			fv := FieldView{Field: f, Value: answers[f.ID], Options: optionsFor(f, entries)}
			if i == current {
				fv.Error, _ = result.Error(f.ID)
			}
			views[j] = fv
		}
		sv.Rows = Layout(views)
		v.Steps = append(v.Steps, sv)
	}
	return v, nil
}

// Layout groups fields into rows. A half field pairs with the next field
// when that one is half too; full fields always take a whole row.
func Layout(fields []FieldView) []Row {
	rows := []Row{}
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if f.Field.width() == Half && i+1 < len(fields) && fields[i+1].Field.width() == Half {
			rows = append(rows, Row{f, fields[i+1]})
			i++
			continue
		}
		rows = append(rows, Row{f})
	}
	return rows
}
