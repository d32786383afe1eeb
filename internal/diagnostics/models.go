package diagnostics

type Column struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Nullable bool   `json:"nullable"`
	// SQLType and Constraints are only set on expected columns and feed the
	// generated fixes.
	SQLType     string `json:"sql_type,omitempty"`
	Constraints string `json:"constraints,omitempty"`
}

type Table struct {
	Name       string   `json:"name"`
	Columns    []Column `json:"columns"`
	RLSEnabled bool     `json:"rls_enabled"`
}

func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Trigger is a row trigger on a public table. Timing, Function and Body are
// only set on expected triggers and feed the generated fix.
type Trigger struct {
	Name     string `json:"name"`
	Table    string `json:"table"`
	Timing   string `json:"timing,omitempty"`
	Function string `json:"function,omitempty"`
	Body     string `json:"-"`
}

type Schema struct {
	Tables    []Table   `json:"tables"`
	Functions []string  `json:"functions"`
	Triggers  []Trigger `json:"triggers"`
}

func (s Schema) Table(name string) (Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

func (s Schema) HasFunction(name string) bool {
	for _, f := range s.Functions {
		if f == name {
			return true
		}
	}
	return false
}

func (s Schema) HasTrigger(name, table string) bool {
	for _, t := range s.Triggers {
		if t.Name == name && t.Table == table {
			return true
		}
	}
	return false
}

type GapType string

const (
	GapMissingTable    GapType = "missing_table"
	GapMissingColumn   GapType = "missing_column"
	GapTypeMismatch    GapType = "column_type_mismatch"
	GapRLSDisabled     GapType = "rls_disabled"
	GapMissingFunction GapType = "missing_function"
	GapMissingTrigger  GapType = "missing_trigger"
)

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	}
	return 3
}

// Gap is one difference between the live and expected schema. Gaps are
// recomputed on every analysis and never stored.
type Gap struct {
	ID          string   `json:"id"`
	Type        GapType  `json:"type"`
	ItemName    string   `json:"item_name"`
	Table       string   `json:"table,omitempty"`
	Column      string   `json:"column,omitempty"`
	Expected    string   `json:"expected,omitempty"`
	Description string   `json:"description"`
	SQLFix      string   `json:"sql_fix"`
	Priority    Priority `json:"priority"`
	Implemented bool     `json:"implemented"`
}
