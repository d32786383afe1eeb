package diagnostics

import (
	"fmt"
	"sort"
	"strings"
)

const referenceFunctionSQL = `CREATE OR REPLACE FUNCTION public.generate_booking_reference()
RETURNS text LANGUAGE sql AS $$
  SELECT 'BT-' || to_char(now(), 'YYYYMMDD') || '-' || upper(substr(md5(random()::text), 1, 6))
$$;`

// AnalyzeGaps diffs current against expected. It is pure: the same inputs
// always give the same gaps in the same order. Gaps are ordered by priority,
// then by position in expected, so missing tables come out in creation order.
func AnalyzeGaps(current, expected Schema) []Gap {
	gaps := []Gap{}

	for _, want := range expected.Tables {
		have, ok := current.Table(want.Name)
		if !ok {
			gaps = append(gaps, Gap{
				Type:        GapMissingTable,
				ItemName:    want.Name,
				Table:       want.Name,
				Description: fmt.Sprintf("Table %s does not exist.", want.Name),
				SQLFix:      createTableSQL(want),
				Priority:    PriorityCritical,
			})
			continue
		}

		for _, wantCol := range want.Columns {
			haveCol, ok := have.Column(wantCol.Name)
			item := want.Name + "." + wantCol.Name
			switch {
			case !ok:
				gaps = append(gaps, Gap{
					Type:        GapMissingColumn,
					ItemName:    item,
					Table:       want.Name,
					Column:      wantCol.Name,
					Expected:    wantCol.DataType,
					Description: fmt.Sprintf("Column %s is missing.", item),
					SQLFix:      addColumnSQL(want.Name, wantCol),
					Priority:    PriorityHigh,
				})
			case !strings.EqualFold(haveCol.DataType, wantCol.DataType):
				gaps = append(gaps, Gap{
					Type:        GapTypeMismatch,
					ItemName:    item,
					Table:       want.Name,
					Column:      wantCol.Name,
					Expected:    wantCol.DataType,
					Description: fmt.Sprintf("Column %s is %s, expected %s.", item, haveCol.DataType, wantCol.DataType),
					SQLFix: fmt.Sprintf("ALTER TABLE public.%s ALTER COLUMN %s TYPE %s USING %s::%s;",
						want.Name, wantCol.Name, wantCol.SQLType, wantCol.Name, wantCol.SQLType),
					Priority: PriorityMedium,
				})
			}
		}

		if want.RLSEnabled && !have.RLSEnabled {
			gaps = append(gaps, Gap{
				Type:        GapRLSDisabled,
				ItemName:    want.Name,
				Table:       want.Name,
				Description: fmt.Sprintf("Row level security is disabled on %s.", want.Name),
				SQLFix:      fmt.Sprintf("ALTER TABLE public.%s ENABLE ROW LEVEL SECURITY;", want.Name),
				Priority:    PriorityHigh,
			})
		}
	}

	for _, fn := range expected.Functions {
		if current.HasFunction(fn) {
			continue
		}
		gaps = append(gaps, Gap{
			Type:        GapMissingFunction,
			ItemName:    fn,
			Description: fmt.Sprintf("Function %s() does not exist.", fn),
			SQLFix:      functionSQL(fn),
			Priority:    PriorityMedium,
		})
	}

	for _, tr := range expected.Triggers {
		if current.HasTrigger(tr.Name, tr.Table) {
			continue
		}
		gaps = append(gaps, Gap{
			Type:        GapMissingTrigger,
			ItemName:    tr.Name,
			Table:       tr.Table,
			Description: fmt.Sprintf("Trigger %s on %s does not exist.", tr.Name, tr.Table),
			SQLFix:      triggerSQL(tr),
			Priority:    PriorityMedium,
		})
	}

	for i := range gaps {
		gaps[i].ID = string(gaps[i].Type) + ":" + gaps[i].ItemName
	}
	sort.SliceStable(gaps, func(i, j int) bool {
		return gaps[i].Priority.rank() < gaps[j].Priority.rank()
	})
	return gaps
}

func createTableSQL(t Table) string {
	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		defs = append(defs, columnDef(c))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS public.%s (\n  %s\n);", t.Name, strings.Join(defs, ",\n  "))
}

func addColumnSQL(table string, c Column) string {
	return fmt.Sprintf("ALTER TABLE public.%s ADD COLUMN IF NOT EXISTS %s;", table, columnDef(c))
}

func columnDef(c Column) string {
	def := c.Name + " " + c.SQLType
	if c.Constraints != "" {
		def += " " + c.Constraints
	}
	return def
}

func functionSQL(name string) string {
	if name == ReferenceFunction {
		return referenceFunctionSQL
	}
	return fmt.Sprintf("-- define public.%s() manually", name)
}

// triggerSQL (re)creates the trigger function and then the trigger itself.
func triggerSQL(t Trigger) string {
	return fmt.Sprintf(`CREATE OR REPLACE FUNCTION public.%s()
RETURNS trigger LANGUAGE plpgsql AS $$
%s
$$;
DROP TRIGGER IF EXISTS %s ON public.%s;
CREATE TRIGGER %s %s ON public.%s
FOR EACH ROW EXECUTE FUNCTION public.%s();`,
		t.Function, t.Body, t.Name, t.Table, t.Name, t.Timing, t.Table, t.Function)
}
