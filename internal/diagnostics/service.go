package diagnostics

import (
	"context"
	"strings"

	"backend-birdtours/internal/db"
	"backend-birdtours/internal/logging"
	"backend-birdtours/internal/shared/apperr"
	"backend-birdtours/internal/shared/retry"

	"github.com/sirupsen/logrus"
)

type Service struct {
	db       db.Querier
	expected Schema
	logger   *logrus.Logger
	retry    []retry.Option
}

func NewService(db db.Querier, logger *logrus.Logger, opts ...retry.Option) *Service {
	logger = logging.OrDiscard(logger)
	return &Service{
		db:       db,
		expected: ExpectedSchema(),
		logger:   logger,
		retry:    append([]retry.Option{retry.WithLogger(logger)}, opts...),
	}
}

// ForChannel makes the expected change trigger notify channel.
func (s *Service) ForChannel(channel string) *Service {
	if channel != "" {
		s.expected = ExpectedSchemaFor(channel)
	}
	return s
}

func (s *Service) ExpectedSchema() Schema {
	return s.expected
}

// CurrentSchema reads tables, columns, RLS flags, functions and triggers of
// the public schema.
func (s *Service) CurrentSchema(ctx context.Context) (Schema, error) {
	schema, err := retry.Do(ctx, s.readSchema, s.retry...)
	if err != nil {
		return Schema{}, apperr.Normalize(err)
	}
	return schema, nil
}

func (s *Service) readSchema(ctx context.Context) (Schema, error) {
	rows, err := s.db.Query(ctx, `
		SELECT table_name, column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'public'
		ORDER BY table_name, ordinal_position
	`)
	if err != nil {
		return Schema{}, err
	}

	var tables []Table
	index := map[string]int{}
	for rows.Next() {
		var table, column, dataType, nullable string
		if err := rows.Scan(&table, &column, &dataType, &nullable); err != nil {
			rows.Close()
			return Schema{}, err
		}
		i, ok := index[table]
		if !ok {
			i = len(tables)
			index[table] = i
			tables = append(tables, Table{Name: table})
		}
		tables[i].Columns = append(tables[i].Columns, Column{Name: column, DataType: dataType, Nullable: nullable == "YES"})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Schema{}, err
	}

	rows, err = s.db.Query(ctx, `SELECT tablename, rowsecurity FROM pg_tables WHERE schemaname = 'public'`)
	if err != nil {
		return Schema{}, err
	}
	for rows.Next() {
		var table string
		var rls bool
		if err := rows.Scan(&table, &rls); err != nil {
			rows.Close()
			return Schema{}, err
		}
		if i, ok := index[table]; ok {
			tables[i].RLSEnabled = rls
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Schema{}, err
	}

	rows, err = s.db.Query(ctx, `SELECT DISTINCT routine_name FROM information_schema.routines WHERE routine_schema = 'public' ORDER BY routine_name`)
	if err != nil {
		return Schema{}, err
	}
	functions := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return Schema{}, err
		}
		functions = append(functions, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Schema{}, err
	}

	rows, err = s.db.Query(ctx, `SELECT DISTINCT trigger_name, event_object_table FROM information_schema.triggers WHERE trigger_schema = 'public' ORDER BY trigger_name`)
	if err != nil {
		return Schema{}, err
	}
	defer rows.Close()
	triggers := []Trigger{}
	for rows.Next() {
		var tr Trigger
		if err := rows.Scan(&tr.Name, &tr.Table); err != nil {
			return Schema{}, err
		}
		triggers = append(triggers, tr)
	}
	if err := rows.Err(); err != nil {
		return Schema{}, err
	}

	if tables == nil {
		tables = []Table{}
	}
	return Schema{Tables: tables, Functions: functions, Triggers: triggers}, nil
}

// Gaps reads the live schema and diffs it against the expected one.
func (s *Service) Gaps(ctx context.Context) ([]Gap, error) {
	current, err := s.CurrentSchema(ctx)
	if err != nil {
		return nil, err
	}
	return AnalyzeGaps(current, s.expected), nil
}

// ExecuteSQL runs statement exactly as given. It is never retried: fixes are
// DDL and an ambiguous failure must be looked at by the operator.
func (s *Service) ExecuteSQL(ctx context.Context, statement string) error {
	if strings.TrimSpace(statement) == "" {
		return apperr.Validation("sql is required")
	}
	if _, err := s.db.Exec(ctx, statement); err != nil {
		s.logger.WithError(err).WithField("type", "diagnostics").Error("Corrective SQL failed")
		return apperr.Normalize(err)
	}
	return nil
}

// VerifyImplementation re-runs the one check that produced gap.
func (s *Service) VerifyImplementation(ctx context.Context, gap Gap) (bool, error) {
	ok, err := retry.Do(ctx, func(ctx context.Context) (bool, error) {
		switch gap.Type {
		case GapMissingTable:
			return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`, gap.Table)
		case GapMissingColumn:
			return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1 AND column_name = $2)`, gap.Table, gap.Column)
		case GapTypeMismatch:
			var dataType string
			err := s.db.QueryRow(ctx, `SELECT data_type FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1 AND column_name = $2`, gap.Table, gap.Column).Scan(&dataType)
			return err == nil && strings.EqualFold(dataType, gap.Expected), err
		case GapRLSDisabled:
			var rls bool
			err := s.db.QueryRow(ctx, `SELECT rowsecurity FROM pg_tables WHERE schemaname = 'public' AND tablename = $1`, gap.Table).Scan(&rls)
			return rls, err
		case GapMissingFunction:
			return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.routines WHERE routine_schema = 'public' AND routine_name = $1)`, gap.ItemName)
		case GapMissingTrigger:
			return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.triggers WHERE trigger_schema = 'public' AND event_object_table = $1 AND trigger_name = $2)`, gap.Table, gap.ItemName)
		}
		return false, apperr.Validation("unknown gap type " + string(gap.Type))
	}, s.retry...)
	if err != nil {
		return false, apperr.Normalize(err)
	}
	return ok, nil
}

// Apply executes the fix for the gap with id and verifies it. Only one gap
// is applied per call.
func (s *Service) Apply(ctx context.Context, id string) (Gap, error) {
	gaps, err := s.Gaps(ctx)
	if err != nil {
		return Gap{}, err
	}

	var gap Gap
	found := false
	for _, g := range gaps {
		if g.ID == id {
			gap, found = g, true
			break
		}
	}
	if !found {
		return Gap{}, apperr.NotFound("No open schema gap with id " + id + ".")
	}

	if err := s.ExecuteSQL(ctx, gap.SQLFix); err != nil {
		return gap, err
	}
	gap.Implemented, err = s.VerifyImplementation(ctx, gap)
	if err != nil {
		return gap, err
	}

	s.logger.WithFields(logrus.Fields{
		"gap_id":      gap.ID,
		"implemented": gap.Implemented,
		"type":        "diagnostics",
	}).Info("Schema gap applied")
	return gap, nil
}

func (s *Service) exists(ctx context.Context, sql string, args ...any) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, sql, args...).Scan(&ok)
	return ok, err
}
