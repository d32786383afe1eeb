// Package health runs an ordered battery of live checks against the store,
// auth and realtime layers and scores the outcome.
package health

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"backend-birdtours/internal/config"
	"backend-birdtours/internal/db"
	"backend-birdtours/internal/logging"
	"backend-birdtours/internal/stream"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

const (
	latencyPass    = 500 * time.Millisecond
	latencyWarning = 2 * time.Second

	concurrentQueries = 5

	injectionProbe   = "'; DROP TABLE trip_bookings; --"
	nonexistentTable = "health_check_nonexistent_table"
)

// protectedTables must carry row level security.
var protectedTables = []string{
	"user_profiles", "trips", "trip_bookings", "chat_messages", "booking_payments", "contact_inquiries",
}

type TokenService interface {
	IssueAccessToken(userID string) (string, error)
	ValidateAccessToken(token string) (string, error)
}

// Realtime is the part of the hub the analyzer checks.
type Realtime interface {
	Register(topic string) *stream.Client
	Unregister(client *stream.Client)
	Subscribers(topic string) int
	Ping(ctx context.Context) error
	Distributed() bool
}

type Analyzer struct {
	db       db.Querier
	tokens   TokenService
	realtime Realtime
	cfg      config.Config
	poolSize int32
	logger   *logrus.Logger
	now      func() time.Time
}

type Option func(*Analyzer)

// WithPoolSize reports the store pool size in the scalability notes.
func WithPoolSize(n int32) Option { return func(a *Analyzer) { a.poolSize = n } }

func WithClock(now func() time.Time) Option { return func(a *Analyzer) { a.now = now } }

func NewAnalyzer(q db.Querier, tokens TokenService, realtime Realtime, cfg config.Config, logger *logrus.Logger, opts ...Option) *Analyzer {
	a := &Analyzer{
		db:       q,
		tokens:   tokens,
		realtime: realtime,
		cfg:      cfg,
		logger:   logging.OrDiscard(logger),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type check struct {
	category string
	test     string
	run      func(ctx context.Context) Result
}

func (a *Analyzer) checks() []check {
	return []check{
		{CategoryFunctionality, "Database connectivity", a.checkConnectivity},
		{CategoryFunctionality, "Authentication", a.checkAuth},
		{CategoryFunctionality, "Realtime channel", a.checkRealtime},
		{CategoryPerformance, "Query latency", a.checkLatency},
		{CategoryPerformance, "Concurrent requests", a.checkConcurrency},
		{CategorySecurity, "Environment configuration", a.checkEnvironment},
		{CategorySecurity, "Row level security", a.checkRLS},
		{CategorySecurity, "SQL injection resistance", a.checkInjection},
		{CategoryErrorHandling, "Nonexistent table", a.checkNonexistentTable},
		{CategoryScalability, "Connection pool", a.notePool},
		{CategoryScalability, "Realtime fan-out", a.noteFanOut},
	}
}

// RunCompleteAnalysis runs every check in order. A check that fails or
// panics yields a fail result and the remaining checks still run.
func (a *Analyzer) RunCompleteAnalysis(ctx context.Context) Report {
	report := Report{StartedAt: a.now()}
	for _, c := range a.checks() {
		report.Results = append(report.Results, a.runCheck(ctx, c))
	}
	report.Duration = a.now().Sub(report.StartedAt)
	summarize(&report)

	a.logger.WithFields(logrus.Fields{
		"score":    report.Score,
		"passed":   report.Passed,
		"warnings": report.Warnings,
		"failed":   report.Failed,
		"type":     "health",
	}).Info("Health analysis finished")
	return report
}

func (a *Analyzer) runCheck(ctx context.Context, c check) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.WithField("test", c.test).Errorf("health check panicked: %v", r)
			res = Result{
				Status:          StatusFail,
				Message:         fmt.Sprintf("Check crashed: %v", r),
				Details:         ErrorDetails{Error: fmt.Sprint(r)},
				Recommendations: []string{"Investigate the crash in the " + c.test + " check."},
				Priority:        PriorityHigh,
			}
		}
		res.Category = c.category
		res.Test = c.test
	}()
	return c.run(ctx)
}

func failed(err error, priority Priority, recommendation string) Result {
	details := ErrorDetails{Error: err.Error()}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		details.Code = pgErr.Code
	}
	return Result{
		Status:          StatusFail,
		Message:         err.Error(),
		Details:         details,
		Recommendations: []string{recommendation},
		Priority:        priority,
	}
}

func (a *Analyzer) ping(ctx context.Context) error {
	var one int
	return a.db.QueryRow(ctx, `SELECT 1`).Scan(&one)
}

func (a *Analyzer) checkConnectivity(ctx context.Context) Result {
	if err := a.ping(ctx); err != nil {
		return failed(err, PriorityCritical, "Check DATABASE_URL and that the database accepts connections.")
	}
	return Result{Status: StatusPass, Message: "Database is reachable.", Priority: PriorityLow}
}

func (a *Analyzer) checkAuth(ctx context.Context) Result {
	subject := uuid.NewString()
	token, err := a.tokens.IssueAccessToken(subject)
	if err != nil {
		return failed(err, PriorityCritical, "Check JWT_SECRET; access tokens cannot be signed.")
	}
	userID, err := a.tokens.ValidateAccessToken(token)
	if err != nil {
		return failed(err, PriorityCritical, "Access tokens do not validate; check JWT_SECRET is identical on every instance.")
	}
	if userID != subject {
		return failed(fmt.Errorf("token round trip returned %q", userID), PriorityCritical, "Access tokens carry the wrong subject.")
	}
	return Result{Status: StatusPass, Message: "Access tokens sign and validate.", Priority: PriorityLow}
}

func (a *Analyzer) checkRealtime(ctx context.Context) Result {
	topic := "health:" + uuid.NewString()
	client := a.realtime.Register(topic)
	registered := a.realtime.Subscribers(topic)
	a.realtime.Unregister(client)
	if registered != 1 || a.realtime.Subscribers(topic) != 0 {
		return failed(errors.New("hub did not track the test subscription"), PriorityHigh, "Restart the API; the realtime hub is in a bad state.")
	}

	if a.realtime.Distributed() {
		if err := a.realtime.Ping(ctx); err != nil {
			return failed(err, PriorityHigh, "Check REDIS_ADDR; realtime events are not shared between instances.")
		}
		return Result{Status: StatusPass, Message: "Realtime channel created; redis mirror reachable.", Priority: PriorityLow}
	}
	if a.cfg.RedisAddr != "" {
		return Result{
			Status:          StatusWarning,
			Message:         "REDIS_ADDR is set but the hub runs locally.",
			Recommendations: []string{"Check redis at startup; realtime events stay on this instance."},
			Priority:        PriorityMedium,
		}
	}
	return Result{Status: StatusPass, Message: "Realtime channel created (single instance).", Priority: PriorityLow}
}

// ClassifyLatency maps a single query duration to a status.
func ClassifyLatency(d time.Duration) Status {
	switch {
	case d < latencyPass:
		return StatusPass
	case d < latencyWarning:
		return StatusWarning
	}
	return StatusFail
}

func (a *Analyzer) checkLatency(ctx context.Context) Result {
	start := a.now()
	if err := a.ping(ctx); err != nil {
		return failed(err, PriorityHigh, "Database queries fail; check connectivity first.")
	}
	elapsed := a.now().Sub(start)
	res := Result{
		Status:   ClassifyLatency(elapsed),
		Message:  fmt.Sprintf("Query completed in %dms.", elapsed.Milliseconds()),
		Details:  LatencyDetails{DurationMS: elapsed.Milliseconds()},
		Priority: PriorityLow,
	}
	switch res.Status {
	case StatusWarning:
		res.Priority = PriorityMedium
		res.Recommendations = []string{"Query latency is elevated; check the database region and load."}
	case StatusFail:
		res.Priority = PriorityHigh
		res.Recommendations = []string{"Query latency exceeds 2s; move the API closer to the database or scale it up."}
	}
	return res
}

func (a *Analyzer) checkConcurrency(ctx context.Context) Result {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < concurrentQueries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { _ = recover() }()
			if err := a.ping(ctx); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	details := ConcurrencyDetails{Total: concurrentQueries, Succeeded: succeeded, Failed: concurrentQueries - succeeded}
	msg := fmt.Sprintf("%d of %d concurrent queries succeeded.", succeeded, concurrentQueries)
	switch succeeded {
	case concurrentQueries:
		return Result{Status: StatusPass, Message: msg, Details: details, Priority: PriorityLow}
	case 0:
		return Result{
			Status:          StatusFail,
			Message:         msg,
			Details:         details,
			Recommendations: []string{"No concurrent query succeeded; check the pool configuration."},
			Priority:        PriorityHigh,
		}
	}
	return Result{
		Status:          StatusWarning,
		Message:         msg,
		Details:         details,
		Recommendations: []string{"Some concurrent queries failed; raise the pool size or database connection limit."},
		Priority:        PriorityMedium,
	}
}

func (a *Analyzer) checkEnvironment(context.Context) Result {
	if missing := a.cfg.Missing(); len(missing) > 0 {
		return Result{
			Status:          StatusFail,
			Message:         "Required settings are missing: " + strings.Join(missing, ", ") + ".",
			Details:         KeysDetails{Missing: missing},
			Recommendations: []string{"Set " + strings.Join(missing, " and ") + " in the environment."},
			Priority:        PriorityCritical,
		}
	}

	var optional []string
	if a.cfg.SiteURL == "" {
		optional = append(optional, "SITE_URL")
	}
	if a.cfg.ServiceRoleKey == "" {
		optional = append(optional, "SERVICE_ROLE_KEY")
	}
	if len(optional) > 0 {
		return Result{
			Status:          StatusWarning,
			Message:         "Optional settings are missing: " + strings.Join(optional, ", ") + ".",
			Details:         KeysDetails{Missing: optional},
			Recommendations: []string{"Set SITE_URL for reset links and CORS, and SERVICE_ROLE_KEY to enable admin routes."},
			Priority:        PriorityMedium,
		}
	}
	return Result{Status: StatusPass, Message: "All settings are present.", Details: KeysDetails{Missing: []string{}}, Priority: PriorityLow}
}

func (a *Analyzer) checkRLS(ctx context.Context) Result {
	rows, err := a.db.Query(ctx, `SELECT tablename, rowsecurity FROM pg_tables WHERE schemaname = 'public'`)
	if err != nil {
		return failed(err, PriorityHigh, "Row level security could not be inspected.")
	}
	defer rows.Close()

	enabled := map[string]bool{}
	for rows.Next() {
		var name string
		var rls bool
		if err := rows.Scan(&name, &rls); err != nil {
			return failed(err, PriorityHigh, "Row level security could not be inspected.")
		}
		enabled[name] = rls
	}
	if err := rows.Err(); err != nil {
		return failed(err, PriorityHigh, "Row level security could not be inspected.")
	}

	details := TablesDetails{Unprotected: []string{}, Missing: []string{}}
	for _, table := range protectedTables {
		rls, ok := enabled[table]
		switch {
		case !ok:
			details.Missing = append(details.Missing, table)
		case !rls:
			details.Unprotected = append(details.Unprotected, table)
		}
	}

	switch {
	case len(details.Unprotected) > 0:
		return Result{
			Status:          StatusFail,
			Message:         "Row level security is disabled on " + strings.Join(details.Unprotected, ", ") + ".",
			Details:         details,
			Recommendations: []string{"Enable row level security; see GET /admin/diagnostics/gaps for the statements."},
			Priority:        PriorityHigh,
		}
	case len(details.Missing) > 0:
		return Result{
			Status:          StatusWarning,
			Message:         "Tables are missing: " + strings.Join(details.Missing, ", ") + ".",
			Details:         details,
			Recommendations: []string{"Create the missing tables with the schema diagnostics tool."},
			Priority:        PriorityHigh,
		}
	}
	return Result{Status: StatusPass, Message: "Row level security is enabled on all booking tables.", Details: details, Priority: PriorityLow}
}

// checkInjection passes when the malicious lookup key errors or matches
// nothing; a returned row means it reached the SQL text.
func (a *Analyzer) checkInjection(ctx context.Context) Result {
	var id string
	err := a.db.QueryRow(ctx, `SELECT id FROM trip_bookings WHERE id = $1`, injectionProbe).Scan(&id)
	if err != nil {
		return Result{
			Status:   StatusPass,
			Message:  "Malicious lookup key was rejected.",
			Details:  ErrorDetails{Error: err.Error()},
			Priority: PriorityLow,
		}
	}
	return Result{
		Status:          StatusFail,
		Message:         "Malicious lookup key returned a row.",
		Recommendations: []string{"Queries must pass user input as parameters, never as SQL text."},
		Priority:        PriorityCritical,
	}
}

// checkNonexistentTable passes when querying a missing table surfaces an
// error.
func (a *Analyzer) checkNonexistentTable(ctx context.Context) Result {
	_, err := a.db.Exec(ctx, `SELECT 1 FROM `+nonexistentTable)
	if err != nil {
		details := ErrorDetails{Error: err.Error()}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			details.Code = pgErr.Code
		}
		return Result{Status: StatusPass, Message: "Store errors surface to the caller.", Details: details, Priority: PriorityLow}
	}
	return Result{
		Status:          StatusFail,
		Message:         "Query against a nonexistent table did not fail.",
		Recommendations: []string{"Store errors are being swallowed; check the query layer."},
		Priority:        PriorityHigh,
	}
}

func (a *Analyzer) notePool(context.Context) Result {
	notes := []string{"Store calls share one pgx pool per instance."}
	if a.poolSize > 0 {
		notes = append(notes, fmt.Sprintf("Pool size is %d connections.", a.poolSize))
	}
	return Result{
		Status:          StatusInfo,
		Message:         "Connection pool sizing is informational.",
		Details:         NoteDetails{Notes: notes},
		Recommendations: []string{"Raise pool_max_conns in DATABASE_URL when adding API instances is not enough."},
		Priority:        PriorityLow,
	}
}

func (a *Analyzer) noteFanOut(context.Context) Result {
	note := "Realtime events are delivered only to clients on this instance."
	if a.realtime.Distributed() {
		note = "Realtime events are mirrored through redis to every instance."
	}
	return Result{
		Status:   StatusInfo,
		Message:  "Realtime fan-out is informational.",
		Details:  NoteDetails{Notes: []string{note, "The change feed holds one dedicated store connection per instance."}},
		Priority: PriorityLow,
	}
}
