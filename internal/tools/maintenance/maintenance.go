// Package maintenance implements the operator utility behind cmd/maintenance:
// read-model rebuilds, stream statistics, point-in-time state reads, and
// timeline windows over the event journal.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/louisbranch/brigade/internal/domain/event"
	"github.com/louisbranch/brigade/internal/projection"
	"github.com/louisbranch/brigade/internal/storage"
	"github.com/louisbranch/brigade/internal/storage/memory"
	"github.com/louisbranch/brigade/internal/storage/sqlite"
	"github.com/louisbranch/brigade/internal/timeline"
)

// Config holds maintenance command configuration.
type Config struct {
	AggregateID       string
	AggregateIDs      string
	EventsDBPath      string        `env:"BRIGADE_EVENTS_DB_PATH"`
	ProjectionsDBPath string        `env:"BRIGADE_PROJECTIONS_DB_PATH"`
	Timeout           time.Duration `env:"BRIGADE_MAINTENANCE_TIMEOUT" envDefault:"10m"`
	Stats             bool
	Integrity         bool
	At                string
	From              string
	To                string
	JSONOutput        bool
}

type envConfig struct {
	EventsDBPath      string        `env:"BRIGADE_EVENTS_DB_PATH"`
	ProjectionsDBPath string        `env:"BRIGADE_PROJECTIONS_DB_PATH"`
	Timeout           time.Duration `env:"BRIGADE_MAINTENANCE_TIMEOUT" envDefault:"10m"`
}

// ParseConfig parses environment defaults and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var envCfg envConfig
	if err := env.Parse(&envCfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := Config{
		EventsDBPath:      envCfg.EventsDBPath,
		ProjectionsDBPath: envCfg.ProjectionsDBPath,
		Timeout:           envCfg.Timeout,
	}
	if cfg.EventsDBPath == "" {
		cfg.EventsDBPath = filepath.Join("data", "brigade-events.db")
	}
	if cfg.ProjectionsDBPath == "" {
		cfg.ProjectionsDBPath = filepath.Join("data", "brigade-projections.db")
	}

	fs.StringVar(&cfg.AggregateID, "aggregate-id", "", "order or session id to operate on")
	fs.StringVar(&cfg.AggregateIDs, "aggregate-ids", "", "comma-separated order or session ids to operate on")
	fs.StringVar(&cfg.EventsDBPath, "events-db-path", cfg.EventsDBPath, "path to events sqlite database (default: BRIGADE_EVENTS_DB_PATH or data/brigade-events.db)")
	fs.StringVar(&cfg.ProjectionsDBPath, "projections-db-path", cfg.ProjectionsDBPath, "path to projections sqlite database (default: BRIGADE_PROJECTIONS_DB_PATH or data/brigade-projections.db)")
	fs.BoolVar(&cfg.Stats, "stats", false, "print event stream statistics instead of rebuilding")
	fs.BoolVar(&cfg.Integrity, "integrity", false, "rebuild into a scratch store and compare against stored read models")
	fs.StringVar(&cfg.At, "at", "", "print aggregate state as of this RFC3339 instant instead of rebuilding")
	fs.StringVar(&cfg.From, "from", "", "timeline window start (RFC3339, requires -to)")
	fs.StringVar(&cfg.To, "to", "", "timeline window end (RFC3339, requires -from)")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output JSON reports")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the maintenance command against the SQLite stores.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if _, err := resolveAggregateIDs(cfg.AggregateID, cfg.AggregateIDs); err != nil {
		return err
	}
	if err := validateModes(cfg); err != nil {
		return err
	}

	eventStore, readModels, err := openStores(cfg.EventsDBPath, cfg.ProjectionsDBPath)
	if err != nil {
		return err
	}
	return runWithDeps(ctx, cfg, eventStore, readModels, out, errOut)
}

type closableEventStore interface {
	storage.EventStore
	Close() error
}

type closableReadModelStore interface {
	storage.ReadModelStore
	Close() error
}

// runWithDeps contains the core maintenance logic with injectable stores. It
// owns the store lifecycle.
func runWithDeps(ctx context.Context, cfg Config, events closableEventStore, readModels closableReadModelStore, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	defer func() {
		if err := events.Close(); err != nil {
			fmt.Fprintf(errOut, "Error: close event store: %v\n", err)
		}
		if err := readModels.Close(); err != nil {
			fmt.Fprintf(errOut, "Error: close read model store: %v\n", err)
		}
	}()

	ids, err := resolveAggregateIDs(cfg.AggregateID, cfg.AggregateIDs)
	if err != nil {
		return err
	}
	if err := validateModes(cfg); err != nil {
		return err
	}

	failed := false
	for _, id := range ids {
		result := runAggregate(ctx, cfg, events, readModels, id)
		if cfg.JSONOutput {
			outputJSON(out, errOut, result)
		} else {
			prefix := ""
			if len(ids) > 1 {
				prefix = fmt.Sprintf("[%s] ", id)
			}
			printResult(out, errOut, result, prefix)
		}
		if result.ExitCode != 0 {
			failed = true
		}
	}
	if failed {
		return errors.New("maintenance failed")
	}
	return nil
}

func validateModes(cfg Config) error {
	modes := 0
	if cfg.Stats {
		modes++
	}
	if cfg.Integrity {
		modes++
	}
	if cfg.At != "" {
		modes++
	}
	if cfg.From != "" || cfg.To != "" {
		if cfg.From == "" || cfg.To == "" {
			return errors.New("-from and -to must be provided together")
		}
		modes++
	}
	if modes > 1 {
		return errors.New("-stats, -integrity, -at, and -from/-to are mutually exclusive")
	}
	return nil
}

type runResult struct {
	AggregateID string          `json:"aggregate_id"`
	Mode        string          `json:"mode"`
	Report      json.RawMessage `json:"report,omitempty"`
	Error       string          `json:"error,omitempty"`
	ExitCode    int             `json:"-"`
}

type rebuildReport struct {
	LastVersion uint64 `json:"last_version"`
}

type statsReport struct {
	TotalEvents     int            `json:"total_events"`
	CountsByType    map[string]int `json:"counts_by_type"`
	CountsByActor   map[string]int `json:"counts_by_actor"`
	FirstRecordedAt time.Time      `json:"first_recorded_at"`
	LastRecordedAt  time.Time      `json:"last_recorded_at"`
	DurationSeconds float64        `json:"duration_seconds"`
}

type stateAtReport struct {
	At     time.Time       `json:"at"`
	Domain string          `json:"domain"`
	Found  bool            `json:"found"`
	State  json.RawMessage `json:"state,omitempty"`
}

type windowReport struct {
	From    time.Time        `json:"from"`
	To      time.Time        `json:"to"`
	Entries []timeline.Entry `json:"entries"`
}

type integrityReport struct {
	Domain      string `json:"domain"`
	Match       bool   `json:"match"`
	StoredFound bool   `json:"stored_found"`
}

func runAggregate(ctx context.Context, cfg Config, events storage.EventStore, readModels storage.ReadModelStore, aggregateID string) runResult {
	result := runResult{AggregateID: aggregateID}

	switch {
	case cfg.Stats:
		result.Mode = "stats"
		return finishResult(result, runStats(ctx, events, aggregateID))
	case cfg.Integrity:
		result.Mode = "integrity"
		report, err := runIntegrity(ctx, events, readModels, aggregateID)
		res := finishResult(result, func() (any, error) { return report, err })
		if err == nil && report.StoredFound && !report.Match {
			res.ExitCode = 1
		}
		return res
	case cfg.At != "":
		result.Mode = "state-at"
		return finishResult(result, runStateAt(ctx, events, aggregateID, cfg.At))
	case cfg.From != "":
		result.Mode = "window"
		return finishResult(result, runWindow(ctx, events, aggregateID, cfg.From, cfg.To))
	default:
		result.Mode = "rebuild"
		return finishResult(result, runRebuild(ctx, events, readModels, aggregateID))
	}
}

type reportFunc func() (any, error)

func finishResult(result runResult, run reportFunc) runResult {
	report, err := run()
	if err != nil {
		result.Error = err.Error()
		result.ExitCode = 1
		return result
	}
	payload, err := json.Marshal(report)
	if err != nil {
		result.Error = fmt.Sprintf("encode report: %v", err)
		result.ExitCode = 1
		return result
	}
	result.Report = payload
	return result
}

func runRebuild(ctx context.Context, events storage.EventStore, readModels storage.ReadModelStore, aggregateID string) reportFunc {
	return func() (any, error) {
		applier := projection.NewApplier(events, readModels)
		if err := applier.Rebuild(ctx, aggregateID); err != nil {
			return nil, fmt.Errorf("rebuild read model: %w", err)
		}
		head, err := events.LatestVersion(ctx, aggregateID)
		if err != nil {
			return nil, fmt.Errorf("read stream head: %w", err)
		}
		return rebuildReport{LastVersion: head}, nil
	}
}

func runStats(ctx context.Context, events storage.EventStore, aggregateID string) reportFunc {
	return func() (any, error) {
		stats, err := timeline.NewService(events).Statistics(ctx, aggregateID)
		if err != nil {
			return nil, fmt.Errorf("compute statistics: %w", err)
		}
		report := statsReport{
			TotalEvents:     stats.TotalEvents,
			CountsByType:    make(map[string]int, len(stats.CountsByType)),
			CountsByActor:   make(map[string]int, len(stats.CountsByActor)),
			FirstRecordedAt: stats.FirstRecordedAt,
			LastRecordedAt:  stats.LastRecordedAt,
			DurationSeconds: stats.Duration.Seconds(),
		}
		for eventType, count := range stats.CountsByType {
			report.CountsByType[string(eventType)] = count
		}
		for actorType, count := range stats.CountsByActor {
			report.CountsByActor[string(actorType)] = count
		}
		return report, nil
	}
}

func runStateAt(ctx context.Context, events storage.EventStore, aggregateID, at string) reportFunc {
	return func() (any, error) {
		instant, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return nil, fmt.Errorf("parse -at: %w", err)
		}
		domain, err := streamDomain(ctx, events, aggregateID)
		if err != nil {
			return nil, err
		}

		service := timeline.NewService(events)
		report := stateAtReport{At: instant, Domain: domain}
		var state any
		switch domain {
		case "order":
			orderState, found, err := service.OrderStateAt(ctx, aggregateID, instant)
			if err != nil {
				return nil, fmt.Errorf("replay order state: %w", err)
			}
			report.Found = found
			state = orderState
		case "session":
			sessionState, found, err := service.SessionStateAt(ctx, aggregateID, instant)
			if err != nil {
				return nil, fmt.Errorf("replay session state: %w", err)
			}
			report.Found = found
			state = sessionState
		default:
			return nil, fmt.Errorf("unknown stream domain: %s", domain)
		}
		if report.Found {
			payload, err := json.Marshal(state)
			if err != nil {
				return nil, fmt.Errorf("encode state: %w", err)
			}
			report.State = payload
		}
		return report, nil
	}
}

func runWindow(ctx context.Context, events storage.EventStore, aggregateID, from, to string) reportFunc {
	return func() (any, error) {
		start, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return nil, fmt.Errorf("parse -from: %w", err)
		}
		end, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return nil, fmt.Errorf("parse -to: %w", err)
		}
		if end.Before(start) {
			return nil, errors.New("-to must not be before -from")
		}
		entries, err := timeline.NewService(events).Window(ctx, aggregateID, start, end)
		if err != nil {
			return nil, fmt.Errorf("load timeline window: %w", err)
		}
		return windowReport{From: start, To: end, Entries: entries}, nil
	}
}

// runIntegrity rebuilds the aggregate's record into a scratch store and
// compares it with the stored one. A missing stored record is reported, not
// treated as a failure.
func runIntegrity(ctx context.Context, events storage.EventStore, readModels storage.ReadModelStore, aggregateID string) (integrityReport, error) {
	report := integrityReport{}

	domain, err := streamDomain(ctx, events, aggregateID)
	if err != nil {
		return report, err
	}
	report.Domain = domain

	scratch := memory.NewReadModelStore()
	if err := projection.NewApplier(events, scratch).Rebuild(ctx, aggregateID); err != nil {
		return report, fmt.Errorf("rebuild into scratch store: %w", err)
	}

	switch domain {
	case "order":
		rebuilt, err := scratch.GetOrder(ctx, aggregateID)
		if err != nil {
			return report, fmt.Errorf("read rebuilt record: %w", err)
		}
		stored, err := readModels.GetOrder(ctx, aggregateID)
		if errors.Is(err, storage.ErrNotFound) {
			return report, nil
		}
		if err != nil {
			return report, fmt.Errorf("read stored record: %w", err)
		}
		report.StoredFound = true
		report.Match = reflect.DeepEqual(rebuilt, stored)
	case "session":
		rebuilt, err := scratch.GetSession(ctx, aggregateID)
		if err != nil {
			return report, fmt.Errorf("read rebuilt record: %w", err)
		}
		stored, err := readModels.GetSession(ctx, aggregateID)
		if errors.Is(err, storage.ErrNotFound) {
			return report, nil
		}
		if err != nil {
			return report, fmt.Errorf("read stored record: %w", err)
		}
		report.StoredFound = true
		report.Match = reflect.DeepEqual(rebuilt, stored)
	default:
		return report, fmt.Errorf("unknown stream domain: %s", domain)
	}
	return report, nil
}

// streamDomain reports whether a stream belongs to an order or a session by
// inspecting its first event.
func streamDomain(ctx context.Context, events storage.EventStore, aggregateID string) (string, error) {
	stream, err := events.Load(ctx, aggregateID)
	if err != nil {
		return "", fmt.Errorf("load events: %w", err)
	}
	if len(stream) == 0 {
		return "", fmt.Errorf("aggregate %s has no events", aggregateID)
	}
	return stream[0].Type.Domain(), nil
}

func resolveAggregateIDs(singleID, list string) ([]string, error) {
	if singleID == "" && list == "" {
		return nil, fmt.Errorf("-aggregate-id or -aggregate-ids is required")
	}
	if singleID != "" && list != "" {
		return nil, fmt.Errorf("-aggregate-id cannot be combined with -aggregate-ids")
	}
	if singleID != "" {
		return []string{singleID}, nil
	}
	ids := splitCSV(list)
	if len(ids) == 0 {
		return nil, fmt.Errorf("-aggregate-ids must contain at least one id")
	}
	return ids, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	output := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		output = append(output, trimmed)
	}
	return output
}

func outputJSON(out io.Writer, errOut io.Writer, result runResult) {
	encoded, err := json.Marshal(result)
	if err != nil {
		fmt.Fprintf(errOut, "Error: encode report: %v\n", err)
		return
	}
	fmt.Fprintln(out, string(encoded))
}

func printResult(out io.Writer, errOut io.Writer, result runResult, prefix string) {
	if result.Error != "" {
		fmt.Fprintf(errOut, "%sError: %s\n", prefix, result.Error)
		return
	}

	switch result.Mode {
	case "stats":
		var report statsReport
		if err := json.Unmarshal(result.Report, &report); err != nil {
			fmt.Fprintf(errOut, "%sError: decode report: %v\n", prefix, err)
			return
		}
		fmt.Fprintf(out, "%sStream %s: %d events over %s\n", prefix, result.AggregateID, report.TotalEvents, time.Duration(report.DurationSeconds*float64(time.Second)))
		fmt.Fprintf(out, "%sFirst recorded: %s\n", prefix, report.FirstRecordedAt.Format(time.RFC3339))
		fmt.Fprintf(out, "%sLast recorded:  %s\n", prefix, report.LastRecordedAt.Format(time.RFC3339))
		for eventType, count := range report.CountsByType {
			fmt.Fprintf(out, "%s- %s: %d\n", prefix, eventType, count)
		}
	case "state-at":
		var report stateAtReport
		if err := json.Unmarshal(result.Report, &report); err != nil {
			fmt.Fprintf(errOut, "%sError: decode report: %v\n", prefix, err)
			return
		}
		if !report.Found {
			fmt.Fprintf(out, "%sNo %s events recorded at or before %s\n", prefix, report.Domain, report.At.Format(time.RFC3339))
			return
		}
		fmt.Fprintf(out, "%sState of %s %s at %s:\n", prefix, report.Domain, result.AggregateID, report.At.Format(time.RFC3339))
		fmt.Fprintf(out, "%s%s\n", prefix, string(report.State))
	case "window":
		var report windowReport
		if err := json.Unmarshal(result.Report, &report); err != nil {
			fmt.Fprintf(errOut, "%sError: decode report: %v\n", prefix, err)
			return
		}
		fmt.Fprintf(out, "%sTimeline for %s (%s .. %s):\n", prefix, result.AggregateID, report.From.Format(time.RFC3339), report.To.Format(time.RFC3339))
		for _, entry := range report.Entries {
			fmt.Fprintf(out, "%s- v%d %s %s (%s by %s %s)\n", prefix, entry.Version, entry.RecordedAt.Format(time.RFC3339), entry.Title, entry.Type, entry.ActorType, entry.ActorID)
		}
	case "integrity":
		var report integrityReport
		if err := json.Unmarshal(result.Report, &report); err != nil {
			fmt.Fprintf(errOut, "%sError: decode report: %v\n", prefix, err)
			return
		}
		if !report.StoredFound {
			fmt.Fprintf(out, "%sIntegrity check for %s %s: no stored record (run a rebuild)\n", prefix, report.Domain, result.AggregateID)
			return
		}
		fmt.Fprintf(out, "%sIntegrity check for %s %s: match=%t\n", prefix, report.Domain, result.AggregateID, report.Match)
	default:
		var report rebuildReport
		if err := json.Unmarshal(result.Report, &report); err != nil {
			fmt.Fprintf(errOut, "%sError: decode report: %v\n", prefix, err)
			return
		}
		fmt.Fprintf(out, "%sRebuilt read model for %s through version %d\n", prefix, result.AggregateID, report.LastVersion)
	}
}

func openStores(eventsPath, projectionsPath string) (*sqlite.Store, *sqlite.Store, error) {
	events, err := openEventStore(eventsPath)
	if err != nil {
		return nil, nil, err
	}
	readModels, err := openReadModelStore(projectionsPath)
	if err != nil {
		_ = events.Close()
		return nil, nil, err
	}
	return events, readModels, nil
}

func openEventStore(path string) (*sqlite.Store, error) {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == "" {
		return nil, fmt.Errorf("events db path is required")
	}
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.OpenEvents(cleanPath, event.NewRegistry())
	if err != nil {
		return nil, fmt.Errorf("open events store: %w", err)
	}
	return store, nil
}

func openReadModelStore(path string) (*sqlite.Store, error) {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == "" {
		return nil, fmt.Errorf("projections db path is required")
	}
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.OpenProjections(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("open projections store: %w", err)
	}
	return store, nil
}
