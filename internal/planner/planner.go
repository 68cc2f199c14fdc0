// Package planner materializes a once-per-day plan as a Google Tasks
// list. The list title doubles as the idempotency key: one list per day,
// re-invocation returns the existing one.
package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gplanner/internal/google"
	"gplanner/internal/storage"
	"gplanner/internal/syncer"
	"gplanner/pkg/logx"
)

const (
	titlePrefix = "Daily Plan - "
	maxEntries  = 10
)

// defaultPlan is used when the recommendation engine returns nothing.
const defaultPlan = "08:00 AM - Morning focus block with coffee check-in\n" +
	"10:30 AM - Deep work sprint while listening to lo-fi beats\n" +
	"12:30 PM - Lunch break with a quick walk outside\n" +
	"15:00 PM - Catch up on emails and project notes\n" +
	"19:00 PM - Wind down with planning for tomorrow"

// Provider is the slice of the tasks client the planner needs.
type Provider interface {
	ListTaskLists(ctx context.Context) ([]google.TaskList, error)
	ListTasks(ctx context.Context, listID string) ([]google.Task, error)
	CreateTaskList(ctx context.Context, title string) (*google.TaskList, error)
	InsertTask(ctx context.Context, listID string, task google.Task) (*google.Task, error)
}

// Recommender produces plan text from a prompt.
type Recommender interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// SnapshotSource yields the latest synced calendar/tasks state.
type SnapshotSource interface {
	Current() *syncer.Snapshot
}

// Auditor records materialized artifacts; appends are best-effort.
type Auditor interface {
	AppendArtifact(ctx context.Context, a storage.ArtifactRecord) error
}

// Artifact describes the plan list that exists after Generate returns.
type Artifact struct {
	ListID  string
	Title   string
	Entries []string
	// Partial means some entries failed to insert; the list still exists
	// with the entries that made it.
	Partial bool
	// Existing means the list for today was already there and nothing was
	// created.
	Existing bool
}

type Planner struct {
	provider    Provider
	recommender Recommender
	snapshots   SnapshotSource
	auditor     Auditor // may be nil
	loc         *time.Location
	log         logx.Logger
	now         func() time.Time
}

func New(provider Provider, recommender Recommender, snapshots SnapshotSource, auditor Auditor, loc *time.Location, log logx.Logger) *Planner {
	if loc == nil {
		loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Planner{
		provider:    provider,
		recommender: recommender,
		snapshots:   snapshots,
		auditor:     auditor,
		loc:         loc,
		log:         log,
		now:         time.Now,
	}
}

// Generate produces today's plan list. Unless forceNew is set, an
// existing list with today's title short-circuits creation and is
// returned as-is.
func (p *Planner) Generate(ctx context.Context, forceNew bool) (*Artifact, error) {
	today := p.now().In(p.loc)
	title := titlePrefix + today.Format("2006-01-02")

	if !forceNew {
		if art, err := p.findExisting(ctx, title); err != nil {
			return nil, err
		} else if art != nil {
			p.log.Info("plan already exists", logx.String("title", title), logx.Int("entries", len(art.Entries)))
			p.audit(ctx, today, art)
			return art, nil
		}
	}

	lines := p.planLines(ctx, today)

	list, err := p.provider.CreateTaskList(ctx, title)
	if err != nil {
		return nil, err
	}

	due := time.Date(today.Year(), today.Month(), today.Day(), 23, 59, 0, 0, p.loc).Format(time.RFC3339)
	notes := "Auto-generated on " + today.Format(time.RFC3339)

	art := &Artifact{ListID: list.ID, Title: list.Title}
	if art.Title == "" {
		art.Title = title
	}
	if len(lines) > maxEntries {
		lines = lines[:maxEntries]
	}
	for _, line := range lines {
		if _, err := p.provider.InsertTask(ctx, list.ID, google.Task{
			Title: line,
			Notes: notes,
			Due:   due,
		}); err != nil {
			p.log.Warn("plan entry insert failed, continuing",
				logx.String("list", list.ID), logx.String("entry", line), logx.Err(err))
			art.Partial = true
			continue
		}
		art.Entries = append(art.Entries, line)
	}

	p.log.Info("plan materialized",
		logx.String("title", art.Title),
		logx.Int("entries", len(art.Entries)),
		logx.Bool("partial", art.Partial))
	p.audit(ctx, today, art)
	return art, nil
}

// findExisting returns the artifact for an already-materialized plan, or
// nil when no list carries today's title.
func (p *Planner) findExisting(ctx context.Context, title string) (*Artifact, error) {
	lists, err := p.provider.ListTaskLists(ctx)
	if err != nil {
		return nil, fmt.Errorf("inspect task lists: %w", err)
	}
	for _, list := range lists {
		if list.Title != title {
			continue
		}
		art := &Artifact{ListID: list.ID, Title: list.Title, Existing: true}
		tasks, err := p.provider.ListTasks(ctx, list.ID)
		if err != nil {
			return nil, fmt.Errorf("fetch tasks for existing list %s: %w", list.ID, err)
		}
		for _, t := range tasks {
			art.Entries = append(art.Entries, t.Title)
		}
		return art, nil
	}
	return nil, nil
}

// planLines asks the recommender for today's plan and normalizes it into
// task titles. Empty or failed recommendations fall back to the default
// plan rather than producing an empty list.
func (p *Planner) planLines(ctx context.Context, today time.Time) []string {
	text := ""
	if p.recommender != nil {
		out, err := p.recommender.Generate(ctx, p.buildPrompt(today))
		if err != nil {
			p.log.Warn("recommendation failed, using default plan", logx.Err(err))
		} else {
			text = strings.TrimSpace(out)
		}
	}
	if text == "" {
		text = defaultPlan
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Trim(line, "-•* \t")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		lines = []string{text}
	}
	return lines
}

func (p *Planner) buildPrompt(today time.Time) string {
	var sb strings.Builder
	sb.WriteString("You are a productivity assistant. Build a concise schedule for today.\n")
	sb.WriteString("Today is " + today.Format("Monday, 02 January 2006") + ".")
	sb.WriteString("\nFocus on 5-7 entries. Each line must start with a realistic time like '08:30 AM'")
	sb.WriteString(" followed by a short description and one fun/filler detail.")

	var snap *syncer.Snapshot
	if p.snapshots != nil {
		snap = p.snapshots.Current()
	}
	sb.WriteString("\nExisting calendar events:\n")
	if snap != nil {
		for _, e := range snap.Events {
			sb.WriteString(formatEvent(e))
		}
	}
	sb.WriteString("\nExisting tasks:\n")
	if snap != nil {
		for _, t := range snap.Tasks {
			sb.WriteString(formatTask(t))
		}
	}
	return sb.String()
}

func formatEvent(e google.Event) string {
	var when string
	if e.Start != nil {
		when = e.Start.DateTime
		if when == "" {
			when = e.Start.Date
		}
	}
	return fmt.Sprintf("- %s (%s)\n", e.Summary, when)
}

func formatTask(t google.Task) string {
	if t.Due != "" {
		return fmt.Sprintf("- %s (due %s, %s)\n", t.Title, t.Due, t.Status)
	}
	return fmt.Sprintf("- %s (%s)\n", t.Title, t.Status)
}

func (p *Planner) audit(ctx context.Context, today time.Time, art *Artifact) {
	if p.auditor == nil {
		return
	}
	err := p.auditor.AppendArtifact(ctx, storage.ArtifactRecord{
		Date:      today.Format("2006-01-02"),
		ListID:    art.ListID,
		Title:     art.Title,
		Entries:   len(art.Entries),
		Partial:   art.Partial,
		Existing:  art.Existing,
		CreatedAt: p.now(),
	})
	if err != nil {
		p.log.Warn("artifact audit append failed", logx.Err(err))
	}
}
