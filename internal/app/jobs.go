package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gplanner/internal/auth"
	"gplanner/internal/google"
	"gplanner/internal/planner"
	"gplanner/internal/syncer"
	"gplanner/internal/telegram"
	"gplanner/pkg/logx"
)

const (
	planJobID   = "daily_plan"
	notifyJobID = "daily_notify"
)

// planJob materializes today's plan list. It holds its dependencies
// explicitly so a config reload can re-register it without closure state.
type planJob struct {
	auth    *auth.Manager
	syncer  *syncer.Syncer
	planner *planner.Planner
	log     logx.Logger
}

func (j *planJob) Run(ctx context.Context) error {
	if _, err := j.auth.GetValid(ctx); err != nil {
		if errors.Is(err, auth.ErrUnavailable) {
			j.log.Info("credential unavailable, skipping plan cycle", logx.Err(err))
			return nil
		}
		return err
	}
	j.syncer.Sync(ctx)
	_, err := j.planner.Generate(ctx, false)
	return err
}

// notifyJob syncs state, asks the recommendation engine for guidance and
// pushes it to the chat.
type notifyJob struct {
	auth        *auth.Manager
	syncer      *syncer.Syncer
	recommender planner.Recommender
	sender      *telegram.Sender
	loc         *time.Location
	log         logx.Logger
	now         func() time.Time
}

func (j *notifyJob) Run(ctx context.Context) error {
	if _, err := j.auth.GetValid(ctx); err != nil {
		if errors.Is(err, auth.ErrUnavailable) {
			j.log.Info("credential unavailable, skipping notify cycle", logx.Err(err))
			return nil
		}
		return err
	}

	snap := j.syncer.Sync(ctx)
	text, err := j.recommender.Generate(ctx, j.buildPrompt(snap))
	if err != nil {
		return fmt.Errorf("recommendation: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		j.log.Info("empty recommendation, nothing to send")
		return nil
	}
	if !j.sender.Send(ctx, text) {
		return errors.New("telegram delivery incomplete")
	}
	return nil
}

func (j *notifyJob) buildPrompt(snap *syncer.Snapshot) string {
	now := j.now().In(j.loc)

	var sb strings.Builder
	sb.WriteString("Help me plan my events for today alone. ")
	sb.WriteString("This scheduled job runs every 30 mins within this range.\n")
	sb.WriteString("The current time is " + now.Format("Monday, 02 Jan 2006 15:04") + ". ")
	sb.WriteString("Give hourly tasks based on my calendar and tasks. ")
	sb.WriteString("I'm a very bad procrastinator with ADHD. I need your help badly.\n")
	sb.WriteString("Keep the message concise. No styled characters needed. ")
	sb.WriteString("eg. Cooking(Priority Lvl) -> 12pm - 1pm - Short Advice\n")
	sb.WriteString("The day starts at 7.30am and ends at 12.30am. ")
	sb.WriteString("For the first run at 7.30am, plan the whole day with approximate time slots and buffer time per task. ")
	sb.WriteString("If the time is later than 7.30am, only plan the next few hours ahead. ")
	sb.WriteString("Give me a progress report with score two times: at 2pm and at 12am.\n")

	sb.WriteString("Tasks:\n")
	if snap != nil {
		for _, t := range snap.Tasks {
			writeTaskLine(&sb, t)
		}
	}
	sb.WriteString("Calendar:\n")
	if snap != nil {
		for _, e := range snap.Events {
			writeEventLine(&sb, e)
		}
	}
	return sb.String()
}

func writeTaskLine(sb *strings.Builder, t google.Task) {
	sb.WriteString("- " + t.Title)
	if t.Status != "" {
		sb.WriteString(" [" + t.Status + "]")
	}
	if t.Due != "" {
		sb.WriteString(" due " + t.Due)
	}
	sb.WriteString("\n")
}

func writeEventLine(sb *strings.Builder, e google.Event) {
	sb.WriteString("- " + e.Summary)
	if e.Start != nil {
		when := e.Start.DateTime
		if when == "" {
			when = e.Start.Date
		}
		if when != "" {
			sb.WriteString(" at " + when)
		}
	}
	if e.Location != "" {
		sb.WriteString(" @ " + e.Location)
	}
	sb.WriteString("\n")
}
