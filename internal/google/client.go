// Package google is a thin REST client for the Calendar and Tasks APIs.
// Read paths degrade to empty results on failure so periodic sync never
// aborts a cycle; write paths surface their errors.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"gplanner/pkg/logx"
)

const (
	defaultCalendarBaseURL = "https://www.googleapis.com/calendar/v3"
	defaultTasksBaseURL    = "https://tasks.googleapis.com/tasks/v1"

	defaultTimeout        = 30 * time.Second
	defaultSyncWindowDays = 7

	maxEventsPerFetch = 50
	maxListsPerFetch  = 100
	maxTasksPerFetch  = 100
)

// TokenSource yields a bearer token for one API call. The credential
// lifecycle manager provides the canonical implementation.
type TokenSource func(ctx context.Context) (string, error)

type Config struct {
	// CalendarBaseURL and TasksBaseURL exist for tests; empty means the
	// public endpoints.
	CalendarBaseURL string
	TasksBaseURL    string

	Timeout        time.Duration
	SyncWindowDays int
}

type Client struct {
	cfg   Config
	http  *http.Client
	token TokenSource
	log   logx.Logger
	now   func() time.Time
}

func NewClient(cfg Config, token TokenSource, log logx.Logger) *Client {
	if cfg.CalendarBaseURL == "" {
		cfg.CalendarBaseURL = defaultCalendarBaseURL
	}
	if cfg.TasksBaseURL == "" {
		cfg.TasksBaseURL = defaultTasksBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.SyncWindowDays <= 0 {
		cfg.SyncWindowDays = defaultSyncWindowDays
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		token: token,
		log:   log,
		now:   time.Now,
	}
}

// FetchEvents returns upcoming primary-calendar events inside the sync
// window. Any failure is logged and reported as an empty slice.
func (c *Client) FetchEvents(ctx context.Context) []Event {
	now := c.now().UTC()
	q := url.Values{}
	q.Set("timeMin", now.Format(time.RFC3339))
	q.Set("timeMax", now.AddDate(0, 0, c.cfg.SyncWindowDays).Format(time.RFC3339))
	q.Set("maxResults", strconv.Itoa(maxEventsPerFetch))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")

	var page eventsPage
	err := c.doJSON(ctx, http.MethodGet, c.cfg.CalendarBaseURL+"/calendars/primary/events?"+q.Encode(), nil, &page)
	if err != nil {
		c.log.Warn("calendar fetch failed", logx.Err(err))
		return nil
	}
	c.log.Debug("fetched calendar events", logx.Int("count", len(page.Items)))
	return page.Items
}

// FetchTasks flattens every task across every task list, annotating each
// task with its list. A single bad list is skipped; only the list-of-lists
// call failing empties the result.
func (c *Client) FetchTasks(ctx context.Context) []Task {
	lists, err := c.ListTaskLists(ctx)
	if err != nil {
		c.log.Warn("task list enumeration failed", logx.Err(err))
		return nil
	}

	var all []Task
	for _, list := range lists {
		tasks, err := c.ListTasks(ctx, list.ID)
		if err != nil {
			c.log.Warn("task fetch failed for list, continuing",
				logx.String("list", list.Title), logx.Err(err))
			continue
		}
		for _, t := range tasks {
			t.ListID = list.ID
			t.ListTitle = list.Title
			all = append(all, t)
		}
	}
	c.log.Debug("fetched tasks", logx.Int("lists", len(lists)), logx.Int("count", len(all)))
	return all
}

// ListTaskLists enumerates the user's task lists.
func (c *Client) ListTaskLists(ctx context.Context) ([]TaskList, error) {
	var page taskListsPage
	u := fmt.Sprintf("%s/users/@me/lists?maxResults=%d", c.cfg.TasksBaseURL, maxListsPerFetch)
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// ListTasks returns the tasks of one list, completed included.
func (c *Client) ListTasks(ctx context.Context, listID string) ([]Task, error) {
	var page tasksPage
	u := fmt.Sprintf("%s/lists/%s/tasks?showCompleted=true&showHidden=false&maxResults=%d",
		c.cfg.TasksBaseURL, url.PathEscape(listID), maxTasksPerFetch)
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// CreateTaskList creates a new task list with the given title.
func (c *Client) CreateTaskList(ctx context.Context, title string) (*TaskList, error) {
	var created TaskList
	u := c.cfg.TasksBaseURL + "/users/@me/lists"
	if err := c.doJSON(ctx, http.MethodPost, u, map[string]string{"title": title}, &created); err != nil {
		return nil, fmt.Errorf("create task list %q: %w", title, err)
	}
	return &created, nil
}

// InsertTask appends a task to the given list.
func (c *Client) InsertTask(ctx context.Context, listID string, task Task) (*Task, error) {
	var created Task
	u := fmt.Sprintf("%s/lists/%s/tasks", c.cfg.TasksBaseURL, url.PathEscape(listID))
	if err := c.doJSON(ctx, http.MethodPost, u, task, &created); err != nil {
		return nil, fmt.Errorf("insert task into %s: %w", listID, err)
	}
	return &created, nil
}

func (c *Client) doJSON(ctx context.Context, method, rawURL string, body, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d: %s", method, req.URL.Path, resp.StatusCode, snippet(data))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		b = b[:max]
	}
	return string(b)
}
