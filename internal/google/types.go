package google

// EventTime is the start/end shape of a calendar event: either a
// timed moment or an all-day date.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Event is a calendar event on the primary calendar.
type Event struct {
	ID          string     `json:"id"`
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Start       *EventTime `json:"start,omitempty"`
	End         *EventTime `json:"end,omitempty"`
	Status      string     `json:"status,omitempty"`
}

// TaskList is a Google Tasks list.
type TaskList struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Task is a single task. ListID and ListTitle are filled in by
// FetchTasks so a flattened slice keeps its provenance.
type Task struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Notes   string `json:"notes,omitempty"`
	Status  string `json:"status,omitempty"`
	Due     string `json:"due,omitempty"`
	Updated string `json:"updated,omitempty"`

	ListID    string `json:"taskListId,omitempty"`
	ListTitle string `json:"taskListTitle,omitempty"`
}

type eventsPage struct {
	Items []Event `json:"items"`
}

type taskListsPage struct {
	Items []TaskList `json:"items"`
}

type tasksPage struct {
	Items []Task `json:"items"`
}
