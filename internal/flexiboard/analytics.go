package flexiboard

import (
	"time"

	"github.com/starford/flexiboard/internal/models"
)

// Overview is the headline block of board analytics.
type Overview struct {
	TotalItems      int `json:"total_items"`
	CompletedItems  int `json:"completed_items"`
	Overdue         int `json:"overdue"`
	ActiveAssignees int `json:"active_assignees"`
}

// Bottleneck is the population and average age of one status.
type Bottleneck struct {
	Status  string  `json:"status"`
	Count   int     `json:"count"`
	AvgDays float64 `json:"avg_days"`
}

// Trends covers the last seven days.
type Trends struct {
	CreatedThisWeek       int          `json:"created_this_week"`
	CompletedThisWeek     int          `json:"completed_this_week"`
	AverageCompletionDays float64      `json:"average_completion_days"`
	Bottlenecks           []Bottleneck `json:"bottlenecks"`
}

// ColumnAnalytics is the value distribution of one column.
type ColumnAnalytics struct {
	ColumnID     string            `json:"column_id"`
	ColumnName   string            `json:"column_name"`
	ColumnType   models.ColumnType `json:"column_type"`
	UniqueValues int               `json:"unique_values"`
	Distribution map[string]int    `json:"distribution"`
}

// AutomationStat reports an automation's run history.
type AutomationStat struct {
	AutomationID   string     `json:"automation_id"`
	AutomationName string     `json:"automation_name"`
	RunCount       int        `json:"run_count"`
	LastRun        *time.Time `json:"last_run,omitempty"`
	Enabled        bool       `json:"enabled"`
}

// Analytics is the full analytics report of a board.
type Analytics struct {
	Overview        Overview          `json:"overview"`
	Trends          Trends            `json:"trends"`
	ColumnAnalytics []ColumnAnalytics `json:"column_analytics"`
	AutomationStats []AutomationStat  `json:"automation_stats"`
}

const day = 24 * time.Hour

// Analytics computes the board report.
func (e *Engine) Analytics() Analytics {
	b := e.board
	now := e.now()
	cutoff := now.Add(-7 * day)

	var a Analytics
	a.Overview.TotalItems = len(b.Items)
	assignees := make(map[string]struct{})
	var completedAge time.Duration
	byStatus := make(map[string][]*models.Item)
	var statusOrder []string

	for _, it := range b.Items {
		status := e.statusOf(it)
		done := isDone(status)
		if done {
			a.Overview.CompletedItems++
			completedAge += it.UpdatedAt.Sub(it.CreatedAt)
			if !it.UpdatedAt.Before(cutoff) {
				a.Trends.CompletedThisWeek++
			}
		}
		if !done {
			if due, ok := e.dueDate(it); ok && due.Before(now) {
				a.Overview.Overdue++
			}
		}
		for _, u := range it.Assignees {
			assignees[u] = struct{}{}
		}
		if !it.CreatedAt.Before(cutoff) {
			a.Trends.CreatedThisWeek++
		}
		if status == "" {
			status = "No Status"
		}
		if _, ok := byStatus[status]; !ok {
			statusOrder = append(statusOrder, status)
		}
		byStatus[status] = append(byStatus[status], it)
	}
	a.Overview.ActiveAssignees = len(assignees)
	if a.Overview.CompletedItems > 0 {
		a.Trends.AverageCompletionDays = completedAge.Hours() / 24 / float64(a.Overview.CompletedItems)
	}

	a.Trends.Bottlenecks = []Bottleneck{}
	for _, s := range statusOrder {
		items := byStatus[s]
		var age time.Duration
		for _, it := range items {
			age += it.UpdatedAt.Sub(it.CreatedAt)
		}
		a.Trends.Bottlenecks = append(a.Trends.Bottlenecks, Bottleneck{
			Status:  s,
			Count:   len(items),
			AvgDays: age.Hours() / 24 / float64(len(items)),
		})
	}

	a.ColumnAnalytics = []ColumnAnalytics{}
	for _, c := range b.Columns {
		ca := ColumnAnalytics{
			ColumnID:     c.ID,
			ColumnName:   c.Title,
			ColumnType:   c.Type,
			Distribution: make(map[string]int),
		}
		unique := make(map[string]struct{})
		for _, it := range b.Items {
			v := it.Data[c.ID]
			key := toString(v)
			if v != nil {
				unique[key] = struct{}{}
			}
			if key == "" {
				key = "Empty"
			}
			ca.Distribution[key]++
		}
		ca.UniqueValues = len(unique)
		a.ColumnAnalytics = append(a.ColumnAnalytics, ca)
	}

	a.AutomationStats = []AutomationStat{}
	for _, auto := range b.Automations {
		a.AutomationStats = append(a.AutomationStats, AutomationStat{
			AutomationID:   auto.ID,
			AutomationName: auto.Name,
			RunCount:       auto.RunCount,
			LastRun:        auto.LastRun,
			Enabled:        auto.Enabled,
		})
	}
	return a
}

// dueDate is the first set date or datetime cell of the item.
func (e *Engine) dueDate(it *models.Item) (time.Time, bool) {
	for _, c := range e.dateColumns() {
		if t, ok := toTime(it.Data[c.ID]); ok {
			return t, true
		}
	}
	return time.Time{}, false
}
