package domain

import (
	"sort"
	"time"
)

var columnTitles = map[TaskStatus]string{
	StatusTodo:        "To Do",
	StatusInProgress:  "In Progress",
	StatusNeedsReview: "Needs Review",
	StatusDone:        "Done",
}

// Columns groups unarchived tasks by status, in board order.
func Columns(tasks []Task) []Column {
	byStatus := make(map[TaskStatus][]Task, len(Statuses))
	for _, t := range tasks {
		if t.Archived {
			continue
		}
		byStatus[t.Status] = append(byStatus[t.Status], t)
	}
	cols := make([]Column, 0, len(Statuses))
	for _, s := range Statuses {
		list := byStatus[s]
		if list == nil {
			list = []Task{}
		}
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Position != list[j].Position {
				return list[i].Position < list[j].Position
			}
			return list[i].TaskNumber < list[j].TaskNumber
		})
		cols = append(cols, Column{ID: s, Title: columnTitles[s], Tasks: list})
	}
	return cols
}

// ComputeMetrics aggregates counts, points, cycle time and velocity over the
// unarchived tasks. Velocity is the story points completed inside the window.
func ComputeMetrics(tasks []Task, now time.Time) BoardMetrics {
	var (
		m          BoardMetrics
		cycleTotal time.Duration
		cycleCount int
	)
	week := now.Add(-7 * 24 * time.Hour)
	month := now.Add(-30 * 24 * time.Hour)
	for _, t := range tasks {
		if t.Archived {
			continue
		}
		var points float64
		if t.StoryPoints != nil {
			points = *t.StoryPoints
		}
		m.TotalTasks++
		m.TotalPoints += points
		if t.Status != StatusDone {
			continue
		}
		m.CompletedTasks++
		m.CompletedPoints += points
		if t.CompletedAt == nil {
			continue
		}
		if t.StartedAt != nil && !t.CompletedAt.Before(*t.StartedAt) {
			cycleTotal += t.CompletedAt.Sub(*t.StartedAt)
			cycleCount++
		}
		if t.CompletedAt.After(week) {
			m.VelocityLast7Days += points
		}
		if t.CompletedAt.After(month) {
			m.VelocityLast30Days += points
		}
	}
	if cycleCount > 0 {
		avg := cycleTotal.Hours() / float64(cycleCount)
		m.AvgCycleTimeHours = &avg
	}
	return m
}
