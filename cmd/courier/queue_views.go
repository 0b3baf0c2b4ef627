package main

import (
	"sort"
	"strconv"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"courier/internal/api"
)

const (
	displayTimeFormat = "2006-01-02 15:04"
	urlDisplayWidth   = 48
	errorDisplayWidth = 40
)

var classTitleCaser = cases.Title(language.Und)

// buildQueueListRows renders queue items newest-first for table output.
func buildQueueListRows(items []api.QueueItem) [][]string {
	sorted := make([]api.QueueItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		ti := parseQueueTime(sorted[i].EnqueuedAt)
		tj := parseQueueTime(sorted[j].EnqueuedAt)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return sorted[i].ID > sorted[j].ID
	})

	rows := make([][]string, 0, len(sorted))
	for _, item := range sorted {
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			formatClassLabel(item.Class),
			item.Method,
			truncateText(item.URL, urlDisplayWidth),
			formatAttempts(item.RetryCount, item.MaxRetries),
			formatDisplayTime(item.EnqueuedAt),
			truncateText(item.LastError, errorDisplayWidth),
		})
	}
	return rows
}

// buildDepthRows renders per-class pending counts sorted by class name.
func buildDepthRows(byClass map[string]int) [][]string {
	classes := make([]string, 0, len(byClass))
	for class := range byClass {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	rows := make([][]string, 0, len(classes))
	for _, class := range classes {
		rows = append(rows, []string{
			formatClassLabel(class),
			strconv.Itoa(byClass[class]),
		})
	}
	return rows
}

func formatClassLabel(class string) string {
	if class == "" {
		return "-"
	}
	return classTitleCaser.String(class)
}

func formatAttempts(retryCount, maxRetries int) string {
	return strconv.Itoa(retryCount) + "/" + strconv.Itoa(maxRetries)
}

func formatDisplayTime(value string) string {
	if value == "" {
		return "-"
	}
	parsed := parseQueueTime(value)
	if parsed.IsZero() {
		return value
	}
	return parsed.UTC().Format(displayTimeFormat)
}

func parseQueueTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func truncateText(value string, limit int) string {
	if value == "" {
		return "-"
	}
	if limit <= 3 || len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}
