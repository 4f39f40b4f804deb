package main

import (
	"strconv"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"inboxq/internal/queue"
)

var titleCaser = cases.Title(language.English)

func statusLabel(status queue.Status) string {
	if status == queue.StatusProgress {
		return "In Progress"
	}
	return titleCaser.String(status.String())
}

func priorityLabel(priority queue.Priority) string {
	return titleCaser.String(priority.String())
}

func buildQueueStatusRows(stats map[queue.Status]int) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, status := range queue.AllStatuses() {
		count, ok := stats[status]
		if !ok || count == 0 {
			continue
		}
		rows = append(rows, []string{statusLabel(status), strconv.Itoa(count)})
	}
	return rows
}

func buildQueueListRows(items []*queue.Item) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			truncate(item.Value, 60),
			statusLabel(item.Status),
			priorityLabel(item.Priority),
			item.UpdatedAt.Local().Format(time.DateTime),
		})
	}
	return rows
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

// itemView is the JSON shape of an item.
type itemView struct {
	ID         int64      `json:"id"`
	Value      string     `json:"value"`
	DedupKey   string     `json:"dedup_key"`
	Status     string     `json:"status"`
	Priority   string     `json:"priority"`
	ClaimToken string     `json:"claim_token,omitempty"`
	ClaimedAt  *time.Time `json:"claimed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func newItemView(item *queue.Item) itemView {
	return itemView{
		ID:         item.ID,
		Value:      item.Value,
		DedupKey:   item.DedupKey,
		Status:     item.Status.String(),
		Priority:   item.Priority.String(),
		ClaimToken: item.ClaimToken,
		ClaimedAt:  item.ClaimedAt,
		CreatedAt:  item.CreatedAt,
		UpdatedAt:  item.UpdatedAt,
	}
}
