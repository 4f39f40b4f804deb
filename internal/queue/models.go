package queue

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status is the persisted lifecycle state of an item.
type Status int

const (
	StatusDone     Status = 0
	StatusProgress Status = 1
	StatusPending  Status = 2
)

var allStatuses = []Status{StatusPending, StatusProgress, StatusDone}

// AllStatuses returns every status in display order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusProgress:
		return "progress"
	case StatusPending:
		return "pending"
	default:
		return "status(" + strconv.Itoa(int(s)) + ")"
	}
}

// ParseStatus converts a name or numeric literal into a Status.
func ParseStatus(value string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "done", "0":
		return StatusDone, nil
	case "progress", "in_progress", "1":
		return StatusProgress, nil
	case "pending", "2":
		return StatusPending, nil
	default:
		return 0, fmt.Errorf("unknown status %q", value)
	}
}

// Priority orders pending items; higher values are claimed first.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3

	// PriorityMax is assigned to reclaimed zombie items.
	PriorityMax = PriorityHigh
)

// Valid reports whether p may be stored.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityHigh
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return "priority(" + strconv.Itoa(int(p)) + ")"
	}
}

// ParsePriority converts low|medium|high (or 1..3) into a Priority.
func ParsePriority(value string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "low", "1":
		return PriorityLow, nil
	case "medium", "2":
		return PriorityMedium, nil
	case "high", "max", "3":
		return PriorityHigh, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPriority, value)
	}
}

// Item is one unit of work persisted in inbox_items.
type Item struct {
	ID         int64
	Value      string
	DedupKey   string
	Status     Status
	Priority   Priority
	ClaimToken string
	ClaimedAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Snapshot is the pre-claim state restored when processing fails.
type Snapshot struct {
	Status   Status
	Priority Priority
}

// Claim is a leased item returned by Store.Claim.
type Claim struct {
	Item     Item
	Token    string
	Snapshot Snapshot
}

// Ref identifies the lease held by this claim.
func (c *Claim) Ref() ClaimRef {
	return ClaimRef{ID: c.Item.ID, Token: c.Token}
}

// ClaimRef identifies one lease on one row. Two observations of the same ref
// mean the same claim is still unresolved.
type ClaimRef struct {
	ID    int64
	Token string
}

// ListOptions filters Store.List.
type ListOptions struct {
	Statuses []Status
	Limit    int
}

// HealthSummary describes aggregated item counts per status.
type HealthSummary struct {
	Total    int
	Pending  int
	Progress int
	Done     int
}

// DatabaseHealth captures diagnostic information about the backing database.
type DatabaseHealth struct {
	Driver           string
	Location         string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   string
	TotalItems       int
	Error            string
}
