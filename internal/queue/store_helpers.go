package queue

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const itemColumns = "id, value, dedup_key, status, priority, claim_token, claimed_at, created_at, updated_at"

var expectedColumns = []string{"id", "value", "dedup_key", "status", "priority", "claim_token", "claimed_at", "created_at", "updated_at"}

// dedupNamespace scopes name-based dedup keys to inbox values.
var dedupNamespace = uuid.MustParse("6f1c1d0e-8a0b-4c55-9a53-2f4c1b7e9d21")

// DedupKey derives the deterministic uniqueness key for value.
func DedupKey(value string) string {
	return uuid.NewSHA1(dedupNamespace, []byte(value)).String()
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		item       Item
		status     int
		priority   int
		claimToken sql.NullString
		claimedRaw sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&item.ID,
		&item.Value,
		&item.DedupKey,
		&status,
		&priority,
		&claimToken,
		&claimedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	item.Status = Status(status)
	item.Priority = Priority(priority)
	item.ClaimToken = claimToken.String
	if claimedRaw.Valid {
		claimed, err := parseTime(claimedRaw.String)
		if err != nil {
			return nil, fmt.Errorf("item %d: parse claimed_at: %w", item.ID, err)
		}
		item.ClaimedAt = &claimed
	}
	created, err := parseTime(createdRaw)
	if err != nil {
		return nil, fmt.Errorf("item %d: parse created_at: %w", item.ID, err)
	}
	item.CreatedAt = created
	updated, err := parseTime(updatedRaw)
	if err != nil {
		return nil, fmt.Errorf("item %d: parse updated_at: %w", item.ID, err)
	}
	item.UpdatedAt = updated
	return &item, nil
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

// uniqueValues drops repeats, keeping first-seen order. The empty string is a
// value like any other.
func uniqueValues(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
