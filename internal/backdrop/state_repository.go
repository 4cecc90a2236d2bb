package backdrop

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"backdrop/internal/palette"
)

const defaultHistoryLimit = 50

type Snapshot struct {
	URL        string                 `json:"url"`
	Type       int                    `json:"type"`
	Background string                 `json:"background"`
	Palette    []palette.PaletteColor `json:"palette"`
	UpdatedAt  string                 `json:"updatedAt"`
}

type HistoryEntry struct {
	ID           int64  `json:"id"`
	URL          string `json:"url"`
	Type         int    `json:"type"`
	Background   string `json:"background"`
	UsedFallback bool   `json:"usedFallback"`
	AppliedAt    string `json:"appliedAt"`
}

// SnapshotFromState captures the requested url and type together with the
// background of the slot on screen, if any.
func SnapshotFromState(state State) Snapshot {
	snapshot := Snapshot{URL: state.URL, Type: state.Type, UpdatedAt: state.UpdatedAt}
	if active, ok := state.ActiveSlot(); ok && active.URL == state.URL {
		snapshot.Background = active.Background
		snapshot.Palette = active.Palette
	}
	return snapshot
}

type StateRepository struct {
	db *sql.DB
}

func NewStateRepository(database *sql.DB) *StateRepository {
	return &StateRepository{db: database}
}

func (r *StateRepository) Load(ctx context.Context) (Snapshot, bool, error) {
	var snapshot Snapshot
	var paletteJSON string
	err := r.db.QueryRowContext(
		ctx,
		"SELECT url, type, background, palette_json, updated_at FROM backdrop_state WHERE id = 1",
	).Scan(&snapshot.URL, &snapshot.Type, &snapshot.Background, &paletteJSON, &snapshot.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("load backdrop state: %w", err)
	}

	if strings.TrimSpace(paletteJSON) != "" {
		if err := json.Unmarshal([]byte(paletteJSON), &snapshot.Palette); err != nil {
			return Snapshot{}, false, fmt.Errorf("decode backdrop palette: %w", err)
		}
	}

	return snapshot, true, nil
}

func (r *StateRepository) Save(ctx context.Context, snapshot Snapshot) error {
	if strings.TrimSpace(snapshot.URL) == "" {
		return errors.New("backdrop url is required")
	}

	paletteJSON, err := json.Marshal(snapshot.Palette)
	if err != nil {
		return fmt.Errorf("encode backdrop palette: %w", err)
	}

	updatedAt := snapshot.UpdatedAt
	if updatedAt == "" {
		updatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	_, err = r.db.ExecContext(
		ctx,
		`INSERT INTO backdrop_state(id, url, type, background, palette_json, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			type = excluded.type,
			background = excluded.background,
			palette_json = excluded.palette_json,
			updated_at = excluded.updated_at`,
		snapshot.URL,
		snapshot.Type,
		snapshot.Background,
		string(paletteJSON),
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("save backdrop state: %w", err)
	}

	return nil
}

func (r *StateRepository) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	usedFallback := 0
	if entry.UsedFallback {
		usedFallback = 1
	}

	appliedAt := entry.AppliedAt
	if appliedAt == "" {
		appliedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}

	if _, err := r.db.ExecContext(
		ctx,
		"INSERT INTO backdrop_history(url, type, background, used_fallback, applied_at) VALUES (?, ?, ?, ?, ?)",
		entry.URL,
		entry.Type,
		entry.Background,
		usedFallback,
		appliedAt,
	); err != nil {
		return fmt.Errorf("insert backdrop history: %w", err)
	}

	return nil
}

func (r *StateRepository) ListHistory(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := r.db.QueryContext(
		ctx,
		"SELECT id, url, type, background, used_fallback, applied_at FROM backdrop_history ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list backdrop history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0)
	for rows.Next() {
		var entry HistoryEntry
		var usedFallback int
		if err := rows.Scan(&entry.ID, &entry.URL, &entry.Type, &entry.Background, &usedFallback, &entry.AppliedAt); err != nil {
			return nil, fmt.Errorf("scan backdrop history row: %w", err)
		}
		entry.UsedFallback = usedFallback == 1
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backdrop history rows: %w", err)
	}

	return entries, nil
}
