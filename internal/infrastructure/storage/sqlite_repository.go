package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"Briefcaster/internal/domain"
	"Briefcaster/internal/ports"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Fixed-width UTC timestamps keep created_at sortable as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var briefingColumns = []string{
	"id", "topic", "tier", "status", "text", "sections", "word_count", "duration_ms",
	"audio_key", "section_counts", "sources_used", "sources_total", "escalations",
	"covered_entities", "created_at",
}

// SQLiteRepository persists finished briefings into SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

var _ ports.BriefingRepository = (*SQLiteRepository)(nil)

// OpenSQLite opens the database file and applies pending migrations.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies embedded migrations; an up-to-date schema is not an error.
func Migrate(db *sql.DB) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// NewSQLiteRepository wires a sql.DB implementation.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save upserts the briefing snapshot.
func (r *SQLiteRepository) Save(ctx context.Context, b domain.Briefing) error {
	if r.db == nil {
		return nil
	}

	sections, err := json.Marshal(b.Sections)
	if err != nil {
		return fmt.Errorf("marshal sections: %w", err)
	}
	counts, err := json.Marshal(b.SectionCounts)
	if err != nil {
		return fmt.Errorf("marshal section counts: %w", err)
	}
	covered, err := json.Marshal(b.CoveredEntities)
	if err != nil {
		return fmt.Errorf("marshal covered entities: %w", err)
	}

	query, args, err := sq.Insert("briefings").
		Columns(briefingColumns...).
		Values(
			b.ID, b.Topic, string(b.Tier), string(b.Status), b.Text, string(sections),
			b.WordCount, b.Duration.Milliseconds(), b.AudioKey, string(counts),
			b.SourcesUsed, b.SourcesTotal, b.Escalations, string(covered),
			b.CreatedAt.UTC().Format(timeLayout),
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			text = excluded.text,
			sections = excluded.sections,
			word_count = excluded.word_count,
			duration_ms = excluded.duration_ms,
			audio_key = excluded.audio_key,
			section_counts = excluded.section_counts`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert briefing: %w", err)
	}
	return nil
}

// Get loads one briefing by id.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (domain.Briefing, error) {
	query, args, err := sq.Select(briefingColumns...).From("briefings").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Briefing{}, fmt.Errorf("build select: %w", err)
	}

	b, err := scanBriefing(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Briefing{}, fmt.Errorf("briefing %s: %w", id, domain.ErrBriefingNotFound)
	}
	if err != nil {
		return domain.Briefing{}, fmt.Errorf("load briefing %s: %w", id, err)
	}
	return b, nil
}

// List returns the newest briefings first, optionally restricted to a topic.
func (r *SQLiteRepository) List(ctx context.Context, topic string, limit int) ([]domain.Briefing, error) {
	if limit <= 0 {
		limit = 20
	}

	builder := sq.Select(briefingColumns...).From("briefings").OrderBy("created_at DESC").Limit(uint64(limit))
	if topic != "" {
		builder = builder.Where(sq.Eq{"topic": topic})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query briefings: %w", err)
	}

	var result []domain.Briefing
	for rows.Next() {
		b, err := scanBriefing(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan briefing: %w", err)
		}
		result = append(result, b)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBriefing(row rowScanner) (domain.Briefing, error) {
	var (
		b                         domain.Briefing
		tier, status              string
		sections, counts, covered string
		durationMS                int64
		createdAt                 string
	)
	err := row.Scan(
		&b.ID, &b.Topic, &tier, &status, &b.Text, &sections, &b.WordCount, &durationMS,
		&b.AudioKey, &counts, &b.SourcesUsed, &b.SourcesTotal, &b.Escalations,
		&covered, &createdAt,
	)
	if err != nil {
		return domain.Briefing{}, err
	}

	b.Tier = domain.Tier(tier)
	b.Status = domain.BriefingStatus(status)
	b.Duration = time.Duration(durationMS) * time.Millisecond
	if err := json.Unmarshal([]byte(sections), &b.Sections); err != nil {
		return domain.Briefing{}, fmt.Errorf("decode sections: %w", err)
	}
	if err := json.Unmarshal([]byte(counts), &b.SectionCounts); err != nil {
		return domain.Briefing{}, fmt.Errorf("decode section counts: %w", err)
	}
	if err := json.Unmarshal([]byte(covered), &b.CoveredEntities); err != nil {
		return domain.Briefing{}, fmt.Errorf("decode covered entities: %w", err)
	}
	if b.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return domain.Briefing{}, fmt.Errorf("decode created_at: %w", err)
	}
	return b, nil
}
