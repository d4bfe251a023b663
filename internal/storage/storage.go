package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrations embed.FS

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	ErrNotFound        = errors.New("storage: not found")
	ErrVersionConflict = errors.New("storage: version conflict")
)

type Store struct {
	db     *sql.DB
	driver string
}

type GuildSettings struct {
	GuildID           string
	Language          string
	StaffAlertChannel string
	TranscriptChannel string
	TicketCategory    string
	RetentionDays     int
}

type AuditLog struct {
	ID        int64
	TicketID  string
	UserID    string
	Level     string
	Event     string
	Details   string
	CreatedAt time.Time
}

func Open(driver, dsn string) (*Store, error) {
	var sqlDriver string
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		sqlDriver = "sqlite"
	case DriverPostgres:
		sqlDriver = "pgx"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	return &Store{db: db, driver: driver}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Migrate(ctx context.Context) error {
	dir := path.Join("migrations", s.driver)
	entries, err := migrations.ReadDir(dir)
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join(dir, file))
		if err != nil {
			return err
		}
		for _, stmt := range strings.Split(string(content), ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				if isIgnorableMigrationError(err) {
					continue
				}
				return fmt.Errorf("migration %s failed: %w", file, err)
			}
		}
	}
	return nil
}

func (s *Store) GetGuildSettings(ctx context.Context, guildID string, defaults GuildSettings) (GuildSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT language, staff_alert_channel, transcript_channel, ticket_category, retention_days
		FROM guild_settings WHERE guild_id = $1`, guildID)

	result := defaults
	result.GuildID = guildID

	var stored GuildSettings
	err := row.Scan(
		&stored.Language,
		&stored.StaffAlertChannel,
		&stored.TranscriptChannel,
		&stored.TicketCategory,
		&stored.RetentionDays,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return GuildSettings{}, err
	}
	if stored.Language != "" {
		result.Language = stored.Language
	}
	if stored.StaffAlertChannel != "" {
		result.StaffAlertChannel = stored.StaffAlertChannel
	}
	if stored.TranscriptChannel != "" {
		result.TranscriptChannel = stored.TranscriptChannel
	}
	if stored.TicketCategory != "" {
		result.TicketCategory = stored.TicketCategory
	}
	if stored.RetentionDays > 0 {
		result.RetentionDays = stored.RetentionDays
	}
	return result, nil
}

func (s *Store) UpsertGuildSettings(ctx context.Context, settings GuildSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_settings (
			guild_id, language, staff_alert_channel, transcript_channel, ticket_category, retention_days
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT(guild_id) DO UPDATE SET
			language = excluded.language,
			staff_alert_channel = excluded.staff_alert_channel,
			transcript_channel = excluded.transcript_channel,
			ticket_category = excluded.ticket_category,
			retention_days = excluded.retention_days
	`,
		settings.GuildID,
		settings.Language,
		settings.StaffAlertChannel,
		settings.TranscriptChannel,
		settings.TicketCategory,
		settings.RetentionDays,
	)
	return err
}

func (s *Store) AddAuditLog(ctx context.Context, log AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (ticket_id, user_id, level, event, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, log.TicketID, log.UserID, log.Level, log.Event, log.Details, log.CreatedAt.Unix())
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, since time.Time) ([]AuditLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ticket_id, user_id, level, event, details, created_at
		FROM audit_logs
		WHERE created_at >= $1
		ORDER BY created_at DESC, id DESC
	`, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var log AuditLog
		var created int64
		if err := rows.Scan(&log.ID, &log.TicketID, &log.UserID, &log.Level, &log.Event, &log.Details, &created); err != nil {
			return nil, err
		}
		log.CreatedAt = time.Unix(created, 0).UTC()
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (s *Store) CleanupAuditLogs(ctx context.Context, now time.Time, retentionDays int) (int64, error) {
	cutoff := now.AddDate(0, 0, -retentionDays)
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) AddProofHost(ctx context.Context, guildID, host string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO proof_hosts (guild_id, host) VALUES ($1, $2) ON CONFLICT DO NOTHING`, guildID, strings.ToLower(host))
	return err
}

func (s *Store) RemoveProofHost(ctx context.Context, guildID, host string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM proof_hosts WHERE guild_id = $1 AND host = $2`, guildID, strings.ToLower(host))
	return err
}

func (s *Store) ListProofHosts(ctx context.Context, guildID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT host FROM proof_hosts WHERE guild_id = $1 ORDER BY host`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hosts []string
	for rows.Next() {
		var host string
		if err := rows.Scan(&host); err != nil {
			return nil, err
		}
		hosts = append(hosts, host)
	}
	return hosts, rows.Err()
}

func (s *Store) SetUserLanguage(ctx context.Context, userID, language string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, language, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT(user_id) DO UPDATE SET
			language = excluded.language,
			updated_at = excluded.updated_at
	`, userID, language, now.Unix())
	return err
}

func (s *Store) UserLanguage(ctx context.Context, userID string) (string, error) {
	var language string
	err := s.db.QueryRowContext(ctx, `SELECT language FROM user_preferences WHERE user_id = $1`, userID).Scan(&language)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return language, err
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func unixNano(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnixNano(v int64) time.Time {
	return time.Unix(0, v).UTC()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func timeFromNull(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromUnixNano(v.Int64)
	return &t
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
