// PostgreSQL-backed implementation of the Store interface.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/uvbienestar/vivibot/internal/models"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists appointments and the inbound-message archive in
// PostgreSQL for deployments that already run one.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore opens the PostgreSQL database at the DSN and applies
// migrations.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening postgres database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging postgres database: %w", err)
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		return nil, fmt.Errorf("running postgres migrations: %w", err)
	}
	slog.Debug("store: postgres ready")
	return &PostgresStore{db: db}, nil
}

// Close releases the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// SaveAppointment inserts a new appointment row.
func (s *PostgresStore) SaveAppointment(appt models.Appointment) error {
	_, err := s.db.Exec(
		`INSERT INTO appointments (id, user_id, name, student_code, career, email, type,
		 slot_start, calendar_event_id, reminder_sent, sheet_synced, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		appt.ID, appt.UserID, appt.Name, nilIfEmpty(appt.StudentCode), nilIfEmpty(appt.Career),
		appt.Email, string(appt.Type), appt.SlotStart, nilIfEmpty(appt.CalendarEventID),
		appt.ReminderSent, appt.SheetSynced, appt.CreatedAt, appt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save appointment failed: %w", err)
	}
	return nil
}

// UpdateAppointment rewrites the mutable fields of an appointment.
func (s *PostgresStore) UpdateAppointment(appt models.Appointment) error {
	_, err := s.db.Exec(
		`UPDATE appointments SET type = $1, slot_start = $2, calendar_event_id = $3,
		 reminder_sent = $4, sheet_synced = $5, updated_at = $6 WHERE id = $7`,
		string(appt.Type), appt.SlotStart, nilIfEmpty(appt.CalendarEventID),
		appt.ReminderSent, appt.SheetSynced, time.Now(), appt.ID,
	)
	if err != nil {
		return fmt.Errorf("update appointment failed: %w", err)
	}
	return nil
}

// DeleteAppointment removes an appointment by ID.
func (s *PostgresStore) DeleteAppointment(id string) error {
	_, err := s.db.Exec(`DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment failed: %w", err)
	}
	return nil
}

// GetAppointmentsByUser returns a user's appointments, oldest first.
func (s *PostgresStore) GetAppointmentsByUser(userID string) ([]models.Appointment, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, name, student_code, career, email, type, slot_start,
		 calendar_event_id, reminder_sent, sheet_synced, created_at, updated_at
		 FROM appointments WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("query appointments by user failed: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// ListAppointmentsBetween returns appointments with slot_start in [start, end).
func (s *PostgresStore) ListAppointmentsBetween(start, end time.Time) ([]models.Appointment, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, name, student_code, career, email, type, slot_start,
		 calendar_event_id, reminder_sent, sheet_synced, created_at, updated_at
		 FROM appointments WHERE slot_start >= $1 AND slot_start < $2 ORDER BY slot_start`,
		start, end)
	if err != nil {
		return nil, fmt.Errorf("query appointments between failed: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// MarkReminderSent flips the reminder flag for an appointment.
func (s *PostgresStore) MarkReminderSent(id string) error {
	_, err := s.db.Exec(
		`UPDATE appointments SET reminder_sent = TRUE, updated_at = $1 WHERE id = $2`,
		time.Now(), id)
	if err != nil {
		return fmt.Errorf("mark reminder sent failed: %w", err)
	}
	return nil
}

// RecordInbound archives an inbound message ID; returns false on duplicate.
func (s *PostgresStore) RecordInbound(messageID, userID string) (bool, error) {
	res, err := s.db.Exec(
		`INSERT INTO inbound_messages (message_id, user_id, received_at) VALUES ($1, $2, $3)
		 ON CONFLICT (message_id) DO NOTHING`,
		messageID, userID, time.Now())
	if err != nil {
		return false, fmt.Errorf("record inbound failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record inbound rows affected: %w", err)
	}
	return n > 0, nil
}

// IsDuplicate checks whether a message ID was already archived.
func (s *PostgresStore) IsDuplicate(messageID string) (bool, error) {
	var id string
	err := s.db.QueryRow(`SELECT message_id FROM inbound_messages WHERE message_id = $1`, messageID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("duplicate check failed: %w", err)
	}
	return true, nil
}
