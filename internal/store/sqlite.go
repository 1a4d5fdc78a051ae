// SQLite-backed implementation of the Store interface.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "embed"

	"github.com/uvbienestar/vivibot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists appointments and the inbound-message archive in a
// local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (and if needed creates) the SQLite database at the
// DSN path and applies migrations.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(strings.TrimPrefix(cfg.DSN, "file:"))
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging sqlite database: %w", err)
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		return nil, fmt.Errorf("running sqlite migrations: %w", err)
	}
	slog.Debug("store: sqlite ready", "dsn_set", cfg.DSN != "")
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveAppointment inserts a new appointment row.
func (s *SQLiteStore) SaveAppointment(appt models.Appointment) error {
	_, err := s.db.Exec(
		`INSERT INTO appointments (id, user_id, name, student_code, career, email, type,
		 slot_start, calendar_event_id, reminder_sent, sheet_synced, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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
func (s *SQLiteStore) UpdateAppointment(appt models.Appointment) error {
	_, err := s.db.Exec(
		`UPDATE appointments SET type = ?, slot_start = ?, calendar_event_id = ?,
		 reminder_sent = ?, sheet_synced = ?, updated_at = ? WHERE id = ?`,
		string(appt.Type), appt.SlotStart, nilIfEmpty(appt.CalendarEventID),
		appt.ReminderSent, appt.SheetSynced, time.Now(), appt.ID,
	)
	if err != nil {
		return fmt.Errorf("update appointment failed: %w", err)
	}
	return nil
}

// DeleteAppointment removes an appointment by ID.
func (s *SQLiteStore) DeleteAppointment(id string) error {
	_, err := s.db.Exec(`DELETE FROM appointments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete appointment failed: %w", err)
	}
	return nil
}

// GetAppointmentsByUser returns a user's appointments, oldest first.
func (s *SQLiteStore) GetAppointmentsByUser(userID string) ([]models.Appointment, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, name, student_code, career, email, type, slot_start,
		 calendar_event_id, reminder_sent, sheet_synced, created_at, updated_at
		 FROM appointments WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("query appointments by user failed: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// ListAppointmentsBetween returns appointments with slot_start in [start, end).
func (s *SQLiteStore) ListAppointmentsBetween(start, end time.Time) ([]models.Appointment, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, name, student_code, career, email, type, slot_start,
		 calendar_event_id, reminder_sent, sheet_synced, created_at, updated_at
		 FROM appointments WHERE slot_start >= ? AND slot_start < ? ORDER BY slot_start`,
		start, end)
	if err != nil {
		return nil, fmt.Errorf("query appointments between failed: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// MarkReminderSent flips the reminder flag for an appointment.
func (s *SQLiteStore) MarkReminderSent(id string) error {
	_, err := s.db.Exec(
		`UPDATE appointments SET reminder_sent = 1, updated_at = ? WHERE id = ?`,
		time.Now(), id)
	if err != nil {
		return fmt.Errorf("mark reminder sent failed: %w", err)
	}
	return nil
}

// RecordInbound archives an inbound message ID; returns false on duplicate.
func (s *SQLiteStore) RecordInbound(messageID, userID string) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO inbound_messages (message_id, user_id, received_at) VALUES (?, ?, ?)`,
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
func (s *SQLiteStore) IsDuplicate(messageID string) (bool, error) {
	var id string
	err := s.db.QueryRow(`SELECT message_id FROM inbound_messages WHERE message_id = ?`, messageID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("duplicate check failed: %w", err)
	}
	return true, nil
}

// scanAppointments reads appointment rows shared by both backends.
func scanAppointments(rows *sql.Rows) ([]models.Appointment, error) {
	var out []models.Appointment
	for rows.Next() {
		var a models.Appointment
		var studentCode, career, eventID sql.NullString
		var typ string
		err := rows.Scan(
			&a.ID, &a.UserID, &a.Name, &studentCode, &career, &a.Email, &typ,
			&a.SlotStart, &eventID, &a.ReminderSent, &a.SheetSynced,
			&a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan appointment failed: %w", err)
		}
		a.StudentCode = studentCode.String
		a.Career = career.String
		a.CalendarEventID = eventID.String
		a.Type = models.AppointmentType(typ)
		out = append(out, a)
	}
	return out, rows.Err()
}
