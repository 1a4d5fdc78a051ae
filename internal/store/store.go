// Package store provides the local durable appointment log for ViviBot.
//
// The spreadsheet is the wellbeing team's operational view, but it is
// written best effort; this store is the bot's own record. The reminder
// sweep reads from here, and sync flags record which external writes still
// need operational follow-up. An inbound-message archive backs the
// in-memory deduplicator across restarts.
package store

import (
	"time"

	"github.com/uvbienestar/vivibot/internal/models"
)

// Store is the persistence interface implemented by the SQLite and
// PostgreSQL backends.
type Store interface {
	// SaveAppointment inserts a new appointment row.
	SaveAppointment(appt models.Appointment) error

	// UpdateAppointment rewrites the mutable fields of an appointment.
	UpdateAppointment(appt models.Appointment) error

	// DeleteAppointment removes an appointment by ID.
	DeleteAppointment(id string) error

	// GetAppointmentsByUser returns a user's appointments, oldest first.
	GetAppointmentsByUser(userID string) ([]models.Appointment, error)

	// ListAppointmentsBetween returns appointments whose slot starts in
	// [start, end), oldest first.
	ListAppointmentsBetween(start, end time.Time) ([]models.Appointment, error)

	// MarkReminderSent flips the reminder flag for an appointment. It is
	// set exactly once per appointment by the reminder sweep.
	MarkReminderSent(id string) error

	// RecordInbound archives an inbound message ID. Returns false if the
	// message was already recorded (duplicate).
	RecordInbound(messageID, userID string) (bool, error)

	// IsDuplicate checks whether a message ID was already archived.
	IsDuplicate(messageID string) (bool, error)

	// Close releases the underlying database handle.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}
