package postgres

import (
	"context"
	"database/sql"
)

// schema is applied at startup; every statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS customers (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	phone      TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS drivers (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	phone           TEXT NOT NULL UNIQUE,
	vehicle_class   TEXT NOT NULL,
	is_available    BOOLEAN NOT NULL DEFAULT FALSE,
	current_trip_id TEXT NOT NULL DEFAULT '',
	total_trips     BIGINT NOT NULL DEFAULT 0,
	total_earnings  DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS trips (
	id                     TEXT PRIMARY KEY,
	customer_id            TEXT NOT NULL,
	driver_id              TEXT,
	vehicle_class          TEXT NOT NULL,
	service_type           TEXT NOT NULL,
	pickup_lat             DOUBLE PRECISION NOT NULL,
	pickup_lng             DOUBLE PRECISION NOT NULL,
	pickup_address         TEXT NOT NULL DEFAULT '',
	dropoff_lat            DOUBLE PRECISION NOT NULL,
	dropoff_lng            DOUBLE PRECISION NOT NULL,
	dropoff_address        TEXT NOT NULL DEFAULT '',
	stops                  TEXT NOT NULL DEFAULT 'null',
	pickup_at              TIMESTAMPTZ NOT NULL,
	return_at              TIMESTAMPTZ,
	estimated_distance_km  DOUBLE PRECISION NOT NULL DEFAULT 0,
	estimated_duration_min DOUBLE PRECISION NOT NULL DEFAULT 0,
	pricing                TEXT NOT NULL,
	status                 TEXT NOT NULL,
	accepted_at            TIMESTAMPTZ,
	cancelled_at           TIMESTAMPTZ,
	cancelled_by           TEXT NOT NULL DEFAULT '',
	cancel_reason          TEXT NOT NULL DEFAULT '',
	cancellation_charge    DOUBLE PRECISION NOT NULL DEFAULT 0,
	details                TEXT,
	created_at             TIMESTAMPTZ NOT NULL,
	updated_at             TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS trips_status_idx ON trips (status) WHERE driver_id IS NULL;
CREATE INDEX IF NOT EXISTS trips_customer_idx ON trips (customer_id);

CREATE TABLE IF NOT EXISTS trip_rejections (
	trip_id     TEXT NOT NULL,
	driver_id   TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	rejected_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (trip_id, driver_id)
);

CREATE TABLE IF NOT EXISTS driver_ledgers (
	driver_id        TEXT PRIMARY KEY,
	pending_balance  DOUBLE PRECISION NOT NULL DEFAULT 0,
	withdrawn_amount DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id            TEXT PRIMARY KEY,
	driver_id     TEXT NOT NULL,
	trip_id       TEXT,
	withdrawal_id TEXT,
	type          TEXT NOT NULL,
	gross         DOUBLE PRECISION NOT NULL DEFAULT 0,
	commission    DOUBLE PRECISION NOT NULL DEFAULT 0,
	net           DOUBLE PRECISION NOT NULL DEFAULT 0,
	amount        DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS ledger_trip_credit_idx
	ON ledger_entries (trip_id) WHERE type = 'TRIP_CREDIT';
CREATE INDEX IF NOT EXISTS ledger_driver_idx ON ledger_entries (driver_id, created_at);

CREATE TABLE IF NOT EXISTS withdrawal_requests (
	id           TEXT PRIMARY KEY,
	driver_id    TEXT NOT NULL,
	amount       DOUBLE PRECISION NOT NULL,
	status       TEXT NOT NULL,
	requested_at TIMESTAMPTZ NOT NULL,
	processed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS withdrawal_driver_idx ON withdrawal_requests (driver_id, requested_at);
`

// ApplySchema creates the tables and indexes if they do not exist.
func ApplySchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
