package recorder

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists entries to a SQLite database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS detections (
			cycle             BIGINT,
			timestamp_ns      BIGINT,
			range_cm          DOUBLE,
			azimuth_rad       DOUBLE,
			elevation_rad     DOUBLE,
			confidence        DOUBLE,
			target_count      BIGINT
		);
		CREATE TABLE IF NOT EXISTS guidance (
			cycle             BIGINT,
			timestamp_ns      BIGINT,
			accel_x           DOUBLE,
			accel_y           DOUBLE,
			accel_z           DOUBLE,
			intercept         BOOLEAN,
			motor0            DOUBLE,
			motor1            DOUBLE,
			motor2            DOUBLE,
			motor3            DOUBLE
		);
		CREATE TABLE IF NOT EXISTS cycles (
			cycle             BIGINT,
			timestamp_ns      BIGINT,
			valid             BOOLEAN,
			detail            TEXT
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Record(e Entry) error {
	switch v := e.(type) {
	case DetectionEntry:
		_, err := s.db.Exec(
			`INSERT INTO detections (cycle, timestamp_ns, range_cm, azimuth_rad, elevation_rad, confidence, target_count)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			v.Cycle, v.Timestamp.UnixNano(), v.RangeCM, v.AzimuthRad, v.ElevationRad, v.Confidence, v.TargetCount,
		)
		if err != nil {
			return fmt.Errorf("insert detection: %w", err)
		}
	case GuidanceEntry:
		_, err := s.db.Exec(
			`INSERT INTO guidance (cycle, timestamp_ns, accel_x, accel_y, accel_z, intercept, motor0, motor1, motor2, motor3)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			v.Cycle, v.Timestamp.UnixNano(), v.AccelX, v.AccelY, v.AccelZ, v.Intercept,
			v.Motors[0], v.Motors[1], v.Motors[2], v.Motors[3],
		)
		if err != nil {
			return fmt.Errorf("insert guidance: %w", err)
		}
	case CycleEntry:
		_, err := s.db.Exec(
			`INSERT INTO cycles (cycle, timestamp_ns, valid, detail) VALUES (?, ?, ?, ?)`,
			v.Cycle, v.Timestamp.UnixNano(), v.Valid, v.Detail,
		)
		if err != nil {
			return fmt.Errorf("insert cycle: %w", err)
		}
	default:
		return fmt.Errorf("unknown entry kind %q", e.Kind())
	}
	return nil
}

// Detections returns the most recent detection entries, newest first.
func (s *Store) Detections(limit int) ([]DetectionEntry, error) {
	rows, err := s.db.Query(
		`SELECT cycle, timestamp_ns, range_cm, azimuth_rad, elevation_rad, confidence, target_count
		 FROM detections ORDER BY timestamp_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query detections: %w", err)
	}
	defer rows.Close()

	var out []DetectionEntry
	for rows.Next() {
		var e DetectionEntry
		var ns int64
		if err := rows.Scan(&e.Cycle, &ns, &e.RangeCM, &e.AzimuthRad, &e.ElevationRad, &e.Confidence, &e.TargetCount); err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		e.Timestamp = time.Unix(0, ns)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Guidance returns the most recent guidance entries, newest first.
func (s *Store) Guidance(limit int) ([]GuidanceEntry, error) {
	rows, err := s.db.Query(
		`SELECT cycle, timestamp_ns, accel_x, accel_y, accel_z, intercept, motor0, motor1, motor2, motor3
		 FROM guidance ORDER BY timestamp_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query guidance: %w", err)
	}
	defer rows.Close()

	var out []GuidanceEntry
	for rows.Next() {
		var e GuidanceEntry
		var ns int64
		if err := rows.Scan(&e.Cycle, &ns, &e.AccelX, &e.AccelY, &e.AccelZ, &e.Intercept,
			&e.Motors[0], &e.Motors[1], &e.Motors[2], &e.Motors[3]); err != nil {
			return nil, fmt.Errorf("scan guidance: %w", err)
		}
		e.Timestamp = time.Unix(0, ns)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Cycles returns the most recent cycle entries, newest first.
func (s *Store) Cycles(limit int) ([]CycleEntry, error) {
	rows, err := s.db.Query(
		`SELECT cycle, timestamp_ns, valid, detail FROM cycles ORDER BY timestamp_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	var out []CycleEntry
	for rows.Next() {
		var e CycleEntry
		var ns int64
		if err := rows.Scan(&e.Cycle, &ns, &e.Valid, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		e.Timestamp = time.Unix(0, ns)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
