package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/railmind/train-alert-bot/internal/models"
)

// MaxListLimit caps the number of alerts a single ListAlerts call returns
const MaxListLimit = 500

// SQLiteStore persists complaints and the alert trail in SQLite
type SQLiteStore struct {
	db *sql.DB
}

// Ensure SQLiteStore implements both store contracts
var (
	_ ComplaintStore = (*SQLiteStore)(nil)
	_ AlertStore     = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens (or creates) the database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertComplaints stores complaints in a single transaction. Complaints whose
// id is already stored are ignored.
func (s *SQLiteStore) InsertComplaints(ctx context.Context, complaints []models.Complaint) error {
	if len(complaints) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin complaint insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO complaints
		(id, train_number, user_id, description, station_code, image_urls, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare complaint insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range complaints {
		images, err := marshalJSON(nonNilSlice(c.ImageURLs))
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.TrainNumber, c.UserID, c.Description,
			c.StationCode, images, c.CreatedAt.UnixMilli()); err != nil {
			return fmt.Errorf("failed to insert complaint %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit complaints: %w", err)
	}
	return nil
}

// ComplaintsSince returns a train's complaints created at or after since, newest first
func (s *SQLiteStore) ComplaintsSince(ctx context.Context, trainNumber string, since time.Time) ([]models.Complaint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, train_number, user_id, description, station_code, image_urls, created_at
		FROM complaints
		WHERE train_number = ? AND created_at >= ?
		ORDER BY created_at DESC, rowid DESC`, trainNumber, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query complaints: %w", err)
	}
	defer rows.Close()

	out := make([]models.Complaint, 0)
	for rows.Next() {
		var c models.Complaint
		var images string
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.TrainNumber, &c.UserID, &c.Description, &c.StationCode, &images, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan complaint: %w", err)
		}
		if err := json.Unmarshal([]byte(images), &c.ImageURLs); err != nil {
			return nil, fmt.Errorf("failed to decode image urls of complaint %s: %w", c.ID, err)
		}
		c.CreatedAt = fromMillis(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

const alertColumns = `id, train_number, threshold, window_minutes, unique_users_count, total_complaints_count,
	station_code, next_stations, complaint_ids, complaint_summaries, image_urls,
	sms_phone, sms_provider, sms_message, sms_status, sms_response, sms_error, created_at`

// CountAlerts tallies matching alerts per train and per SMS status
func (s *SQLiteStore) CountAlerts(ctx context.Context, filter AlertFilter) (AlertCounts, error) {
	where, args := alertWhere(filter)

	rows, err := s.db.QueryContext(ctx, `SELECT train_number, sms_status, COUNT(*) FROM alerts`+where+
		` GROUP BY train_number, sms_status`, args...)
	if err != nil {
		return AlertCounts{}, fmt.Errorf("failed to count alerts: %w", err)
	}
	defer rows.Close()

	counts := AlertCounts{
		ByTrain:     make(map[string]int),
		BySMSStatus: make(map[string]int),
	}
	for rows.Next() {
		var train, status string
		var n int
		if err := rows.Scan(&train, &status, &n); err != nil {
			return AlertCounts{}, fmt.Errorf("failed to scan alert count: %w", err)
		}
		counts.Total += n
		counts.ByTrain[train] += n
		counts.BySMSStatus[status] += n
	}
	return counts, rows.Err()
}

func alertWhere(filter AlertFilter) (string, []interface{}) {
	var where []string
	var args []interface{}

	if filter.TrainNumber != "" {
		where = append(where, "train_number = ?")
		args = append(args, filter.TrainNumber)
	}
	if !filter.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Since.UnixMilli())
	}
	if !filter.Until.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, filter.Until.UnixMilli())
	}

	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

// LatestAlertSince returns the newest alert for a train created at or after since
func (s *SQLiteStore) LatestAlertSince(ctx context.Context, trainNumber string, since time.Time) (models.Alert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+`
		FROM alerts
		WHERE train_number = ? AND created_at >= ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`, trainNumber, since.UnixMilli())
	return scanAlert(row)
}

// InsertAlertIfAbsent writes the alert unless another alert for the same
// train exists with created_at >= since. The check and the insert are one
// statement, so concurrent writers cannot both succeed. A zero since inserts
// unconditionally.
func (s *SQLiteStore) InsertAlertIfAbsent(ctx context.Context, alert models.Alert, since time.Time) (bool, error) {
	args, err := alertArgs(alert)
	if err != nil {
		return false, err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	query := `INSERT INTO alerts (` + alertColumns + `) VALUES (` + placeholders + `)`
	if !since.IsZero() {
		query = `INSERT INTO alerts (` + alertColumns + `)
			SELECT ` + placeholders + `
			WHERE NOT EXISTS (SELECT 1 FROM alerts WHERE train_number = ? AND created_at >= ?)`
		args = append(args, alert.TrainNumber, since.UnixMilli())
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to insert alert: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return affected == 1, nil
}

// GetAlert returns a single alert by id
func (s *SQLiteStore) GetAlert(ctx context.Context, id string) (models.Alert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	return scanAlert(row)
}

// ListAlerts returns alerts newest first
func (s *SQLiteStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]models.Alert, error) {
	where, args := alertWhere(filter)

	limit := filter.Limit
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + alertColumns + ` FROM alerts` + where +
		" ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	out := make([]models.Alert, 0)
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, alert)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row scanner) (models.Alert, error) {
	var a models.Alert
	var nextStations, complaintIDs, summaries, images, status string
	var response sql.NullString
	var createdAt int64

	err := row.Scan(&a.ID, &a.TrainNumber, &a.Threshold, &a.WindowMinutes, &a.UniqueUsersCount, &a.TotalComplaintsCount,
		&a.StationCode, &nextStations, &complaintIDs, &summaries, &images,
		&a.Notification.Phone, &a.Notification.Provider, &a.Notification.Message, &status, &response, &a.Notification.Error,
		&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Alert{}, ErrNotFound
	}
	if err != nil {
		return models.Alert{}, fmt.Errorf("failed to scan alert: %w", err)
	}

	for _, field := range []struct {
		raw  string
		dest interface{}
	}{
		{nextStations, &a.NextStations},
		{complaintIDs, &a.ComplaintIDs},
		{summaries, &a.ComplaintSummaries},
		{images, &a.ImageURLs},
	} {
		if err := json.Unmarshal([]byte(field.raw), field.dest); err != nil {
			return models.Alert{}, fmt.Errorf("failed to decode alert %s: %w", a.ID, err)
		}
	}

	a.Notification.Status = models.NotificationStatus(status)
	if response.Valid && response.String != "" {
		a.Notification.RawResponse = json.RawMessage(response.String)
	}
	a.CreatedAt = fromMillis(createdAt)
	return a, nil
}

func alertArgs(a models.Alert) ([]interface{}, error) {
	nextStations, err := marshalJSON(nonNilSlice(a.NextStations))
	if err != nil {
		return nil, err
	}
	complaintIDs, err := marshalJSON(nonNilSlice(a.ComplaintIDs))
	if err != nil {
		return nil, err
	}
	summaries, err := marshalJSON(nonNilSlice(a.ComplaintSummaries))
	if err != nil {
		return nil, err
	}
	images, err := marshalJSON(nonNilSlice(a.ImageURLs))
	if err != nil {
		return nil, err
	}

	var response interface{}
	if len(a.Notification.RawResponse) > 0 {
		response = string(a.Notification.RawResponse)
	}

	return []interface{}{
		a.ID, a.TrainNumber, a.Threshold, a.WindowMinutes, a.UniqueUsersCount, a.TotalComplaintsCount,
		a.StationCode, nextStations, complaintIDs, summaries, images,
		a.Notification.Phone, a.Notification.Provider, a.Notification.Message, string(a.Notification.Status),
		response, a.Notification.Error, a.CreatedAt.UnixMilli(),
	}, nil
}

func marshalJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal column: %w", err)
	}
	return string(data), nil
}

func nonNilSlice[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
