package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chatlings/pkg/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

const scheduleColumns = `
    id, schedule_date, open_time, close_time, notification_time, reminder_time, reminder_sent_at,
    coalesce(video_id,''), coalesce(video_title,''), coalesce(video_description,''), coalesce(video_category,''),
    coalesce(video_subcategory,''), coalesce(video_thumbnail,''),
    optimal_enthusiasm_min, optimal_enthusiasm_max, optimal_criticism_min, optimal_criticism_max,
    optimal_humor_min, optimal_humor_max, hint, status, participant_count, created_at`

func (s *PostgresStore) CreateBatch(ctx context.Context, schedules []*models.ChatroomSchedule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, sc := range schedules {
		if sc.Status == "" {
			sc.Status = models.StatusScheduled
		}
		err := tx.QueryRowContext(ctx, `
            INSERT INTO chatroom_schedules (schedule_date, open_time, close_time, notification_time, reminder_time, status)
            VALUES ($1,$2,$3,$4,$5,$6)
            RETURNING id, created_at
        `, sc.Date, sc.OpenTime, sc.CloseTime, sc.NotificationTime, sc.ReminderTime, string(sc.Status)).Scan(&sc.ID, &sc.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert schedule: %w", err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*models.ChatroomSchedule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM chatroom_schedules WHERE id=$1`, id)
	return scanSchedule(row)
}

func (s *PostgresStore) ListByDate(ctx context.Context, day time.Time) ([]*models.ChatroomSchedule, error) {
	return s.list(ctx, `
        SELECT `+scheduleColumns+` FROM chatroom_schedules
        WHERE schedule_date = $1::date
        ORDER BY open_time ASC, id ASC
    `, day.Format(dateLayout))
}

func (s *PostgresStore) AssignContent(ctx context.Context, id int64, a ContentAssignment) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE chatroom_schedules
        SET video_id=$1, video_title=$2, video_description=$3, video_category=$4, video_subcategory=$5, video_thumbnail=$6,
            optimal_enthusiasm_min=$7, optimal_enthusiasm_max=$8, optimal_criticism_min=$9, optimal_criticism_max=$10,
            optimal_humor_min=$11, optimal_humor_max=$12, hint=$13
        WHERE id=$14
    `, a.ContentID, a.Content.Title, a.Content.Description, a.Content.Category, nullIfEmpty(a.Content.Subcategory), nullIfEmpty(a.ThumbnailURL),
		a.Ranges.EnthusiasmMin, a.Ranges.EnthusiasmMax, a.Ranges.CriticismMin, a.Ranges.CriticismMax,
		a.Ranges.HumorMin, a.Ranges.HumorMax, a.Hint, id)
	if err != nil {
		return err
	}
	return expectOne(res, ErrNotFound)
}

func (s *PostgresStore) ListUpcoming(ctx context.Context, now time.Time, limit int) ([]*models.ChatroomSchedule, error) {
	return s.list(ctx, `
        SELECT `+scheduleColumns+` FROM chatroom_schedules
        WHERE open_time > $1 AND status IN ('scheduled','notified')
        ORDER BY open_time ASC, id ASC LIMIT $2
    `, now, limit)
}

func (s *PostgresStore) GetActive(ctx context.Context, now time.Time) (*models.ChatroomSchedule, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT `+scheduleColumns+` FROM chatroom_schedules
        WHERE status = 'open' AND open_time <= $1 AND close_time > $1
        ORDER BY open_time DESC LIMIT 1
    `, now)
	return scanSchedule(row)
}

func (s *PostgresStore) ListNeedingNotification(ctx context.Context, now time.Time) ([]*models.ChatroomSchedule, error) {
	return s.list(ctx, `
        SELECT `+scheduleColumns+` FROM chatroom_schedules
        WHERE status = 'scheduled' AND notification_time <= $1 AND open_time > $1
        ORDER BY open_time ASC
    `, now)
}

func (s *PostgresStore) ListNeedingReminder(ctx context.Context, now time.Time) ([]*models.ChatroomSchedule, error) {
	return s.list(ctx, `
        SELECT `+scheduleColumns+` FROM chatroom_schedules
        WHERE status = 'notified' AND reminder_sent_at IS NULL AND reminder_time <= $1 AND open_time > $1
        ORDER BY open_time ASC
    `, now)
}

func (s *PostgresStore) ListToOpen(ctx context.Context, now time.Time) ([]*models.ChatroomSchedule, error) {
	return s.list(ctx, `
        SELECT `+scheduleColumns+` FROM chatroom_schedules
        WHERE status IN ('scheduled','notified') AND open_time <= $1 AND close_time > $1
        ORDER BY open_time ASC
    `, now)
}

func (s *PostgresStore) ListToClose(ctx context.Context, now time.Time) ([]*models.ChatroomSchedule, error) {
	return s.list(ctx, `
        SELECT `+scheduleColumns+` FROM chatroom_schedules
        WHERE status = 'open' AND close_time <= $1
        ORDER BY open_time ASC
    `, now)
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id int64, from, to models.ScheduleStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE chatroom_schedules SET status=$1 WHERE id=$2 AND status=$3`, string(to), id, string(from))
	if err != nil {
		return err
	}
	return expectOne(res, ErrAlreadyAdvanced)
}

func (s *PostgresStore) MarkReminderSent(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE chatroom_schedules SET reminder_sent_at=$1 WHERE id=$2 AND reminder_sent_at IS NULL`, at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *PostgresStore) IncrementParticipantCount(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE chatroom_schedules SET participant_count = participant_count + 1 WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return expectOne(res, ErrNotFound)
}

func (s *PostgresStore) DeleteBefore(ctx context.Context, date time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chatroom_schedules WHERE schedule_date < $1`, date)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.ChatroomSchedule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*models.ChatroomSchedule, 0)
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func scanSchedule(scanner interface{ Scan(dest ...any) error }) (*models.ChatroomSchedule, error) {
	var sc models.ChatroomSchedule
	var reminderSent sql.NullTime
	var videoID, title, desc, category, subcategory, thumb, status string
	var eMin, eMax, cMin, cMax, hMin, hMax sql.NullInt64
	var hint sql.NullString
	err := scanner.Scan(&sc.ID, &sc.Date, &sc.OpenTime, &sc.CloseTime, &sc.NotificationTime, &sc.ReminderTime, &reminderSent,
		&videoID, &title, &desc, &category, &subcategory, &thumb,
		&eMin, &eMax, &cMin, &cMax, &hMin, &hMax, &hint, &status, &sc.ParticipantCount, &sc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	sc.Status = models.ScheduleStatus(status)
	sc.ContentID = videoID
	sc.ThumbnailURL = thumb
	if reminderSent.Valid {
		t := reminderSent.Time
		sc.ReminderSentAt = &t
	}
	if videoID != "" {
		sc.Content = &models.ContentContext{Category: category, Subcategory: subcategory, Title: title, Description: desc}
	}
	if eMin.Valid && eMax.Valid && cMin.Valid && cMax.Valid && hMin.Valid && hMax.Valid {
		sc.OptimalRanges = &models.OptimalRanges{
			EnthusiasmMin: int(eMin.Int64), EnthusiasmMax: int(eMax.Int64),
			CriticismMin: int(cMin.Int64), CriticismMax: int(cMax.Int64),
			HumorMin: int(hMin.Int64), HumorMax: int(hMax.Int64),
		}
	}
	if hint.Valid {
		h := hint.String
		sc.Hint = &h
	}
	return &sc, nil
}

func expectOne(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return none
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
