package enrollment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/course-market/database"
	"github.com/jmoiron/sqlx"
)

// Grant gives userID access to courseID. It checks for an existing row first
// and inserts with ON CONFLICT DO NOTHING, so a concurrent grant is not an
// error. created reports whether this call inserted the row.
func Grant(ctx context.Context, db sqlx.ExtContext, userID, courseID string, orderID *string) (created bool, err error) {
	exists, err := Exists(ctx, db, userID, courseID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	now := time.Now().UTC()
	e := Enrollment{
		UserID:    userID,
		CourseID:  courseID,
		OrderID:   orderID,
		Status:    Active,
		CreatedAt: now,
		UpdatedAt: now,
	}

	const q = `
	INSERT INTO enrollments
		(user_id, course_id, order_id, progress, status, created_at, updated_at)
	VALUES
		(:user_id, :course_id, :order_id, :progress, :status, :created_at, :updated_at)
	ON CONFLICT (user_id, course_id) DO NOTHING`

	n, err := database.NamedExecAffected(ctx, db, q, e)
	if err != nil {
		return false, fmt.Errorf("inserting enrollment for user[%s] course[%s]: %w", userID, courseID, err)
	}
	return n == 1, nil
}

func Exists(ctx context.Context, db sqlx.ExtContext, userID, courseID string) (bool, error) {
	_, err := Fetch(ctx, db, userID, courseID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, database.ErrDBNotFound) {
		return false, nil
	}
	return false, err
}

func Fetch(ctx context.Context, db sqlx.ExtContext, userID, courseID string) (Enrollment, error) {
	in := struct {
		UserID   string `db:"user_id"`
		CourseID string `db:"course_id"`
	}{
		UserID:   userID,
		CourseID: courseID,
	}

	const q = `
	SELECT
		*
	FROM
		enrollments
	WHERE
		user_id = :user_id AND course_id = :course_id`

	var e Enrollment
	if err := database.NamedQueryStruct(ctx, db, q, in, &e); err != nil {
		return Enrollment{}, fmt.Errorf("selecting enrollment for user[%s] course[%s]: %w", userID, courseID, err)
	}
	return e, nil
}

func FetchByUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]Enrollment, error) {
	in := struct {
		UserID string `db:"user_id"`
	}{
		UserID: userID,
	}

	const q = `
	SELECT
		*
	FROM
		enrollments
	WHERE
		user_id = :user_id
	ORDER BY
		created_at`

	var es []Enrollment
	if err := database.NamedQuerySlice(ctx, db, q, in, &es); err != nil {
		return nil, fmt.Errorf("selecting enrollments of user[%s]: %w", userID, err)
	}
	return es, nil
}

func UpdateProgress(ctx context.Context, db sqlx.ExtContext, userID, courseID string, progress int) (Enrollment, error) {
	in := struct {
		UserID    string    `db:"user_id"`
		CourseID  string    `db:"course_id"`
		Progress  int       `db:"progress"`
		UpdatedAt time.Time `db:"updated_at"`
	}{
		UserID:    userID,
		CourseID:  courseID,
		Progress:  progress,
		UpdatedAt: time.Now().UTC(),
	}

	const q = `
	UPDATE
		enrollments
	SET
		progress = :progress,
		updated_at = :updated_at
	WHERE
		user_id = :user_id AND course_id = :course_id
	RETURNING *`

	var e Enrollment
	if err := database.NamedQueryStruct(ctx, db, q, in, &e); err != nil {
		return Enrollment{}, fmt.Errorf("updating progress for user[%s] course[%s]: %w", userID, courseID, err)
	}
	return e, nil
}
