package course

import (
	"context"
	"fmt"

	"github.com/irsalhamdi/course-market/database"
	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	INSERT INTO courses
		(course_id, name, description, image_url, price, discount_price, discount_end_date, created_at, updated_at, version)
	VALUES
		(:course_id, :name, :description, :image_url, :price, :discount_price, :discount_end_date, :created_at, :updated_at, :version)`

	if err := database.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("inserting course: %w", err)
	}
	return nil
}

// Update writes c if its version still matches the stored one, bumping it.
func Update(ctx context.Context, db sqlx.ExtContext, c Course) (Course, error) {
	const q = `
	UPDATE
		courses
	SET
		name = :name,
		description = :description,
		image_url = :image_url,
		price = :price,
		discount_price = :discount_price,
		discount_end_date = :discount_end_date,
		updated_at = :updated_at,
		version = version + 1
	WHERE
		course_id = :course_id AND version = :version
	RETURNING *`

	var out Course
	if err := database.NamedQueryStruct(ctx, db, q, c, &out); err != nil {
		return Course{}, fmt.Errorf("updating course[%s]: %w", c.ID, err)
	}
	return out, nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Course, error) {
	in := struct {
		ID string `db:"course_id"`
	}{
		ID: id,
	}

	const q = `
	SELECT
		*
	FROM
		courses
	WHERE
		course_id = :course_id`

	var c Course
	if err := database.NamedQueryStruct(ctx, db, q, in, &c); err != nil {
		return Course{}, fmt.Errorf("selecting course[%s]: %w", id, err)
	}
	return c, nil
}

func FetchAll(ctx context.Context, db sqlx.ExtContext) ([]Course, error) {
	const q = `
	SELECT
		*
	FROM
		courses
	ORDER BY
		created_at`

	var cs []Course
	if err := database.NamedQuerySlice(ctx, db, q, struct{}{}, &cs); err != nil {
		return nil, fmt.Errorf("selecting courses: %w", err)
	}
	return cs, nil
}
