package course

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/irsalhamdi/course-market/api/web"
	"github.com/irsalhamdi/course-market/api/weberr"
	"github.com/irsalhamdi/course-market/database"
	"github.com/irsalhamdi/course-market/validate"
	"github.com/jmoiron/sqlx"
)

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var cn CourseNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cn); err != nil {
			return weberr.Invalid(err)
		}

		now := time.Now().UTC()
		c := Course{
			ID:              validate.GenerateID(),
			Name:            cn.Name,
			Description:     cn.Description,
			ImageURL:        cn.ImageURL,
			Price:           cn.Price,
			DiscountPrice:   cn.DiscountPrice,
			DiscountEndDate: cn.DiscountEndDate,
			CreatedAt:       now,
			UpdatedAt:       now,
			Version:         1,
		}

		if err := Create(ctx, db, c); err != nil {
			return fmt.Errorf("creating new course: %w", err)
		}

		return web.Respond(ctx, w, NewView(c, now), http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		var cu CourseUp
		if err := web.Decode(w, r, &cu); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cu); err != nil {
			return weberr.Invalid(err)
		}

		c, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(fmt.Errorf("course[%s] not found: %w", id, err))
			}
			return fmt.Errorf("fetching course[%s]: %w", id, err)
		}

		if cu.Name != nil {
			c.Name = *cu.Name
		}
		if cu.Description != nil {
			c.Description = *cu.Description
		}
		if cu.ImageURL != nil {
			c.ImageURL = *cu.ImageURL
		}
		if cu.Price != nil {
			c.Price = *cu.Price
		}
		if cu.DiscountPrice != nil {
			c.DiscountPrice = cu.DiscountPrice
		}
		if cu.DiscountEndDate != nil {
			c.DiscountEndDate = cu.DiscountEndDate
		}

		if c.DiscountPrice != nil && *c.DiscountPrice > c.Price {
			return weberr.Invalid(errors.New("discountPrice must be less than or equal to price"))
		}

		now := time.Now().UTC()
		c.UpdatedAt = now

		c, err = Update(ctx, db, c)
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NewError(err, "course was modified concurrently, retry", http.StatusConflict)
			}
			return fmt.Errorf("updating course[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, NewView(c, now), http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		c, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(fmt.Errorf("course[%s] not found: %w", id, err))
			}
			return fmt.Errorf("fetching course[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, NewView(c, time.Now()), http.StatusOK)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		cs, err := FetchAll(ctx, db)
		if err != nil {
			return fmt.Errorf("fetching all courses: %w", err)
		}

		now := time.Now()
		views := make([]View, 0, len(cs))
		for _, c := range cs {
			views = append(views, NewView(c, now))
		}

		return web.Respond(ctx, w, views, http.StatusOK)
	}
}
