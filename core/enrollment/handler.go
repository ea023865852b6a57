package enrollment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/irsalhamdi/course-market/api/web"
	"github.com/irsalhamdi/course-market/api/weberr"
	"github.com/irsalhamdi/course-market/core/claims"
	"github.com/irsalhamdi/course-market/core/course"
	"github.com/irsalhamdi/course-market/database"
	"github.com/irsalhamdi/course-market/validate"
	"github.com/jmoiron/sqlx"
)

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		es, err := FetchByUser(ctx, db, clm.UserID)
		if err != nil {
			return err
		}
		if es == nil {
			es = []Enrollment{}
		}

		return web.Respond(ctx, w, es, http.StatusOK)
	}
}

// HandleCreateFree enrolls the caller in a course whose effective price is
// zero. Paid courses go through checkout instead.
func HandleCreateFree(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var en EnrollmentNew
		if err := web.Decode(w, r, &en); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(en); err != nil {
			return weberr.Invalid(err)
		}

		c, err := course.Fetch(ctx, db, en.CourseID)
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(fmt.Errorf("course[%s] not found: %w", en.CourseID, err))
			}
			return err
		}

		if !c.Free(time.Now()) {
			return weberr.Invalid(errors.New("course is not free, use checkout"))
		}

		if _, err := Grant(ctx, db, clm.UserID, c.ID, nil); err != nil {
			return err
		}

		e, err := Fetch(ctx, db, clm.UserID, c.ID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, e, http.StatusCreated)
	}
}

func HandleUpdateProgress(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		var pu ProgressUp
		if err := web.Decode(w, r, &pu); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(pu); err != nil {
			return weberr.Invalid(err)
		}

		e, err := UpdateProgress(ctx, db, clm.UserID, courseID, pu.Progress)
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(fmt.Errorf("not enrolled: %w", err))
			}
			return err
		}

		return web.Respond(ctx, w, e, http.StatusOK)
	}
}
