package enrollment

import "time"

type Status string

const (
	Active Status = "active"
)

// Enrollment grants a user access to a course. OrderID is nil for courses
// enrolled in for free.
type Enrollment struct {
	UserID    string    `json:"userId" db:"user_id"`
	CourseID  string    `json:"courseId" db:"course_id"`
	OrderID   *string   `json:"orderId" db:"order_id"`
	Progress  int       `json:"progress" db:"progress"`
	Status    Status    `json:"status" db:"status"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type EnrollmentNew struct {
	CourseID string `json:"courseId" validate:"required,uuid4"`
}

type ProgressUp struct {
	Progress int `json:"progress" validate:"gte=0,lte=100"`
}
