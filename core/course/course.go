package course

import "time"

// MaxPrice bounds any price a course may be sold at.
const MaxPrice = 100_000_000

type Course struct {
	ID              string     `json:"id" db:"course_id"`
	Name            string     `json:"name" db:"name"`
	Description     string     `json:"description" db:"description"`
	ImageURL        string     `json:"imageUrl" db:"image_url"`
	Price           int64      `json:"price" db:"price"`
	DiscountPrice   *int64     `json:"discountPrice" db:"discount_price"`
	DiscountEndDate *time.Time `json:"discountEndDate" db:"discount_end_date"`
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time  `json:"updatedAt" db:"updated_at"`
	Version         int        `json:"-" db:"version"`
}

// EffectivePrice is the discount price while now is before the discount end
// date, and the list price otherwise.
func (c Course) EffectivePrice(now time.Time) int64 {
	if c.DiscountPrice != nil && c.DiscountEndDate != nil && now.Before(*c.DiscountEndDate) {
		return *c.DiscountPrice
	}
	return c.Price
}

func (c Course) Free(now time.Time) bool {
	return c.EffectivePrice(now) == 0
}

// View is a Course as presented to clients, with its price at the time of
// the request.
type View struct {
	Course
	EffectivePrice int64 `json:"effectivePrice"`
}

func NewView(c Course, now time.Time) View {
	return View{Course: c, EffectivePrice: c.EffectivePrice(now)}
}

type CourseNew struct {
	Name            string     `json:"name" validate:"required"`
	Description     string     `json:"description" validate:"required"`
	Price           int64      `json:"price" validate:"gte=0,lte=100000000"`
	DiscountPrice   *int64     `json:"discountPrice" validate:"omitempty,gte=0,ltefield=Price"`
	DiscountEndDate *time.Time `json:"discountEndDate" validate:"required_with=DiscountPrice"`
	ImageURL        string     `json:"imageUrl" validate:"required,url"`
}

type CourseUp struct {
	Name            *string    `json:"name"`
	Description     *string    `json:"description"`
	Price           *int64     `json:"price" validate:"omitempty,gte=0,lte=100000000"`
	DiscountPrice   *int64     `json:"discountPrice" validate:"omitempty,gte=0"`
	DiscountEndDate *time.Time `json:"discountEndDate"`
	ImageURL        *string    `json:"imageUrl" validate:"omitempty,url"`
}
