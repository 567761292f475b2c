package models

import "time"

// Student is a persisted student record. JSON names are the on-disk schema.
type Student struct {
	ID           int        `json:"id"`
	Name         string     `json:"name"`
	FatherName   string     `json:"father_name"`
	RollNo       string     `json:"roll_no"`
	Class        string     `json:"class"`
	Phone        string     `json:"phone"`
	GRNumber     string     `json:"gr_number"`
	DateOfBirth  Date       `json:"date_of_birth"`
	DateOfIssue  Date       `json:"date_of_issue"`
	DateOfExpiry Date       `json:"date_of_expiry"`
	PhotoPath    *string    `json:"photo_path"`
	CreatedAt    Timestamp  `json:"created_at"`
	UpdatedAt    *Timestamp `json:"updated_at,omitempty"`
}

// Photo returns the photo path or an empty string.
func (s Student) Photo() string {
	if s.PhotoPath == nil {
		return ""
	}
	return *s.PhotoPath
}

// LastModified is the most recent of UpdatedAt and CreatedAt.
func (s Student) LastModified() time.Time {
	if s.UpdatedAt != nil && !s.UpdatedAt.IsZero() {
		return s.UpdatedAt.Time
	}
	return s.CreatedAt.Time
}

// StudentPatch carries a partial edit; nil fields are left untouched.
type StudentPatch struct {
	Name         *string
	FatherName   *string
	RollNo       *string
	Class        *string
	Phone        *string
	GRNumber     *string
	DateOfBirth  *Date
	DateOfIssue  *Date
	DateOfExpiry *Date
	PhotoPath    *string
}

// Apply merges the patch into s. An empty PhotoPath clears the photo.
func (p StudentPatch) Apply(s *Student) {
	setString(&s.Name, p.Name)
	setString(&s.FatherName, p.FatherName)
	setString(&s.RollNo, p.RollNo)
	setString(&s.Class, p.Class)
	setString(&s.Phone, p.Phone)
	setString(&s.GRNumber, p.GRNumber)
	if p.DateOfBirth != nil {
		s.DateOfBirth = *p.DateOfBirth
	}
	if p.DateOfIssue != nil {
		s.DateOfIssue = *p.DateOfIssue
	}
	if p.DateOfExpiry != nil {
		s.DateOfExpiry = *p.DateOfExpiry
	}
	if p.PhotoPath != nil {
		if *p.PhotoPath == "" {
			s.PhotoPath = nil
		} else {
			path := *p.PhotoPath
			s.PhotoPath = &path
		}
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Name     string
	Class    string
	RollNo   string
	Page     int
	PageSize int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// ClassCount is the number of students in one class.
type ClassCount struct {
	Class string `json:"class"`
	Count int    `json:"count"`
}

// RecentStudent summarises a recent addition.
type RecentStudent struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt Timestamp `json:"created_at"`
}

// StudentStats is the dashboard summary of the store.
type StudentStats struct {
	Total   int             `json:"total"`
	ByClass []ClassCount    `json:"by_class"`
	Recent  []RecentStudent `json:"recent"`
	Classes []string        `json:"classes"`
}
