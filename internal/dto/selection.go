package dto

import "github.com/noah-isme/student-idcard/internal/models"

// SelectionRequest names the students a bulk action applies to.
type SelectionRequest struct {
	IDs []int `json:"ids" validate:"omitempty,dive,gt=0"`
}

// CardResponse describes a freshly rendered card.
type CardResponse struct {
	StudentID int    `json:"student_id"`
	Filename  string `json:"filename"`
	Size      int    `json:"size"`
}

// NewCardResponse summarises doc without its content.
func NewCardResponse(doc *models.CardDocument) CardResponse {
	return CardResponse{StudentID: doc.StudentID, Filename: doc.Filename, Size: len(doc.Content)}
}

// DeleteResponse reports a single deletion.
type DeleteResponse struct {
	ID      int  `json:"id"`
	Deleted bool `json:"deleted"`
}
