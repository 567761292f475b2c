package card

import (
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/noah-isme/student-idcard/internal/models"
)

// BuildPayload renders the eight-line text encoded in the card's QR symbol.
func BuildPayload(student models.Student) (string, error) {
	dates := make([]string, 0, 3)
	for _, f := range []struct {
		name string
		date models.Date
	}{
		{"date_of_birth", student.DateOfBirth},
		{"date_of_issue", student.DateOfIssue},
		{"date_of_expiry", student.DateOfExpiry},
	} {
		formatted, err := cardDate(f.name, f.date)
		if err != nil {
			return "", err
		}
		dates = append(dates, formatted)
	}

	lines := []string{
		"Name: " + student.Name,
		"Father Name: " + student.FatherName,
		"Roll No: " + student.RollNo,
		"GR NO: " + student.GRNumber,
		"DOB: " + dates[0],
		"Issue: " + dates[1],
		"Expiry: " + dates[2],
		"Phone: " + student.Phone,
	}
	return strings.Join(lines, "\n"), nil
}

// EncodeMatrix returns the QR module grid for payload at the lowest error
// correction level. The grid is square and includes the 4-module quiet zone.
func EncodeMatrix(payload string) ([][]bool, error) {
	code, err := qrcode.New(payload, qrcode.Low)
	if err != nil {
		return nil, err
	}
	return code.Bitmap(), nil
}
