package customers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Customer struct {
	ID        int64
	FullName  string
	Phone     string
	FlatHours float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

var ErrBadBadgeCode = errors.New("customers: malformed badge code")

// Badge codes are printed on member cards as "ID-<id>-NAME-<full name>".
// Only the id part identifies the customer; the name is for the operator.

func FormatBadgeCode(id int64, name string) string {
	return fmt.Sprintf("ID-%d-NAME-%s", id, name)
}

func ParseBadgeCode(code string) (int64, error) {
	code = strings.TrimSpace(code)
	if !strings.HasPrefix(code, "ID-") || !strings.Contains(code, "-NAME-") {
		return 0, ErrBadBadgeCode
	}
	idPart := strings.TrimPrefix(code, "ID-")
	idPart = idPart[:strings.Index(idPart, "-NAME-")]
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrBadBadgeCode
	}
	return id, nil
}
