package accounts

import (
	"fmt"

	"github.com/markit/attendance/internal/database/requests"
	"github.com/markit/attendance/internal/entities"
)

func errAlreadyReviewed(status entities.AccountRequestStatus) error {
	return fmt.Errorf("%w (%s)", requests.ErrAlreadyHandled, status)
}
