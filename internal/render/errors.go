package render

import (
	"errors"
	"fmt"
)

// ErrUnknownService is matched by UnknownServiceError
var ErrUnknownService = errors.New("unknown service")

// UnknownServiceError reports an intervention linked to a service the store did not list
type UnknownServiceError struct {
	InterventionID int64
	ServiceID      int64
}

func (e *UnknownServiceError) Error() string {
	return fmt.Sprintf("intervention %d references unknown service %d", e.InterventionID, e.ServiceID)
}

// Is makes errors.Is(err, ErrUnknownService) hold
func (*UnknownServiceError) Is(target error) bool {
	return target == ErrUnknownService
}
