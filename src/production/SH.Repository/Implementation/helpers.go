package implementation

import (
	"fmt"

	shmodels "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Models"
)

// storageErr tags a persistence layer failure with the ErrStorage sentinel
// so controllers can map it to a server-error response.
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", shmodels.ErrStorage, op, err)
}
