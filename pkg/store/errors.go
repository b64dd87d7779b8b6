package store

import (
	"errors"

	"github.com/jade-labs/atomgraph/pkg/common"
)

// IsNotFound reports whether err means the requested record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}
