//go:build !opus

package audioconv

import (
	"errors"
	"io"
)

func decodeOpus(io.ReadSeeker) (decoded, error) {
	return decoded{}, errors.New("opus support not built in (build with -tags opus)")
}
