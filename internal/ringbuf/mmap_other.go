//go:build !linux

package ringbuf

import "github.com/wavescope/wavescope/internal/errors"

func mapMirrored(size int) ([]byte, func() error, error) {
	return nil, nil, errors.Newf("double mapping not supported on this platform").
		Component(componentRingBuf).
		Category(errors.CategorySystem).
		Build()
}
