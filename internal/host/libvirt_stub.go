//go:build !libvirt

package host

import (
	"fmt"

	"github.com/rs/zerolog"
)

func NewLibvirt(uri string, logger zerolog.Logger) (Host, error) {
	return nil, fmt.Errorf("%w: built without libvirt support (rebuild with -tags libvirt)", ErrBackendUnavailable)
}
