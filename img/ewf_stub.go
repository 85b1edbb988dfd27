//go:build noewf

package img

import "github.com/pkg/errors"

func newEWFProcess(fname string, pagesize int, margin int) (Process, error) {
	return nil, errors.Wrapf(ErrUnsupported, "%s: this build has no E01 support", fname)
}
