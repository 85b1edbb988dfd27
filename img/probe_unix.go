//go:build !windows

package img

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// deviceSize derives the size of a block device whose stat size is 0 by
// binary probing with single byte preads: double the offset until a read
// fails, then walk the bits back down. The last readable offset plus one is
// the size.
func deviceSize(path string) (int64, error) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return 0, errors.Wrap(ErrNoSuchFile, path)
	}
	defer unix.Close(fd)

	buf := make([]byte, 1)
	var rawFilesize int64
	var bits int
	for bits = 0; bits < 60; bits++ {
		rawFilesize = int64(1) << uint(bits)
		if n, _ := unix.Pread(fd, buf, rawFilesize); n != 1 {
			break
		}
	}
	if bits == 60 {
		return 0, errors.Wrapf(ErrRead, "%s: size probe not functional", path)
	}

	for i := bits; i >= 0; i-- {
		test := int64(1) << uint(i)
		testFilesize := rawFilesize | test
		if n, _ := unix.Pread(fd, buf, testFilesize); n == 1 {
			rawFilesize |= test
		} else {
			rawFilesize &^= test
		}
	}
	if rawFilesize > 0 {
		rawFilesize += 1 // size is the last readable offset plus one
	}
	return rawFilesize, nil
}
