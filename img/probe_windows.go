//go:build windows

package img

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

type diskGeometry struct {
	Cylinders         int64
	MediaType         int32
	TracksPerCylinder int32
	SectorsPerTrack   int32
	BytesPerSector    int32
}

// deviceSize queries the physical drive geometry so that raw device handles
// whose reported size is 0 still work.
func deviceSize(path string) (int64, error) {
	const IOCTL_DISK_GET_DRIVE_GEOMETRY = 0x70000
	const nByteDiskGeometry = 24

	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, errors.Wrap(ErrNoSuchFile, path)
	}
	var templateHandle windows.Handle
	fd, err := windows.CreateFile(pathPtr, 0,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE, nil,
		windows.OPEN_EXISTING, 0, templateHandle)
	if err != nil {
		return 0, errors.Wrap(ErrNoSuchFile, path)
	}
	defer windows.Close(fd)

	geometry := diskGeometry{}
	var junk uint32
	err = windows.DeviceIoControl(fd, IOCTL_DISK_GET_DRIVE_GEOMETRY,
		nil, 0, (*byte)(unsafe.Pointer(&geometry)), nByteDiskGeometry, &junk, nil)
	if err != nil {
		return 0, errors.Wrapf(ErrRead, "%s: drive geometry: %v", path, err)
	}

	return geometry.Cylinders * int64(geometry.TracksPerCylinder) *
		int64(geometry.SectorsPerTrack) * int64(geometry.BytesPerSector), nil
}
