//go:build windows

package ops

import (
	"os"

	"github.com/prepd/prepd/internal/errors"
)

// openFileNoFollow opens a file for writing. O_NOFOLLOW does not exist on
// Windows; ValidatePath already rejects symlinks before we get here, and
// creating symlinks requires elevated privileges on Windows anyway.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}

// openFileNoFollowRead opens a file for reading. See openFileNoFollow.
func openFileNoFollowRead(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, err
	}
	return f, nil
}
