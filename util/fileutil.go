package util

import (
	"os"
	"path/filepath"
)

// PathExists reports whether a path exists on disk, distinguishing a
// missing path from a stat error.
func PathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// CreateFileBySize creates (or truncates) filePath/fileName and sizes it to
// size bytes, the tail implicitly zero-filled by the filesystem.
func CreateFileBySize(filePath string, fileName string, size int64) error {
	full := filepath.Join(filePath, fileName)
	f, err := os.Create(full)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Truncate(size)
}

// EnsureDir creates folderName under path if it does not already exist.
func EnsureDir(path string, folderName string) error {
	folderPath := filepath.Join(path, folderName)
	ok, err := PathExists(folderPath)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return os.MkdirAll(folderPath, 0o755)
}
