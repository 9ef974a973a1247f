//go:build !linux

package storage

import "errors"

var errUnsupportedPlatform = errors.New("filesystem detection unsupported on this platform")

func filesystemType(string) (string, error) {
	return "", errUnsupportedPlatform
}
