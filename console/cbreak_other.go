//go:build !linux
// +build !linux

package console

import "errors"

var errNotTerminal = errors.New("not a terminal")

func makeCbreak(fd int) (func() error, error) {
	return nil, errNotTerminal
}
