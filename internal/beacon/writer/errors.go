package writer

import "errors"

var errMismatchedMagic = errors.New("writer: discovery page missing HayD magic")
