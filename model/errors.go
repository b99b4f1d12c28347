package model

import (
	"fmt"

	"github.com/leopardracer/deep-prove/zkerr"
)

func shapeErr(kind Kind, format string, args ...any) error {
	return zkerr.Shape("%s: %s", kind, fmt.Sprintf(format, args...))
}

func rangeErr(kind Kind, format string, args ...any) error {
	return zkerr.Range("%s: %s", kind, fmt.Sprintf(format, args...))
}
