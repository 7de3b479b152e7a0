package source

import "github.com/partforge/partforge/internal/errs"

func errInvalidSourceType(t string) error { return errs.InvalidSourceType(t) }
