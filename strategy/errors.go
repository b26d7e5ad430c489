package strategy

import "errors"

// ErrNoMembers indicates that no members were provided for assignment.
var ErrNoMembers = errors.New("no members available for assignment")
