package errors

import (
	"fmt"
	"strings"
)

var (
	ErrNameTaken      = fmt.Errorf("username already taken")
	ErrTargetNotFound = fmt.Errorf("target not found")
	ErrTargetHasNoKey = fmt.Errorf("target has no public key")
	ErrNotRegistered  = fmt.Errorf("sender is not registered")
	ErrGroupNotFound  = fmt.Errorf("group not found")
	ErrNotGroupAdmin  = fmt.Errorf("sender is not the group admin")
	ErrNotGroupMember = fmt.Errorf("sender is not a group member")
	ErrWorkerPanic    = fmt.Errorf("worker panic")
)

// MissingMembersError aborts group creation when some requested members
// are not currently registered. It carries the full list so the admin
// can fix the request in one round trip.
type MissingMembersError struct {
	Missing []string
}

func (e MissingMembersError) Error() string {
	return fmt.Sprintf("unknown members: %s", strings.Join(e.Missing, ", "))
}
