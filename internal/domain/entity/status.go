package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// Status is the account lifecycle state. It drives whether login is
// permitted and how failed attempts escalate.
type Status string

const (
	StatusActive         Status = "active"
	StatusWarn1          Status = "warn-1"
	StatusWarn2          Status = "warn-2"
	StatusWarn3          Status = "warn-3"
	StatusWarn4          Status = "warn-4"
	StatusLocked         Status = "locked"
	StatusInvited        Status = "invited"
	StatusInvitedPending Status = "invited-pending"
	StatusInactive       Status = "inactive"
)

// ActiveStatuses is the active class: accounts that exist as real users.
// Locked is part of the class (the account is real, just barred from login).
var ActiveStatuses = []Status{
	StatusActive, StatusWarn1, StatusWarn2, StatusWarn3, StatusWarn4, StatusLocked,
}

// InvitedStatuses is the invited class: accounts that have not completed
// signup and must reject normal login.
var InvitedStatuses = []Status{StatusInvited, StatusInvitedPending}

// AllStatuses enumerates every valid status value.
var AllStatuses = append(append([]Status{}, ActiveStatuses...),
	StatusInvited, StatusInvitedPending, StatusInactive)

func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s Status) IsActiveClass() bool {
	for _, v := range ActiveStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s Status) IsInvitedClass() bool {
	return s == StatusInvited || s == StatusInvitedPending
}

// WarnLevel returns the numeric warn level: 0 for active, 1..4 for warn-N,
// 5 for locked. Other statuses are not part of the escalation ladder and
// return -1.
func (s Status) WarnLevel() int {
	switch {
	case s == StatusActive:
		return 0
	case s == StatusLocked:
		return 5
	case strings.HasPrefix(string(s), "warn-"):
		n, err := strconv.Atoi(strings.TrimPrefix(string(s), "warn-"))
		if err != nil {
			return -1
		}
		return n
	default:
		return -1
	}
}

// Escalate returns the next status after a failed login plus the number of
// attempts remaining before lockout (5 - level; locked means 0). Escalation
// only applies to the active..warn-4 ladder.
func (s Status) Escalate() (Status, int, error) {
	level := s.WarnLevel()
	if level < 0 || s == StatusLocked {
		return s, 0, fmt.Errorf("status %q cannot escalate", s)
	}
	level++
	next := StatusLocked
	if level <= 4 {
		next = Status("warn-" + strconv.Itoa(level))
	}
	return next, 5 - level, nil
}
