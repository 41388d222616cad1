package application

// Caller identifies who is invoking a service operation: the account owner
// acting on their own behalf, or an administrator acting on someone else's.
// Passing it explicitly replaces any ambient request context sniffing.
type Caller struct {
	admin  bool
	userID int64
}

// Self is a caller acting on their own account.
func Self(userID int64) Caller { return Caller{userID: userID} }

// Admin is a caller with elevated permissions; the old-password check is
// skipped for password changes on other accounts.
func Admin() Caller { return Caller{admin: true} }

func (c Caller) IsAdmin() bool { return c.admin }

// IsSelf reports whether the caller is the owner of the target account.
func (c Caller) IsSelf(targetID int64) bool {
	return !c.admin && c.userID == targetID
}
