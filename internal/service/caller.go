package service

// Caller identifies who is performing an operation.  Handlers build it from
// the verified access token; tests build it directly.
type Caller struct {
	UserID  uint64
	IsStaff bool
}

func (c Caller) check() error {
	if c.UserID == 0 {
		return ErrUnauthenticated
	}
	return nil
}

func (c Caller) requireStaff() error {
	if err := c.check(); err != nil {
		return err
	}
	if !c.IsStaff {
		return ErrForbidden
	}
	return nil
}

// canSee reports whether the caller may read a borrowing owned by userID.
func (c Caller) canSee(userID uint64) bool {
	return c.IsStaff || c.UserID == userID
}
