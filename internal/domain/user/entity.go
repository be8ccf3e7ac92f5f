package user

// User represents a user entity in the system.
type User struct {
	ID    int64  // ID is assigned by storage on insert and never changes
	Name  string // Name is the display name of the user
	Email string // Email is the contact address of the user
}
