package domain

// Roles a user can hold
const (
	RoleUser  = "user"  // Regular customer
	RoleAdmin = "admin" // Operator who approves recharges and answers chats
)

// User Model
type User struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`                 // UUID primary key
	Username  string `gorm:"uniqueIndex;size:64;not null" json:"username"` // Canonical (lower-case) username
	Password  string `gorm:"not null" json:"-"`                            // bcrypt hash, never rendered
	Name      string `gorm:"size:128" json:"name"`                         // Display name
	Role      string `gorm:"size:16;default:user" json:"role"`             // Role: user or admin
	Avatar    string `json:"avatar"`                                       // Avatar URL
	Balance   int64  `gorm:"not null;default:0" json:"balance"`            // Whole currency units
	CreatedAt int64  `gorm:"autoCreateTime:milli" json:"createdAt"`        // Timestamp of creation in milliseconds
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
