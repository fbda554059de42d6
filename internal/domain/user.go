package domain

// User Model
type User struct {
	ID        uint   `gorm:"primaryKey"`      // Primary key
	Username  string `gorm:"unique;not null"` // Unique username
	Password  string `gorm:"not null"`        // Hashed password
	Phone     string `gorm:"size:20"`         // Optional phone number (bill purchases default to it)
	Role      string `gorm:"default:user"`    // Role: user or admin
	KYCLevel  int    `gorm:"default:0"`       // Verified KYC tier (0-3)
	Suspended bool   `gorm:"default:false"`   // Suspended users keep read access but cannot move money
	Wallet    Wallet `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"` // One-to-one relationship with Wallet
	CreatedAt int64  `gorm:"autoCreateTime:milli"`                           // Timestamp of creation in milliseconds
}
