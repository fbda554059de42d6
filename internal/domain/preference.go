package domain

// Preference holds per-user UI and contact settings, created with defaults
// on first read.
type Preference struct {
	ID         uint   `gorm:"primaryKey"`           // Primary key
	UserID     uint   `gorm:"uniqueIndex"`          // Owning user
	EmailAlert bool   `gorm:"default:true"`         // Email notifications enabled
	PushAlert  bool   `gorm:"default:true"`         // Push notifications enabled
	Theme      string `gorm:"size:12;default:light"` // light or dark
	Language   string `gorm:"size:8;default:en"`    // BCP-47 language tag
	UpdatedAt  int64  `gorm:"autoUpdateTime:milli"` // Timestamp of last change
}
