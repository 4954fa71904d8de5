package domain

// GeneratedImage Model
type GeneratedImage struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	UserID    string `gorm:"index;size:36;not null" json:"userId"`
	UserName  string `gorm:"size:128" json:"userName"`
	ImageData string `json:"imageData"` // data URL or object storage URL
	Settings  string `gorm:"size:255" json:"settingsSummary"`
	CreatedAt int64  `gorm:"index;autoCreateTime:milli" json:"timestamp"`
}
