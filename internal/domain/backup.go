package domain

// BackupVersion tags the export format written by this build
const BackupVersion = "2.0"

// BackupUser carries the password hash, which the plain User hides from JSON
type BackupUser struct {
	User
	Password string `json:"password"`
}

// Backup is the full-database export and restore file.
// A nil collection means "absent from the file" and is left untouched on restore.
type Backup struct {
	Version         string                      `json:"version"`
	Timestamp       string                      `json:"timestamp"`
	Users           []BackupUser                `json:"users"`
	Requests        []RechargeRequest           `json:"requests"`
	Transactions    []Transaction               `json:"transactions"`
	GeneratedImages []GeneratedImage            `json:"generatedImages"`
	ChatMessages    map[string][]SupportMessage `json:"chatMessages"`
}
