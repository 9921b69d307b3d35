package store

import "time"

// licenseRecordID: the license table holds exactly one row per
// installation, keyed by this fixed id.
const licenseRecordID = 1

// LicenseRecord is the persisted singleton license row. The payload is the
// AES-GCM ciphertext of the license token; it is empty until first
// activation.
type LicenseRecord struct {
	ID                uint      `gorm:"primaryKey"`
	EncryptedPayload  []byte    `gorm:"column:encrypted_payload"`
	DeviceFingerprint string    `gorm:"column:device_fingerprint;not null"`
	ActivatedAt       time.Time `gorm:"column:activated_at"`
	IsActive          bool      `gorm:"column:is_active;not null;default:false"`
}

func (LicenseRecord) TableName() string { return "license" }

// VisitRecord holds the data fields shared between live visits and their
// integrity-guard backups.
type VisitRecord struct {
	NRIC            string     `gorm:"column:nric;index" json:"nric"`
	HPNo            string     `gorm:"column:hp_no;index" json:"hp_no"`
	FirstName       string     `gorm:"column:first_name;not null" json:"first_name"`
	LastName        string     `gorm:"column:last_name;not null" json:"last_name"`
	Name            string     `gorm:"column:name;not null" json:"name"`
	Category        string     `gorm:"column:category;not null" json:"category"`
	Purpose         string     `gorm:"column:purpose;not null" json:"purpose"`
	Destination     string     `gorm:"column:destination;not null" json:"destination"`
	Company         string     `gorm:"column:company" json:"company"`
	VehicleNumber   string     `gorm:"column:vehicle_number" json:"vehicle_number"`
	PassNumber      string     `gorm:"column:pass_number;index" json:"pass_number"`
	IDNumber        string     `gorm:"column:id_number" json:"id_number"`
	Remarks         string     `gorm:"column:remarks" json:"remarks"`
	PersonVisited   string     `gorm:"column:person_visited;not null" json:"person_visited"`
	Organization    string     `gorm:"column:organization" json:"organization"`
	CheckInTime     time.Time  `gorm:"column:check_in_time;not null;index" json:"check_in_time"`
	CheckOutTime    *time.Time `gorm:"column:check_out_time;index" json:"check_out_time,omitempty"`
	DurationMinutes *int       `gorm:"column:duration" json:"duration_minutes,omitempty"`
}

// Visitor is one visit entry. An entry with a nil CheckOutTime is an active
// visit.
type Visitor struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	VisitRecord `gorm:"embedded"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Visitor) TableName() string { return "visitors" }

// VisitorBackup is a snapshot row written by the integrity guard before it
// clears the live table on a device mismatch. Rows from one guard run share
// the same BackedUpAt stamp.
type VisitorBackup struct {
	ID          uint `gorm:"primaryKey"`
	SourceID    uint `gorm:"column:source_id"`
	VisitRecord `gorm:"embedded"`
	BackedUpAt  time.Time `gorm:"column:backed_up_at;index;not null"`
}

func (VisitorBackup) TableName() string { return "visitor_backups" }

// User is a desk operator account.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	Organization string    `gorm:"not null" json:"organization"`
	UserID       string    `gorm:"column:user_id;uniqueIndex;not null" json:"user_id"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         string    `gorm:"not null;index" json:"role"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }

// BlacklistEntry bars a phone number from registration.
type BlacklistEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	HPNo      string    `gorm:"column:hp_no;uniqueIndex;not null" json:"hp_no"`
	Name      string    `json:"name"`
	NRIC      string    `gorm:"column:nric" json:"nric"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

func (BlacklistEntry) TableName() string { return "blacklist" }
