package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

/* =============================== Enums ================================== */

// Role is the discriminator of a user record.
type Role string

const (
	RoleClient Role = "client"
	RoleLawyer Role = "lawyer"
	RoleAdmin  Role = "admin"
)

// ConsultationStatus defines lifecycle states for a consultation.
type ConsultationStatus string

const (
	ConsultationPending   ConsultationStatus = "pending"
	ConsultationBooked    ConsultationStatus = "booked"
	ConsultationCompleted ConsultationStatus = "completed"
	ConsultationCancelled ConsultationStatus = "cancelled"
)

// ConsultationMode is how the session takes place.
type ConsultationMode string

const (
	ModeChat  ConsultationMode = "chat"
	ModeCall  ConsultationMode = "call"
	ModeVideo ConsultationMode = "video"
)

// VerificationStatus tracks an admin review of a lawyer profile.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// SenderRole identifies who wrote a consultation chat message.
type SenderRole string

const (
	SenderClient SenderRole = "client"
	SenderLawyer SenderRole = "lawyer"
	SenderSystem SenderRole = "system"
)

// ContentType of a consultation chat message.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentDocument ContentType = "document"
)

// ChatSender identifies the author of a general AI chat message.
type ChatSender string

const (
	ChatSenderUser ChatSender = "user"
	ChatSenderAI   ChatSender = "ai"
)

// PayStatus defines lifecycle states for a payment.
type PayStatus string

const (
	PayInitiated PayStatus = "initiated"
	PayPaid      PayStatus = "paid"
	PayFailed    PayStatus = "failed"
)

/* =============================== Users ================================== */

// User is the base record for every role. Lawyer is populated only for
// role=lawyer.
type User struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ExternalID string    `gorm:"uniqueIndex;not null" json:"userId"` // identity-provider id
	Name       string    `gorm:"not null" json:"name"`
	Email      string    `gorm:"uniqueIndex;not null" json:"email"`
	Phone      string    `json:"phone,omitempty"`
	Role       Role      `gorm:"type:varchar(20);not null;index" json:"role"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	Lawyer *LawyerProfile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"lawyer,omitempty"`
}

// AvailabilityWindow is one weekly slot a lawyer accepts bookings in.
type AvailabilityWindow struct {
	Day       string `json:"day" validate:"required"`
	StartTime string `json:"startTime" validate:"clock"`
	EndTime   string `json:"endTime" validate:"clock"`
}

// LawyerProfile holds the lawyer-only fields of a user.
type LawyerProfile struct {
	UserID             uuid.UUID                               `gorm:"type:uuid;primaryKey" json:"-"`
	Specialization     string                                  `json:"specialization"`
	BarID              string                                  `gorm:"index" json:"barId"`
	ExperienceYears    int                                     `json:"experience"`
	FeePerHour         int                                     `json:"feePerHour"`
	Availability       datatypes.JSONSlice[AvailabilityWindow] `json:"availabilitySchedule"`
	MeetingLink        string                                  `json:"connectionLink,omitempty"`
	VerificationStatus VerificationStatus                      `gorm:"type:varchar(20);default:'pending'" json:"verificationStatus"`
}

/* ============================ Consultations ============================= */

// Consultation is a booking between a client and a lawyer.
type Consultation struct {
	ID          uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID    uuid.UUID          `gorm:"type:uuid;not null;index" json:"clientId"`
	LawyerID    uuid.UUID          `gorm:"type:uuid;not null;index" json:"lawyerId"`
	DateTime    time.Time          `gorm:"not null;index" json:"dateTime"`
	Mode        ConsultationMode   `gorm:"type:varchar(10);not null;default:'chat'" json:"mode"`
	Status      ConsultationStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	PaymentID   *uuid.UUID         `gorm:"type:uuid" json:"paymentId"`
	MeetingLink *string            `json:"meetingLink"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`

	Client *User `gorm:"foreignKey:ClientID;references:ID" json:"-"`
	Lawyer *User `gorm:"foreignKey:LawyerID;references:ID" json:"-"`
}

// ConsultationHistory is an audit log entry for consultation changes.
type ConsultationHistory struct {
	ID             uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ConsultationID uuid.UUID          `gorm:"type:uuid;not null;index"`
	ActorID        *uuid.UUID         `gorm:"type:uuid;index"` // nil for system actions
	Action         string             `gorm:"type:varchar(50);not null"`
	OldStatus      ConsultationStatus `gorm:"type:varchar(20)"`
	NewStatus      ConsultationStatus `gorm:"type:varchar(20)"`
	Reason         string             `gorm:"type:text"`
	CreatedAt      time.Time          `gorm:"autoCreateTime"`
}

/* ========================== Consultation chat =========================== */

// ChatConsultancy is the single message thread attached to a consultation.
type ChatConsultancy struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ConsultationID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"consultationId"`
	ClientID        uuid.UUID `gorm:"type:uuid;not null;index" json:"clientId"`
	LawyerID        uuid.UUID `gorm:"type:uuid;not null;index" json:"lawyerId"`
	Title           string    `json:"title"`
	LastMessage     string    `gorm:"type:text" json:"lastMessage"`
	UnreadForClient int       `gorm:"not null;default:0" json:"unreadForClient"`
	UnreadForLawyer int       `gorm:"not null;default:0" json:"unreadForLawyer"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `gorm:"index" json:"updatedAt"`
}

// ConsultationMessage is one entry of a consultation thread.
type ConsultationMessage struct {
	ID           uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ChatID       uuid.UUID   `gorm:"type:uuid;not null;index:idx_msg_chat_created" json:"chatId"`
	SenderID     uuid.UUID   `gorm:"type:uuid;not null" json:"senderId"`
	SenderRole   SenderRole  `gorm:"type:varchar(10);not null" json:"senderRole"`
	Content      string      `gorm:"type:text;not null" json:"content"`
	ContentType  ContentType `gorm:"type:varchar(10);not null;default:'text'" json:"contentType"`
	DocumentID   *uuid.UUID  `gorm:"type:uuid" json:"documentId"`
	ReadByClient bool        `gorm:"not null;default:false" json:"readByClient"`
	ReadByLawyer bool        `gorm:"not null;default:false" json:"readByLawyer"`
	CreatedAt    time.Time   `gorm:"index:idx_msg_chat_created" json:"createdAt"`

	Sender *User `gorm:"foreignKey:SenderID;references:ID" json:"-"`
}

// Document is a file uploaded into a consultation and stored remotely.
type Document struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ConsultationID uuid.UUID `gorm:"type:uuid;not null;index" json:"consultationId"`
	UploadedBy     uuid.UUID `gorm:"type:uuid;not null" json:"uploadedBy"`
	FileName       string    `gorm:"not null" json:"fileName"`
	FilePath       string    `gorm:"not null" json:"filePath"`
	StorageID      string    `gorm:"not null" json:"storageId"`
	FileType       string    `json:"fileType"`
	FileSize       int64     `json:"fileSize"`
	CreatedAt      time.Time `json:"createdAt"`
}

/* ============================ General AI chat =========================== */

// Chat is a general AI conversation owned by an identity-provider user.
type Chat struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID       string    `gorm:"not null;index:idx_chat_user_updated" json:"userId"`
	Title        string    `gorm:"not null" json:"title"`
	FileName     string    `gorm:"type:text" json:"fileName,omitempty"`
	HasDocument  bool      `gorm:"not null;default:false" json:"hasDocument"`
	DocumentData string    `gorm:"type:text" json:"-"` // base64
	DocumentSize int64     `json:"documentSize,omitempty"`
	DocumentType string    `json:"documentType,omitempty"`
	FileID       string    `json:"fileId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `gorm:"index:idx_chat_user_updated" json:"updatedAt"`
}

// Message is one turn of a general AI conversation.
type Message struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ChatID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"chatId"`
	Sender    ChatSender `gorm:"type:varchar(10);not null" json:"sender"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
}

/* =============================== Payments =============================== */

// Payment is a checkout attempt for a consultation.
type Payment struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ConsultationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"consultationId"`
	ClientID       uuid.UUID `gorm:"type:uuid;not null" json:"clientId"`
	ProviderRef    string    `gorm:"uniqueIndex" json:"providerRef"`
	AmountCents    int       `gorm:"not null" json:"amountCents"` // stored in cents to avoid float issues
	Status         PayStatus `gorm:"type:varchar(20);default:'initiated'" json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// All lists every model for migrations.
func All() []any {
	return []any{
		&User{}, &LawyerProfile{},
		&Consultation{}, &ConsultationHistory{},
		&ChatConsultancy{}, &ConsultationMessage{}, &Document{},
		&Chat{}, &Message{},
		&Payment{},
	}
}
