// Package domain defines the persistence models for departments, citizen
// reports, reactions, comments, and department conversations. These types are
// mapped with GORM and shared by the repository, service, and transport layers.
package domain

import "time"

// Department is a municipal office that receives reports and conversations.
//
// Fields:
//   - ID: surrogate primary key.
//   - Code: short upper-case prefix used when minting report display codes (e.g. "EO").
//   - Name: human-readable department name.
type Department struct {
	ID        uint      `json:"id"         gorm:"primaryKey;autoIncrement"`
	Code      string    `json:"code"       gorm:"type:varchar(8);not null;uniqueIndex"`
	Name      string    `json:"name"       gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Department.
func (Department) TableName() string { return "departments" }

// Barangay is a village district a report can be filed under.
type Barangay struct {
	ID        uint      `json:"id"         gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name"       gorm:"type:varchar(255);not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Barangay.
func (Barangay) TableName() string { return "barangays" }

// Report is a citizen-submitted issue. It carries two independent state
// machines: WorkflowStatus (progress of the fix) and ModerationStatus
// (visibility approval).
//
// Fields:
//   - ID: surrogate key, immutable.
//   - Code: public display code (e.g. "EO4475"), unique and immutable.
//   - UserID: the reporting citizen.
//   - BarangayID: optional district; cleared if the barangay is removed.
//   - RejectionReason: set only while ModerationStatus is rejected.
//   - ReviewedBy / ReviewedAt: last moderation decision, if any.
type Report struct {
	ID               uint             `json:"id"                         gorm:"primaryKey;autoIncrement"`
	Code             string           `json:"code"                       gorm:"type:varchar(32);not null;uniqueIndex"`
	UserID           string           `json:"user_id"                    gorm:"type:varchar(64);not null;index"`
	DepartmentID     uint             `json:"department_id"              gorm:"not null;index:idx_reports_dept_created,priority:1"`
	BarangayID       *uint            `json:"barangay_id,omitempty"      gorm:"index"`
	Title            string           `json:"title"                      gorm:"type:varchar(255);not null"`
	Body             string           `json:"body"                       gorm:"type:text;not null"`
	Latitude         *float64         `json:"latitude,omitempty"`
	Longitude        *float64         `json:"longitude,omitempty"`
	Priority         Priority         `json:"priority"                   gorm:"type:varchar(16);not null;default:'low'"`
	WorkflowStatus   WorkflowStatus   `json:"workflow_status"            gorm:"type:varchar(16);not null;default:'pending';index"`
	ModerationStatus ModerationStatus `json:"moderation_status"          gorm:"type:varchar(16);not null;default:'pending';index"`
	RejectionReason  *string          `json:"rejection_reason,omitempty" gorm:"type:text"`
	ReviewedBy       *string          `json:"reviewed_by,omitempty"      gorm:"type:varchar(64)"`
	ReviewedAt       *time.Time       `json:"reviewed_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"                 gorm:"index:idx_reports_dept_created,priority:2"`
	UpdatedAt        time.Time        `json:"updated_at"`

	Department Department `json:"-"                  gorm:"foreignKey:DepartmentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Barangay   *Barangay  `json:"barangay,omitempty" gorm:"foreignKey:BarangayID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

// TableName returns the database table name for Report.
func (Report) TableName() string { return "reports" }

// Reaction is a single user's like/dislike on a report. At most one row exists
// per (report, user); the unique index is what serializes concurrent toggles.
type Reaction struct {
	ID        uint         `json:"id"         gorm:"primaryKey;autoIncrement"`
	ReportID  uint         `json:"report_id"  gorm:"not null;uniqueIndex:ux_reaction_report_user,priority:1"`
	UserID    string       `json:"user_id"    gorm:"type:varchar(64);not null;uniqueIndex:ux_reaction_report_user,priority:2"`
	Kind      ReactionKind `json:"kind"       gorm:"type:varchar(16);not null"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`

	Report Report `json:"-" gorm:"foreignKey:ReportID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Reaction.
func (Reaction) TableName() string { return "reactions" }

// Comment is a free-text remark attached to a report.
type Comment struct {
	ID        uint      `json:"id"         gorm:"primaryKey;autoIncrement"`
	ReportID  uint      `json:"report_id"  gorm:"not null;index:idx_comments_report,priority:1"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null"`
	Body      string    `json:"body"       gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_comments_report,priority:2"`

	Report Report `json:"-" gorm:"foreignKey:ReportID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Comment.
func (Comment) TableName() string { return "comments" }

// Conversation is the single message thread between one citizen and one
// department. LastActivityAt always equals the CreatedAt of its newest message
// (or the conversation's own CreatedAt while it is empty).
type Conversation struct {
	ID             uint      `json:"id"               gorm:"primaryKey;autoIncrement"`
	UserID         string    `json:"user_id"          gorm:"type:varchar(64);not null;uniqueIndex:ux_conversation_user_dept,priority:1"`
	DepartmentID   uint      `json:"department_id"    gorm:"not null;uniqueIndex:ux_conversation_user_dept,priority:2;index"`
	LastActivityAt time.Time `json:"last_activity_at" gorm:"not null;index"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Department Department `json:"-" gorm:"foreignKey:DepartmentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// ConversationSummary is a conversation row annotated with its most recent
// message, as returned by conversation listings.
type ConversationSummary struct {
	Conversation
	LastMessageID *uint      `json:"last_message_id,omitempty"`
	LastMessage   *string    `json:"last_message,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty" gorm:"-"`
}

// Message is one entry in a conversation. Messages are cascade-deleted with
// their conversation.
type Message struct {
	ID             uint      `json:"id"              gorm:"primaryKey;autoIncrement"`
	ConversationID uint      `json:"conversation_id" gorm:"not null;index:idx_conversation_msgs,priority:1"`
	SenderID       string    `json:"sender_id"       gorm:"type:varchar(64);not null"`
	Body           string    `json:"body"            gorm:"type:text;not null"`
	CreatedAt      time.Time `json:"created_at"      gorm:"index:idx_conversation_msgs,priority:2"`

	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// ReactionCounts aggregates reactions for one report.
type ReactionCounts struct {
	Likes    int64 `json:"like_count"`
	Dislikes int64 `json:"dislike_count"`
}

// Analytics holds dashboard counters, optionally scoped to a department.
type Analytics struct {
	TotalReports      int64 `json:"total_reports"`
	ActiveReports     int64 `json:"active_reports"`
	ResolvedReports   int64 `json:"resolved_reports"`
	PendingModeration int64 `json:"pending_moderation"`
	NewReportsToday   int64 `json:"new_reports_today"`
}
