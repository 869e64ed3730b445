package services

import (
	"github.com/tbourn/civic-report-backend/internal/domain"
	"github.com/tbourn/civic-report-backend/internal/realtime"
)

// Dashboard notice types.
const (
	NoticeCreated    = "created"
	NoticeStatus     = "status"
	NoticeModeration = "moderation"
	NoticeDelete     = "delete"
)

// DashboardNotice is the payload of a dashboard_update event.
type DashboardNotice struct {
	Type             string                  `json:"type"`
	ReportIdentity   string                  `json:"report_identity"`
	ReportID         uint                    `json:"report_id"`
	DepartmentID     uint                    `json:"department_id"`
	NewValue         string                  `json:"new_value,omitempty"`
	WorkflowStatus   domain.WorkflowStatus   `json:"workflow_status,omitempty"`
	ModerationStatus domain.ModerationStatus `json:"moderation_status,omitempty"`
}

func noticeFor(kind string, r *domain.Report, newValue string) DashboardNotice {
	n := DashboardNotice{
		Type:           kind,
		ReportIdentity: r.Code,
		ReportID:       r.ID,
		DepartmentID:   r.DepartmentID,
		NewValue:       newValue,
	}
	if kind != NoticeDelete {
		n.WorkflowStatus = r.WorkflowStatus
		n.ModerationStatus = r.ModerationStatus
	}
	return n
}

// noopPublisher is used when a service is built without a broadcaster.
type noopPublisher struct{}

func (noopPublisher) Publish(string, realtime.Event) {}

func publisherOrNoop(p realtime.Publisher) realtime.Publisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

func publishDashboard(p realtime.Publisher, n DashboardNotice) {
	p.Publish(realtime.DashboardTopic, realtime.Event{Type: realtime.TypeDashboardUpdate, Data: n})
}
