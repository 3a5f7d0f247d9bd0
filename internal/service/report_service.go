package service

import (
	"context"
	"time"

	"github.com/mirmex/helpdesk/internal/domain"
	"github.com/mirmex/helpdesk/internal/policy"
	"github.com/mirmex/helpdesk/internal/repository"
	"github.com/mirmex/helpdesk/internal/sla"
	apperrors "github.com/mirmex/helpdesk/pkg/util"
)

const reportSampleLimit = 1000

// ReportService derives aggregate figures for the reports view. Reads only;
// every number is computed from tickets and the audit trail.
type ReportService struct {
	tickets repository.TicketRepository
	audit   repository.AuditRepository
	now     func() time.Time
}

// ReportSummary is the reports payload.
type ReportSummary struct {
	Total                int                           `json:"total"`
	ByStatus             map[domain.TicketStatus]int   `json:"by_status"`
	ByPriority           map[domain.TicketPriority]int `json:"by_priority"`
	ByCategory           map[domain.TicketCategory]int `json:"by_category"`
	OpenOverdue          int                           `json:"open_overdue"`
	AverageResolutionHrs *float64                      `json:"average_resolution_hours"`
	RecentActivity       []domain.AuditEntry           `json:"recent_activity"`
}

// NewReportService constructs the service.
func NewReportService(tickets repository.TicketRepository, audit repository.AuditRepository) *ReportService {
	return &ReportService{tickets: tickets, audit: audit, now: time.Now}
}

// Summary builds the aggregate report, admin and dispatcher only.
func (s *ReportService) Summary(ctx context.Context, role domain.Role) (*ReportSummary, error) {
	if err := policy.Authorize(role, policy.Ownership{}, policy.ActionViewReports); err != nil {
		return nil, err
	}

	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{Limit: reportSampleLimit})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	summary := &ReportSummary{
		Total:      len(tickets),
		ByStatus:   map[domain.TicketStatus]int{},
		ByPriority: map[domain.TicketPriority]int{},
		ByCategory: map[domain.TicketCategory]int{},
	}

	now := s.now()
	var resolutionSum float64
	var resolved int
	for i := range tickets {
		t := &tickets[i]
		summary.ByStatus[t.Status]++
		summary.ByPriority[t.Priority]++
		summary.ByCategory[t.Category]++
		if sla.IsOverdue(t, now) {
			summary.OpenOverdue++
		}
		if hours := sla.ResolutionHours(t); hours != nil {
			resolutionSum += *hours
			resolved++
		}
	}
	if resolved > 0 {
		avg := resolutionSum / float64(resolved)
		summary.AverageResolutionHrs = &avg
	}

	recent, err := s.audit.ListRecent(ctx, 20)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	summary.RecentActivity = recent
	return summary, nil
}
