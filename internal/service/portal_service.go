package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/cnc-service/internal/model"
)

const portalRecentSessions = 5

// PortalService serves the unauthenticated client view of a single work order.
type PortalService struct {
	repos     Repositories
	documents *DocumentService
	log       zerolog.Logger
	now       Clock
}

func NewPortalService(repos Repositories, documents *DocumentService, log zerolog.Logger) *PortalService {
	return &PortalService{repos: repos, documents: documents, log: log, now: time.Now}
}

// WithClock replaces the time source.
func (s *PortalService) WithClock(clock Clock) *PortalService {
	s.now = clock
	return s
}

func (s *PortalService) View(ctx context.Context, publicKey string) (*model.PortalView, error) {
	wo, err := s.workOrder(ctx, publicKey)
	if err != nil {
		return nil, err
	}

	sessions, err := s.repos.Sessions.ListByWorkOrder(ctx, wo.ID)
	if err != nil {
		return nil, storageErr(err)
	}
	docs, err := s.repos.Documents.ListByWorkOrder(ctx, wo.ID)
	if err != nil {
		return nil, storageErr(err)
	}

	view := &model.PortalView{
		WorkOrder:        clientSafe(*wo),
		Sessions:         portalSessions(sessions, s.now()),
		PendingDocuments: []model.Document{},
		Timeline:         []model.ActivityEvent{},
	}
	for i := range docs {
		if docs[i].Status == model.DocumentStatusPendingSignature {
			doc := s.documents.decorate(&docs[i])
			doc.ClientSignature = nil
			view.PendingDocuments = append(view.PendingDocuments, *doc)
		}
	}

	if s.repos.Activity != nil {
		events, err := s.repos.Activity.ListByWorkOrder(ctx, wo.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("work_order_id", wo.ID).Msg("load activity timeline failed")
		}
		for _, ev := range events {
			if ev.VisibleToClient {
				view.Timeline = append(view.Timeline, ev)
			}
		}
		sort.SliceStable(view.Timeline, func(i, j int) bool {
			return view.Timeline[i].Timestamp.After(view.Timeline[j].Timestamp)
		})
	}
	return view, nil
}

func (s *PortalService) Sign(ctx context.Context, publicKey string, documentID uuid.UUID, signature, signer string) (*model.Document, error) {
	wo, err := s.workOrder(ctx, publicKey)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(signer) == "" {
		signer = wo.ClientName
	}
	return s.documents.SignForWorkOrder(ctx, wo.ID, documentID, signature, signer)
}

func (s *PortalService) workOrder(ctx context.Context, publicKey string) (*model.WorkOrder, error) {
	publicKey = strings.TrimSpace(publicKey)
	if publicKey == "" {
		return nil, ErrNotFound
	}
	wo, err := s.repos.WorkOrders.GetByPublicKey(ctx, publicKey)
	if err != nil {
		return nil, storageErr(err)
	}
	return wo, nil
}

// portalSessions keeps open sessions and the latest finished ones.
func portalSessions(sessions []model.Session, now time.Time) []model.PortalSession {
	result := make([]model.PortalSession, 0, len(sessions))
	finished := 0
	for _, session := range sessions {
		if session.IsTerminal() {
			if finished >= portalRecentSessions {
				continue
			}
			finished++
		}
		result = append(result, model.PortalSession{
			ID:         session.ID.String(),
			Status:     session.Status,
			StartedAt:  session.StartedAt,
			FinishedAt: session.FinishedAt,
			Duration:   FormatDuration(SessionMinutes(session, now)),
		})
	}
	return result
}

func clientSafe(wo model.WorkOrder) model.WorkOrder {
	wo.PublicKey = ""
	wo.CreatedBy = ""
	return wo
}
