package webhook

import (
	"context"
	"encoding/json"
	"time"

	"presales_backend/internal/leads/domain"
	leadsrepo "presales_backend/internal/leads/repository"
	"presales_backend/platform/apperr"
	"presales_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	eventStatusUpdate    = "status-update"
	eventEndOfCallReport = "end-of-call-report"

	ActionProcessed = "processed"
	ActionDuplicate = "duplicate"
	ActionIgnored   = "ignored"
)

// EventLedger records received events for idempotent ingestion. The
// Repository implements this.
type EventLedger interface {
	InsertEvent(ctx context.Context, callID, eventType, status string, leadID uuid.UUID, payload []byte) (bool, error)
}

// EngagementDriver applies classified call events to lead state and
// resolves leads from call handles. The leads orchestrator implements this.
type EngagementDriver interface {
	OnCallOutcome(ctx context.Context, leadID uuid.UUID, callID string, outcome domain.Outcome) error
	OnCallReport(ctx context.Context, leadID uuid.UUID, callID string, report leadsrepo.CallReport, callbackAt *time.Time) error
	LeadIDByCallID(ctx context.Context, callID string) (uuid.UUID, error)
}

// Archiver stores raw event payloads for audit. Best-effort; a nil
// archiver disables archiving.
type Archiver interface {
	ArchiveCallEvent(ctx context.Context, callID, eventType string, payload []byte) error
}

// callEnvelope is the gateway's webhook payload shape. Call metadata
// appears either top-level or nested under the message, depending on the
// event type.
type callEnvelope struct {
	Message envelopeMessage `json:"message"`
	Call    *envelopeCall   `json:"call"`
}

type envelopeMessage struct {
	Type        string            `json:"type"`
	Status      string            `json:"status"`
	EndedReason string            `json:"endedReason"`
	Analysis    *envelopeAnalysis `json:"analysis"`
	Call        *envelopeCall     `json:"call"`
}

type envelopeAnalysis struct {
	Summary           string          `json:"summary"`
	SuccessEvaluation string          `json:"successEvaluation"`
	StructuredData    json.RawMessage `json:"structuredData"`
}

type envelopeCall struct {
	ID          string            `json:"id"`
	AnsweredAt  *time.Time        `json:"answeredAt"`
	ConnectedAt *time.Time        `json:"connectedAt"`
	Metadata    map[string]string `json:"metadata"`
}

// Service ingests gateway call events: records them idempotently,
// classifies them, and drives the engagement orchestrator.
type Service struct {
	repo      EventLedger
	driver    EngagementDriver
	archiver  Archiver
	extractor IntentExtractor
	log       *logger.Logger
}

// NewService creates a new webhook service.
func NewService(repo EventLedger, driver EngagementDriver, archiver Archiver, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		driver:   driver,
		archiver: archiver,
		log:      log,
	}
}

// ProcessEvent handles one raw webhook delivery. Returns the action taken
// so the handler can echo it back to the gateway.
func (s *Service) ProcessEvent(ctx context.Context, payload []byte) (string, error) {
	var env callEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return "", apperr.BadRequest("malformed event payload")
	}

	call := env.Call
	if call == nil || call.Metadata["lead_uuid"] == "" {
		if env.Message.Call != nil {
			call = env.Message.Call
		}
	}
	if call == nil || call.ID == "" {
		return "", apperr.BadRequest("event carries no call reference")
	}

	leadID, err := s.resolveLead(ctx, call)
	if err != nil {
		return "", err
	}

	eventType := env.Message.Type
	inserted, err := s.repo.InsertEvent(ctx, call.ID, eventType, env.Message.Status, leadID, payload)
	if err != nil {
		return "", err
	}
	if !inserted {
		s.log.Debug("duplicate call event, skipping", "callId", call.ID, "type", eventType, "status", env.Message.Status)
		return ActionDuplicate, nil
	}

	s.archive(ctx, call.ID, eventType, payload)

	switch eventType {
	case eventStatusUpdate:
		return s.processStatusUpdate(ctx, leadID, call, env.Message)
	case eventEndOfCallReport:
		return s.processCallReport(ctx, leadID, call.ID, env.Message)
	}

	s.log.Debug("unhandled event type", "callId", call.ID, "type", eventType)
	return ActionIgnored, nil
}

// resolveLead prefers the lead id carried in the call metadata and falls
// back to looking up the lead that owns the call handle.
func (s *Service) resolveLead(ctx context.Context, call *envelopeCall) (uuid.UUID, error) {
	if leadID, err := uuid.Parse(call.Metadata["lead_uuid"]); err == nil {
		return leadID, nil
	}

	leadID, err := s.driver.LeadIDByCallID(ctx, call.ID)
	if err != nil {
		if apperr.GetKind(err) == apperr.KindNotFound {
			return uuid.Nil, apperr.BadRequest("event references no known lead")
		}
		return uuid.Nil, err
	}
	return leadID, nil
}

func (s *Service) processStatusUpdate(ctx context.Context, leadID uuid.UUID, call *envelopeCall, msg envelopeMessage) (string, error) {
	answered := call.AnsweredAt != nil || call.ConnectedAt != nil
	outcome := domain.ClassifyCallEnd(msg.Status, msg.EndedReason, answered)
	if outcome == domain.OutcomeUnknown {
		s.log.Debug("non-terminal status update", "callId", call.ID, "status", msg.Status)
		return ActionIgnored, nil
	}

	if err := s.driver.OnCallOutcome(ctx, leadID, call.ID, outcome); err != nil {
		return "", err
	}
	return ActionProcessed, nil
}

func (s *Service) processCallReport(ctx context.Context, leadID uuid.UUID, callID string, msg envelopeMessage) (string, error) {
	var report leadsrepo.CallReport
	var callbackAt *time.Time
	if msg.EndedReason != "" {
		report.EndReason = &msg.EndedReason
	}
	if analysis := msg.Analysis; analysis != nil {
		if analysis.Summary != "" {
			report.Summary = &analysis.Summary
		}
		if analysis.SuccessEvaluation != "" {
			report.SuccessEvaluation = &analysis.SuccessEvaluation
		}
		if len(analysis.StructuredData) > 0 {
			report.StructuredData = analysis.StructuredData
		}
		callbackAt = s.extractor.CallbackTime(analysis.Summary, time.Now())
	}

	if err := s.driver.OnCallReport(ctx, leadID, callID, report, callbackAt); err != nil {
		return "", err
	}
	return ActionProcessed, nil
}

func (s *Service) archive(ctx context.Context, callID, eventType string, payload []byte) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.ArchiveCallEvent(ctx, callID, eventType, payload); err != nil {
		s.log.Error("failed to archive call event", "error", err, "callId", callID, "type", eventType)
	}
}
