package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/ahmetcoskunkizilkaya/fellowship/internal/access"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/content"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/dto"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/identity"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/store"
)

const (
	ModerationLogPath = "moderation_log"
	ReportsPath       = "reports"

	reportQueueLimit = 500
)

var (
	ErrReportNotFound = errors.New("report not found")
	ErrInvalidReport  = errors.New("invalid report")
)

// Report is a member's flag on an item, reviewed by moderators.
type Report struct {
	ID         string `json:"id"`
	ReporterID string `json:"reporter_id"`
	Collection string `json:"collection"`
	ContentID  string `json:"content_id"`
	Reason     string `json:"reason"`
	Status     string `json:"status"`
	AdminNote  string `json:"admin_note,omitempty"`
	ReviewedBy string `json:"reviewed_by,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}

// TransitionResult is the target user after a moderation action. Changed
// is false when the action was already in effect.
type TransitionResult struct {
	User    identity.User
	Changed bool
}

type ModerationService struct {
	store store.Adapter
}

func NewModerationService(a store.Adapter) *ModerationService {
	return &ModerationService{store: a}
}

// Transition applies action to the target user. Only admins may call it.
// Every effective transition is recorded in the moderation log.
func (s *ModerationService) Transition(ctx context.Context, actor *identity.User, targetUID string, action identity.Action) (TransitionResult, error) {
	if err := access.CanModerate(actor).Err(access.OpModerate); err != nil {
		return TransitionResult{}, err
	}

	rec, ok, err := s.store.Read(ctx, UsersPath, targetUID)
	if err != nil {
		return TransitionResult{}, err
	}
	if !ok {
		return TransitionResult{}, ErrUserNotFound
	}
	target, err := identity.Decode(rec.Key, rec.Fields)
	if err != nil {
		return TransitionResult{}, err
	}

	roles, err := identity.Apply(target.Roles, action)
	if err != nil {
		return TransitionResult{}, err
	}
	if roles == target.Roles {
		return TransitionResult{User: target}, nil
	}

	fields := maps.Clone(rec.Fields)
	fields["roles"] = roles.RoleMap()
	if err := s.store.Overwrite(ctx, UsersPath, targetUID, fields); err != nil {
		slog.Error("moderation transition failed", "action", string(action), "actor_id", actor.UID, "item_id", targetUID, "error", err)
		return TransitionResult{}, err
	}
	from := target.State()
	target.Roles = roles

	entry := map[string]any{
		"actorId":   actor.UID,
		"targetId":  targetUID,
		"action":    string(action),
		"from":      from.String(),
		"to":        target.State().String(),
		"createdAt": store.ServerTimestamp,
	}
	if _, err := s.store.Append(ctx, ModerationLogPath, entry); err != nil {
		slog.Error("moderation log append failed", "action", string(action), "actor_id", actor.UID, "item_id", targetUID, "error", err)
	}

	slog.Info("moderation transition", "action", string(action), "actor_id", actor.UID, "item_id", targetUID, "from", from.String(), "to", target.State().String())
	return TransitionResult{User: target, Changed: true}, nil
}

// CreateReport flags an item the reporter is able to read.
func (s *ModerationService) CreateReport(ctx context.Context, actor *identity.User, req *dto.CreateReportRequest) (string, error) {
	c, err := content.Resolve(req.Collection, req.Parent)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}
	if err := access.CanPerform(actor, access.OpRead, c, nil).Err(access.OpRead); err != nil {
		return "", err
	}
	if strings.TrimSpace(req.ContentID) == "" {
		return "", fmt.Errorf("%w: content_id is required", ErrInvalidReport)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return "", fmt.Errorf("%w: reason is required", ErrInvalidReport)
	}

	fields := map[string]any{
		"reporterId": actor.UID,
		"collection": c.Path,
		"contentId":  req.ContentID,
		"reason":     strings.TrimSpace(req.Reason),
		"status":     "pending",
		"createdAt":  store.ServerTimestamp,
	}
	id, err := s.store.Append(ctx, ReportsPath, fields)
	if err != nil {
		return "", fmt.Errorf("failed to create report: %w", err)
	}
	slog.Info("report created", "collection", c.Path, "item_id", req.ContentID, "actor_id", actor.UID)
	return id, nil
}

// ListReports returns the newest reports first, optionally by status.
func (s *ModerationService) ListReports(ctx context.Context, actor *identity.User, status string, limit int) ([]Report, error) {
	if err := access.CanReview(actor).Err(access.OpReview); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > reportQueueLimit {
		limit = reportQueueLimit
	}
	records, err := store.Once(ctx, s.store, ReportsPath, store.IndexedField, reportQueueLimit)
	if err != nil {
		return nil, err
	}

	reports := make([]Report, 0, len(records))
	for _, r := range slices.Backward(records) {
		rep := decodeReport(r)
		if status != "" && rep.Status != status {
			continue
		}
		reports = append(reports, rep)
		if len(reports) == limit {
			break
		}
	}
	return reports, nil
}

func (s *ModerationService) ActionReport(ctx context.Context, actor *identity.User, reportID string, req *dto.ActionReportRequest) error {
	if err := access.CanReview(actor).Err(access.OpReview); err != nil {
		return err
	}
	validStatuses := map[string]bool{"reviewed": true, "actioned": true, "dismissed": true}
	if !validStatuses[req.Status] {
		return fmt.Errorf("%w: status must be reviewed, actioned, or dismissed", ErrInvalidReport)
	}

	rec, ok, err := s.store.Read(ctx, ReportsPath, reportID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrReportNotFound
	}

	fields := maps.Clone(rec.Fields)
	fields["status"] = req.Status
	fields["adminNote"] = req.AdminNote
	fields["reviewedBy"] = actor.UID
	fields["reviewedAt"] = store.ServerTimestamp
	return s.store.Overwrite(ctx, ReportsPath, reportID, fields)
}

func decodeReport(r store.Record) Report {
	rep := Report{ID: r.Key}
	rep.ReporterID, _ = r.Fields["reporterId"].(string)
	rep.Collection, _ = r.Fields["collection"].(string)
	rep.ContentID, _ = r.Fields["contentId"].(string)
	rep.Reason, _ = r.Fields["reason"].(string)
	rep.Status, _ = r.Fields["status"].(string)
	rep.AdminNote, _ = r.Fields["adminNote"].(string)
	rep.ReviewedBy, _ = r.Fields["reviewedBy"].(string)
	rep.CreatedAt, _ = content.Millis(r.Fields["createdAt"])
	return rep
}
