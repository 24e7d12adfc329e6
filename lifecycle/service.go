// Package lifecycle owns the issue state machine: creation, the toggle-style
// fiscal/manager assignment workflow, resolution, and the comment thread
// attached to an issue. Storage is injected through the store interfaces.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"civicsync-issues/models"
	"civicsync-issues/store"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

//go:generate mockgen -source=service.go -destination=mocks/service_mock.go -package=mocks

// UserDirectory is the subset of user storage the lifecycle needs.
type UserDirectory interface {
	UserExists(ctx context.Context, id primitive.ObjectID) (bool, error)
	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

type Service struct {
	issues   store.IssueStore
	comments store.CommentStore
	users    UserDirectory
	validate *validator.Validate
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Service)

// WithClock overrides the time source used for createdAt/updatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(issues store.IssueStore, comments store.CommentStore, users UserDirectory, opts ...Option) *Service {
	s := &Service{
		issues:   issues,
		comments: comments,
		users:    users,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      func() time.Time { return time.Now().UTC() },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateIssueInput carries the immutable fields of a new issue.
type CreateIssueInput struct {
	CityID      primitive.ObjectID
	Latitude    *float64 `validate:"required,gte=-90,lte=90"`
	Longitude   *float64 `validate:"required,gte=-180,lte=180"`
	Category    string   `validate:"required,max=100"`
	Description string   `validate:"required,max=2000"`
	Date        time.Time
	ReporterID  primitive.ObjectID
}

// CreateIssue stores a new issue in the initial status with no assignees.
func (s *Service) CreateIssue(ctx context.Context, in CreateIssueInput) (*models.Issue, error) {
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	if err := s.validateStruct(in); err != nil {
		return nil, err
	}
	switch {
	case in.CityID.IsZero():
		return nil, fmt.Errorf("%w: cityId is required", ErrValidation)
	case in.ReporterID.IsZero():
		return nil, fmt.Errorf("%w: reporterId is required", ErrValidation)
	case in.Date.IsZero():
		return nil, fmt.Errorf("%w: date is required", ErrValidation)
	}

	now := s.now()
	issue := &models.Issue{
		ID:          primitive.NewObjectID(),
		CityID:      in.CityID,
		Latitude:    *in.Latitude,
		Longitude:   *in.Longitude,
		Category:    in.Category,
		Description: in.Description,
		Date:        in.Date.UTC(),
		ReporterID:  in.ReporterID,
		Status:      InitialStatus,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.issues.CreateIssue(ctx, issue); err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}

	s.logger.Info("issue created",
		"issue", issue.ID.Hex(),
		"city", issue.CityID.Hex(),
		"reporter", issue.ReporterID.Hex())
	return issue, nil
}

func (s *Service) GetIssue(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	issue, err := s.issues.GetIssue(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, ErrNotFound)
	}
	return issue, nil
}

// IssueDetail is an issue with the public profiles of the users it references.
type IssueDetail struct {
	models.Issue
	Reporter *models.UserSummary `json:"reporter"`
	Fiscal   *models.UserSummary `json:"fiscal"`
	Manager  *models.UserSummary `json:"manager"`
}

// GetIssueDetail loads an issue and resolves its reporter, fiscal and manager.
// References to users that no longer exist are left nil.
func (s *Service) GetIssueDetail(ctx context.Context, id primitive.ObjectID) (*IssueDetail, error) {
	issue, err := s.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &IssueDetail{Issue: *issue}
	g, gctx := errgroup.WithContext(ctx)
	resolve := func(ref *primitive.ObjectID, dst **models.UserSummary) {
		if ref == nil {
			return
		}
		userID := *ref
		g.Go(func() error {
			summary, err := s.userSummary(gctx, userID)
			if err != nil {
				return err
			}
			*dst = summary
			return nil
		})
	}
	resolve(&issue.ReporterID, &detail.Reporter)
	resolve(issue.FiscalID, &detail.Fiscal)
	resolve(issue.ManagerID, &detail.Manager)

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resolve users of issue %s: %w", id.Hex(), err)
	}
	return detail, nil
}

// DateRange bounds issue creation time. Either end may be open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

func (r *DateRange) active() bool {
	return r != nil && (r.From != nil || r.To != nil)
}

// ListedIssue is an issue as it appears in a listing, with its reporter's profile.
type ListedIssue struct {
	models.Issue
	Reporter *models.UserSummary `json:"reporter"`
}

// ListIssuesForCity lists the issues of a city. Without a date range the
// newest-updated come first; with one, the newest-created come first. Both
// bounds are inclusive.
func (s *Service) ListIssuesForCity(ctx context.Context, cityID primitive.ObjectID, rng *DateRange) ([]ListedIssue, error) {
	if cityID.IsZero() {
		return nil, fmt.Errorf("%w: cityId is required", ErrValidation)
	}

	filter := store.IssueFilter{CityID: cityID, SortBy: store.SortByUpdatedAt}
	if rng.active() {
		if rng.From != nil && rng.To != nil && rng.From.After(*rng.To) {
			return nil, fmt.Errorf("%w: date range starts after it ends", ErrValidation)
		}
		filter.CreatedAfter = rng.From
		filter.CreatedBefore = rng.To
		filter.SortBy = store.SortByCreatedAt
	}

	issues, err := s.issues.ListIssues(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list issues for city %s: %w", cityID.Hex(), err)
	}
	return s.withReporters(ctx, issues)
}

// ListIssuesForReporter lists a reporter's issues in a city, newest-updated first.
func (s *Service) ListIssuesForReporter(ctx context.Context, cityID, reporterID primitive.ObjectID) ([]ListedIssue, error) {
	if cityID.IsZero() || reporterID.IsZero() {
		return nil, fmt.Errorf("%w: cityId and reporterId are required", ErrValidation)
	}

	issues, err := s.issues.ListIssues(ctx, store.IssueFilter{
		CityID:     cityID,
		ReporterID: &reporterID,
		SortBy:     store.SortByUpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("list issues for reporter %s: %w", reporterID.Hex(), err)
	}
	return s.withReporters(ctx, issues)
}

func (s *Service) withReporters(ctx context.Context, issues []models.Issue) ([]ListedIssue, error) {
	reporterIDs := make([]primitive.ObjectID, 0, len(issues))
	for i := range issues {
		reporterIDs = append(reporterIDs, issues[i].ReporterID)
	}
	reporters, err := s.userSummaries(ctx, reporterIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve issue reporters: %w", err)
	}

	listed := make([]ListedIssue, 0, len(issues))
	for _, issue := range issues {
		listed = append(listed, ListedIssue{Issue: issue, Reporter: reporters[issue.ReporterID]})
	}
	return listed, nil
}

// UpdateAssignmentField is the single assign/unassign entry point. Calling it
// as the current holder of field releases the field instead of reassigning it,
// so two identical calls return the issue to where it started. A nil target
// requests a release outright.
func (s *Service) UpdateAssignmentField(ctx context.Context, issueID primitive.ObjectID, field string, caller models.Caller, target *primitive.ObjectID) (*models.Issue, error) {
	if target != nil {
		exists, err := s.users.UserExists(ctx, *target)
		if err != nil {
			return nil, fmt.Errorf("look up user %s: %w", target.Hex(), err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, target.Hex())
		}
	}

	issue, err := s.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	slot, err := models.ParseAssignmentSlot(field)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidField, err)
	}

	decision, err := AuthorizeAssignment(caller, issue, slot, target)
	if err != nil {
		s.logger.Debug("issue assignment rejected",
			"issue", issueID.Hex(),
			"slot", slot.String(),
			"caller", caller.UserID.Hex(),
			"error", err)
		return nil, err
	}

	status, err := NextStatus(slot, decision.Direction)
	if err != nil {
		return nil, err
	}

	updated, err := s.issues.UpdateAssignment(ctx, issueID, store.AssignmentUpdate{
		Slot:      slot,
		Expected:  issue.Holder(slot),
		Next:      decision.Next,
		Status:    status,
		UpdatedAt: s.now(),
	})
	if err != nil {
		// a solve that landed after the guard ran wins the race
		if errors.Is(err, store.ErrConflict) {
			if current, getErr := s.issues.GetIssue(ctx, issueID); getErr == nil && current.Status == models.StatusSolved {
				return nil, fmt.Errorf("%w: %w", ErrAlreadySolved, err)
			}
		}
		return nil, mapStoreError(err, ErrNotAuthorized)
	}

	s.logger.Info("issue assignment applied",
		"issue", issueID.Hex(),
		"slot", slot.String(),
		"direction", decision.Direction.String(),
		"from", string(issue.Status),
		"to", string(updated.Status),
		"caller", caller.UserID.Hex())
	return updated, nil
}

// MarkSolved moves an issue to Solved on behalf of its reporter. Solving an
// already solved issue fails.
func (s *Service) MarkSolved(ctx context.Context, issueID primitive.ObjectID, caller models.Caller) (*models.Issue, error) {
	issue, err := s.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if err := AuthorizeSolve(caller, issue); err != nil {
		return nil, err
	}

	updated, err := s.issues.MarkSolved(ctx, issueID, s.now())
	if err != nil {
		return nil, mapStoreError(err, ErrAlreadySolved)
	}

	s.logger.Info("issue solved",
		"issue", issueID.Hex(),
		"from", string(issue.Status),
		"caller", caller.UserID.Hex())
	return updated, nil
}

func (s *Service) userSummary(ctx context.Context, id primitive.ObjectID) (*models.UserSummary, error) {
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user.Summary(), nil
}

func (s *Service) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: invalid %s", ErrValidation, strings.Join(fields, ", "))
}

// mapStoreError translates store sentinels into lifecycle ones, keeping both
// in the chain. A lost compare-and-set becomes onConflict.
func mapStoreError(err error, onConflict error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%w: %w", onConflict, err)
	}
	return err
}
