package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"civicsync-issues/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory is a process-local Store. A single mutex serialises writes, which
// gives the conditional updates the same at-most-one-winner guarantee the
// Mongo single-document updates have.
type Memory struct {
	mu       sync.RWMutex
	issues   map[primitive.ObjectID]*models.Issue
	comments map[primitive.ObjectID]*models.Comment
	order    []primitive.ObjectID // comment insertion order
	users    map[primitive.ObjectID]*models.User
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		issues:   make(map[primitive.ObjectID]*models.Issue),
		comments: make(map[primitive.ObjectID]*models.Comment),
		users:    make(map[primitive.ObjectID]*models.User),
	}
}

func (m *Memory) CreateIssue(_ context.Context, issue *models.Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	if _, exists := m.issues[issue.ID]; exists {
		return fmt.Errorf("issue %s: %w", issue.ID.Hex(), ErrDuplicate)
	}
	m.issues[issue.ID] = issue.Clone()
	return nil
}

func (m *Memory) GetIssue(_ context.Context, id primitive.ObjectID) (*models.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	issue, ok := m.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue %s: %w", id.Hex(), ErrNotFound)
	}
	return issue.Clone(), nil
}

func (m *Memory) ListIssues(_ context.Context, filter IssueFilter) ([]models.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	issues := make([]models.Issue, 0)
	for _, issue := range m.issues {
		if !filter.CityID.IsZero() && issue.CityID != filter.CityID {
			continue
		}
		if filter.ReporterID != nil && issue.ReporterID != *filter.ReporterID {
			continue
		}
		if filter.CreatedAfter != nil && issue.CreatedAt.Before(*filter.CreatedAfter) {
			continue
		}
		if filter.CreatedBefore != nil && issue.CreatedAt.After(*filter.CreatedBefore) {
			continue
		}
		issues = append(issues, *issue.Clone())
	}

	key := func(i *models.Issue) time.Time {
		if filter.SortBy == SortByCreatedAt {
			return i.CreatedAt
		}
		return i.UpdatedAt
	}
	sort.SliceStable(issues, func(a, b int) bool {
		ka, kb := key(&issues[a]), key(&issues[b])
		if ka.Equal(kb) {
			return issues[a].ID.Hex() > issues[b].ID.Hex()
		}
		return ka.After(kb)
	})
	return issues, nil
}

func (m *Memory) UpdateAssignment(_ context.Context, id primitive.ObjectID, update AssignmentUpdate) (*models.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	issue, ok := m.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue %s: %w", id.Hex(), ErrNotFound)
	}
	if issue.Status == models.StatusSolved || !models.SameUser(issue.Holder(update.Slot), update.Expected) {
		return nil, fmt.Errorf("issue %s %s: %w", id.Hex(), update.Slot, ErrConflict)
	}

	next := issue.Clone()
	if update.Next != nil {
		user := *update.Next
		next.SetHolder(update.Slot, &user)
	} else {
		next.SetHolder(update.Slot, nil)
	}
	next.Status = update.Status
	next.UpdatedAt = update.UpdatedAt
	m.issues[id] = next
	return next.Clone(), nil
}

func (m *Memory) MarkSolved(_ context.Context, id primitive.ObjectID, at time.Time) (*models.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	issue, ok := m.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue %s: %w", id.Hex(), ErrNotFound)
	}
	if issue.Status == models.StatusSolved {
		return nil, fmt.Errorf("issue %s already solved: %w", id.Hex(), ErrConflict)
	}
	issue.Status = models.StatusSolved
	issue.UpdatedAt = at
	return issue.Clone(), nil
}

func (m *Memory) CreateComment(_ context.Context, comment *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if comment.ID.IsZero() {
		comment.ID = primitive.NewObjectID()
	}
	m.comments[comment.ID] = comment.Clone()
	m.order = append(m.order, comment.ID)
	return nil
}

func (m *Memory) GetComment(_ context.Context, id primitive.ObjectID) (*models.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	comment, ok := m.comments[id]
	if !ok {
		return nil, fmt.Errorf("comment %s: %w", id.Hex(), ErrNotFound)
	}
	return comment.Clone(), nil
}

func (m *Memory) DeleteComment(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.comments[id]; !ok {
		return fmt.Errorf("comment %s: %w", id.Hex(), ErrNotFound)
	}
	delete(m.comments, id)
	for i, cid := range m.order {
		if cid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) ListComments(_ context.Context, issueID primitive.ObjectID) ([]models.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	comments := make([]models.Comment, 0)
	for _, id := range m.order {
		if c := m.comments[id]; c.IssueID == issueID {
			comments = append(comments, *c.Clone())
		}
	}
	return comments, nil
}

func (m *Memory) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return fmt.Errorf("user %s: %w", user.Email, ErrDuplicate)
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	u := *user
	m.users[u.ID] = &u
	return nil
}

func (m *Memory) GetUser(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id.Hex(), ErrNotFound)
	}
	u := *user
	return &u, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.users {
		if strings.EqualFold(user.Email, email) {
			u := *user
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
}

func (m *Memory) UserExists(_ context.Context, id primitive.ObjectID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.users[id]
	return ok, nil
}
