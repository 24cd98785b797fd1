package testutil

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"chandabaz/internal/models"
	"chandabaz/internal/query"
	"chandabaz/internal/repository"
)

// MemoryStore keeps every collection in process memory. It implements the
// store interfaces for service and handler tests.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[string]models.User
	posts    map[string]models.Post
	comments map[string]models.Comment
	audit    []models.AuditLog
	last     time.Time

	// FailPostCreate makes the next post insert fail with this error
	FailPostCreate error
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{}
	m.Reset()
	return m
}

// Reset drops every record
func (m *MemoryStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = map[string]models.User{}
	m.posts = map[string]models.Post{}
	m.comments = map[string]models.Comment{}
	m.audit = nil
	m.FailPostCreate = nil
}

// Stores exposes the memory store behind the store interfaces
func (m *MemoryStore) Stores() *repository.Stores {
	return &repository.Stores{
		Users:    memUsers{m},
		Posts:    memPosts{m},
		Comments: memComments{m},
		Audit:    memAudit{m},
		Ping:     func(context.Context) error { return nil },
		Close:    func(context.Context) error { return nil },
	}
}

// AuditEntries returns a copy of the audit log, oldest first
func (m *MemoryStore) AuditEntries() []models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.audit)
}

// tick returns the current time, strictly after the previous tick so that
// insertion order survives sorting. Callers hold mu.
func (m *MemoryStore) tick() time.Time {
	t := time.Now().UTC().Truncate(time.Microsecond)
	if !t.After(m.last) {
		t = m.last.Add(time.Microsecond)
	}
	m.last = t
	return t
}

func copyPost(p models.Post) models.Post {
	p.Media = slices.Clone(p.Media)
	if p.Media == nil {
		p.Media = []models.Media{}
	}
	p.Tags = slices.Clone(p.Tags)
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.RejectionReason != nil {
		r := *p.RejectionReason
		p.RejectionReason = &r
	}
	if p.ApprovedAt != nil {
		at := *p.ApprovedAt
		p.ApprovedAt = &at
	}
	if p.ApprovedBy != nil {
		by := *p.ApprovedBy
		p.ApprovedBy = &by
	}
	return p
}

// Users

type memUsers struct{ m *MemoryStore }

func (s memUsers) Create(_ context.Context, user *models.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, u := range s.m.users {
		if sameContact(u.Email, user.Email, true) || sameContact(u.Phone, user.Phone, false) {
			return repository.ErrUserExists
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = s.m.tick()
	user.UpdatedAt = user.CreatedAt
	s.m.users[user.ID] = *user
	return nil
}

func sameContact(a, b *string, fold bool) bool {
	if a == nil || b == nil {
		return false
	}
	if fold {
		return strings.EqualFold(*a, *b)
	}
	return *a == *b
}

func (s memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (s memUsers) GetByIDs(_ context.Context, ids []string) (map[string]*models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := make(map[string]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := s.m.users[id]; ok {
			out[id] = &u
		}
	}
	return out, nil
}

func (s memUsers) find(match func(models.User) bool) (*models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, u := range s.m.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return s.find(func(u models.User) bool { return sameContact(u.Email, &email, true) })
}

func (s memUsers) GetByPhone(_ context.Context, phone string) (*models.User, error) {
	return s.find(func(u models.User) bool { return sameContact(u.Phone, &phone, false) })
}

func (s memUsers) ExistsByContact(ctx context.Context, email, phone string) (bool, error) {
	_, err := s.find(func(u models.User) bool {
		return (email != "" && sameContact(u.Email, &email, true)) || (phone != "" && sameContact(u.Phone, &phone, false))
	})
	return err == nil, nil
}

func (s memUsers) update(id string, fn func(*models.User)) (*models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	fn(&u)
	u.UpdatedAt = s.m.tick()
	s.m.users[id] = u
	return &u, nil
}

func (s memUsers) UpdateName(_ context.Context, id, name string) (*models.User, error) {
	return s.update(id, func(u *models.User) { u.Name = name })
}

func (s memUsers) SetActive(_ context.Context, id string, active bool) (*models.User, error) {
	return s.update(id, func(u *models.User) { u.IsActive = active })
}

func (s memUsers) List(_ context.Context, limit, offset int) ([]models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	users := make([]models.User, 0, len(s.m.users))
	for _, u := range s.m.users {
		users = append(users, u)
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return window(users, limit, offset), nil
}

func (s memUsers) Count(context.Context) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return int64(len(s.m.users)), nil
}

func (s memUsers) CountByRole(_ context.Context, role models.Role) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var n int64
	for _, u := range s.m.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

// Posts

type memPosts struct{ m *MemoryStore }

func (s memPosts) Create(_ context.Context, post *models.Post) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.FailPostCreate; err != nil {
		s.m.FailPostCreate = nil
		return err
	}
	post.ID = uuid.NewString()
	post.CreatedAt = s.m.tick()
	post.UpdatedAt = post.CreatedAt
	if post.Media == nil {
		post.Media = []models.Media{}
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}
	s.m.posts[post.ID] = copyPost(*post)
	return nil
}

func (s memPosts) GetByID(_ context.Context, id string) (*models.Post, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.posts[id]
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	p = copyPost(p)
	return &p, nil
}

func (s memPosts) List(_ context.Context, filter query.Filter, scope query.Scope) ([]models.Post, int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	var matched []models.Post
	for _, p := range s.m.posts {
		if matchesPost(p, filter, scope) {
			matched = append(matched, copyPost(p))
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return window(matched, filter.Limit, filter.Offset()), int64(len(matched)), nil
}

func matchesPost(p models.Post, f query.Filter, scope query.Scope) bool {
	if scope.Status != nil && p.Status != *scope.Status {
		return false
	}
	if scope.AuthorID != "" && p.AuthorID != scope.AuthorID {
		return false
	}
	if f.Search != "" {
		tokens := map[string]bool{}
		for _, tok := range words(repository.SearchDocument(&p)) {
			tokens[tok] = true
		}
		for _, w := range words(f.Search) {
			if !tokens[w] {
				return false
			}
		}
	}
	if f.Location != "" && !strings.Contains(strings.ToLower(p.Location), strings.ToLower(f.Location)) {
		return false
	}
	if f.MediaType != nil && !slices.ContainsFunc(p.Media, func(m models.Media) bool { return m.Type == *f.MediaType }) {
		return false
	}
	if f.StartDate != nil && p.IncidentDate.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && p.IncidentDate.After(*f.EndDate) {
		return false
	}
	return true
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func (s memPosts) UpdateModeration(_ context.Context, post *models.Post, expected models.Status) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	stored, ok := s.m.posts[post.ID]
	if !ok {
		return repository.ErrPostNotFound
	}
	if stored.Status != expected {
		return repository.ErrStatusConflict
	}
	next := copyPost(*post)
	stored.Status = next.Status
	stored.RejectionReason = next.RejectionReason
	stored.ApprovedAt = next.ApprovedAt
	stored.ApprovedBy = next.ApprovedBy
	stored.Media = next.Media
	stored.UpdatedAt = s.m.tick()
	s.m.posts[post.ID] = stored
	return nil
}

func (s memPosts) IncrementViews(_ context.Context, id string) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.posts[id]
	if !ok {
		return 0, repository.ErrPostNotFound
	}
	p.ViewCount++
	s.m.posts[id] = p
	return p.ViewCount, nil
}

func (s memPosts) Delete(_ context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.posts[id]; !ok {
		return repository.ErrPostNotFound
	}
	delete(s.m.posts, id)
	for cid, c := range s.m.comments {
		if c.PostID == id {
			delete(s.m.comments, cid)
		}
	}
	return nil
}

func (s memPosts) CountByStatus(_ context.Context, authorID string) (models.StatusCounts, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var counts models.StatusCounts
	for _, p := range s.m.posts {
		if authorID == "" || p.AuthorID == authorID {
			counts.Add(p.Status, 1)
		}
	}
	return counts, nil
}

func (s memPosts) ReferencedMedia(_ context.Context, publicIDs []string) (map[string]bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := map[string]bool{}
	for _, p := range s.m.posts {
		for _, m := range p.Media {
			if slices.Contains(publicIDs, m.PublicID) {
				out[m.PublicID] = true
			}
		}
	}
	return out, nil
}

// Comments

type memComments struct{ m *MemoryStore }

func (s memComments) Create(_ context.Context, c *models.Comment) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.posts[c.PostID]; !ok {
		return repository.ErrPostNotFound
	}
	c.ID = uuid.NewString()
	c.CreatedAt = s.m.tick()
	s.m.comments[c.ID] = *c
	return nil
}

func (s memComments) GetByID(_ context.Context, id string) (*models.Comment, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.comments[id]
	if !ok {
		return nil, repository.ErrCommentNotFound
	}
	return &c, nil
}

func (s memComments) ListByPost(_ context.Context, postID string, page query.Page) ([]models.Comment, int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var matched []models.Comment
	for _, c := range s.m.comments {
		if c.PostID == postID {
			matched = append(matched, c)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
	return window(matched, page.Limit, page.Offset()), int64(len(matched)), nil
}

func (s memComments) Delete(_ context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.comments[id]; !ok {
		return repository.ErrCommentNotFound
	}
	delete(s.m.comments, id)
	return nil
}

// Audit

type memAudit struct{ m *MemoryStore }

func (s memAudit) Create(_ context.Context, log *models.AuditLog) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	log.ID = uuid.NewString()
	log.CreatedAt = s.m.tick()
	s.m.audit = append(s.m.audit, *log)
	return nil
}

func (s memAudit) matching(f repository.AuditFilters) []models.AuditLog {
	var out []models.AuditLog
	for i := len(s.m.audit) - 1; i >= 0; i-- {
		l := s.m.audit[i]
		if f.UserID != "" && (l.UserID == nil || *l.UserID != f.UserID) {
			continue
		}
		if f.Action != "" && l.Action != f.Action {
			continue
		}
		if f.Resource != "" && l.Resource != f.Resource {
			continue
		}
		out = append(out, l)
	}
	return out
}

func (s memAudit) List(_ context.Context, f repository.AuditFilters, page query.Page) ([]models.AuditLog, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return window(s.matching(f), page.Limit, page.Offset()), nil
}

func (s memAudit) Count(_ context.Context, f repository.AuditFilters) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return int64(len(s.matching(f))), nil
}

func window[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
