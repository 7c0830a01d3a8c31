// Package memory is an in-process gradebook.Store.
//
// Transactions are serialized: Begin takes a writer lock and works on a
// copy of the data, Commit swaps the copy in and Rollback discards it. Reads
// outside a transaction see only committed data.
package memory

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/gradebook/internal/gradebook"
)

var errTxDone = errors.New("transaction already closed")

var (
	_ gradebook.Store = (*Store)(nil)
	_ gradebook.Tx    = (*Tx)(nil)
)

// data is one consistent snapshot of the store.
type data struct {
	tenants     map[string]gradebook.Tenant
	students    map[uuid.UUID]gradebook.Student
	assignments map[uuid.UUID]gradebook.Assignment
	grades      map[uuid.UUID]gradebook.Grade
	tags        map[uuid.UUID]gradebook.Tag
	uploads     []gradebook.UploadRecord

	// Natural-key indexes.
	studentByEmail  map[string]uuid.UUID // tenant \x00 email
	assignmentByKey map[string]uuid.UUID // tenant \x00 name \x00 date
	gradeByPair     map[[2]uuid.UUID]uuid.UUID
}

func newData() *data {
	return &data{
		tenants:         make(map[string]gradebook.Tenant),
		students:        make(map[uuid.UUID]gradebook.Student),
		assignments:     make(map[uuid.UUID]gradebook.Assignment),
		grades:          make(map[uuid.UUID]gradebook.Grade),
		tags:            make(map[uuid.UUID]gradebook.Tag),
		studentByEmail:  make(map[string]uuid.UUID),
		assignmentByKey: make(map[string]uuid.UUID),
		gradeByPair:     make(map[[2]uuid.UUID]uuid.UUID),
	}
}

func (d *data) clone() *data {
	c := &data{
		tenants:         maps.Clone(d.tenants),
		students:        maps.Clone(d.students),
		assignments:     make(map[uuid.UUID]gradebook.Assignment, len(d.assignments)),
		grades:          maps.Clone(d.grades),
		tags:            maps.Clone(d.tags),
		uploads:         slices.Clone(d.uploads),
		studentByEmail:  maps.Clone(d.studentByEmail),
		assignmentByKey: maps.Clone(d.assignmentByKey),
		gradeByPair:     maps.Clone(d.gradeByPair),
	}
	for id, a := range d.assignments {
		a.TagIDs = slices.Clone(a.TagIDs)
		c.assignments[id] = a
	}
	return c
}

func studentKey(tenantID, email string) string {
	return tenantID + "\x00" + email
}

func assignmentKey(tenantID, name string, date pgtype.Date) string {
	return tenantID + "\x00" + name + "\x00" + gradebook.FormatDate(date)
}

// Store is a thread-safe in-memory gradebook.Store.
type Store struct {
	txMu      sync.Mutex   // held for the lifetime of a transaction
	mu        sync.RWMutex // guards committed
	committed *data
}

// New creates an empty Store.
func New() *Store {
	return &Store{committed: newData()}
}

// Begin starts a transaction. It blocks while another transaction is open.
func (s *Store) Begin(ctx context.Context) (gradebook.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.txMu.Lock()

	s.mu.RLock()
	work := s.committed.clone()
	s.mu.RUnlock()

	return &Tx{store: s, d: work}, nil
}

// EnsureTenant creates the tenant if it does not exist yet. It waits for an
// open transaction so that transaction's Commit cannot drop the tenant.
func (s *Store) EnsureTenant(ctx context.Context, t gradebook.Tenant) error {
	return s.update(ctx, func(d *data) error {
		if _, ok := d.tenants[t.ID]; !ok {
			d.tenants[t.ID] = t
		}
		return nil
	})
}

// GetTenant returns a tenant by ID.
func (s *Store) GetTenant(ctx context.Context, id string) (*gradebook.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.committed.tenants[id]
	if !ok {
		return nil, gradebook.ErrNotFound
	}
	return &t, nil
}

// Tx is a memory store transaction.
type Tx struct {
	store *Store
	d     *data
	done  bool
}

// Commit publishes the transaction's changes.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return errTxDone
	}
	tx.store.mu.Lock()
	tx.store.committed = tx.d
	tx.store.mu.Unlock()

	tx.done = true
	tx.store.txMu.Unlock()
	return nil
}

// Rollback discards the transaction's changes. It is a no-op after Commit.
func (tx *Tx) Rollback(ctx context.Context) error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.d = nil
	tx.store.txMu.Unlock()
	return nil
}

func (tx *Tx) check() error {
	if tx.done {
		return errTxDone
	}
	return nil
}

func (tx *Tx) FindStudent(ctx context.Context, tenantID, email string) (*gradebook.Student, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}
	id, ok := tx.d.studentByEmail[studentKey(tenantID, email)]
	if !ok {
		return nil, gradebook.ErrNotFound
	}
	s := tx.d.students[id]
	return &s, nil
}

func (tx *Tx) SaveStudent(ctx context.Context, s *gradebook.Student) error {
	if err := tx.check(); err != nil {
		return err
	}
	key := studentKey(s.TenantID, s.Email)
	if existing, ok := tx.d.studentByEmail[key]; ok && existing != s.ID {
		return gradebook.ErrConflict
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	} else if old, ok := tx.d.students[s.ID]; ok {
		delete(tx.d.studentByEmail, studentKey(old.TenantID, old.Email))
	} else {
		return gradebook.ErrNotFound
	}
	tx.d.students[s.ID] = *s
	tx.d.studentByEmail[key] = s.ID
	return nil
}

func (tx *Tx) FindAssignment(ctx context.Context, tenantID, name string, date pgtype.Date) (*gradebook.Assignment, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}
	id, ok := tx.d.assignmentByKey[assignmentKey(tenantID, name, date)]
	if !ok {
		return nil, gradebook.ErrNotFound
	}
	a := tx.d.assignments[id]
	a.TagIDs = slices.Clone(a.TagIDs)
	return &a, nil
}

func (tx *Tx) SaveAssignment(ctx context.Context, a *gradebook.Assignment) error {
	if err := tx.check(); err != nil {
		return err
	}
	if a.MaxPoints <= 0 {
		return errors.New("max points must be positive")
	}
	key := assignmentKey(a.TenantID, a.Name, a.Date)
	if existing, ok := tx.d.assignmentByKey[key]; ok && existing != a.ID {
		return gradebook.ErrConflict
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	} else if old, ok := tx.d.assignments[a.ID]; ok {
		delete(tx.d.assignmentByKey, assignmentKey(old.TenantID, old.Name, old.Date))
	} else {
		return gradebook.ErrNotFound
	}
	stored := *a
	stored.TagIDs = slices.Clone(a.TagIDs)
	tx.d.assignments[a.ID] = stored
	tx.d.assignmentByKey[key] = a.ID
	return nil
}

func (tx *Tx) FindGrade(ctx context.Context, studentID, assignmentID uuid.UUID) (*gradebook.Grade, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}
	id, ok := tx.d.gradeByPair[[2]uuid.UUID{studentID, assignmentID}]
	if !ok {
		return nil, gradebook.ErrNotFound
	}
	g := tx.d.grades[id]
	return &g, nil
}

func (tx *Tx) SaveGrade(ctx context.Context, g *gradebook.Grade) error {
	if err := tx.check(); err != nil {
		return err
	}
	if g.Score < 0 {
		return errors.New("score must not be negative")
	}
	if _, ok := tx.d.students[g.StudentID]; !ok {
		return errors.New("grade references unknown student")
	}
	if _, ok := tx.d.assignments[g.AssignmentID]; !ok {
		return errors.New("grade references unknown assignment")
	}
	pair := [2]uuid.UUID{g.StudentID, g.AssignmentID}
	if existing, ok := tx.d.gradeByPair[pair]; ok && existing != g.ID {
		return gradebook.ErrConflict
	}
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	} else if _, ok := tx.d.grades[g.ID]; !ok {
		return gradebook.ErrNotFound
	}
	tx.d.grades[g.ID] = *g
	tx.d.gradeByPair[pair] = g.ID
	return nil
}

func (tx *Tx) FindTags(ctx context.Context, tenantID string, ids []uuid.UUID) ([]gradebook.Tag, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}
	var out []gradebook.Tag
	for _, id := range ids {
		if t, ok := tx.d.tags[id]; ok && t.TenantID == tenantID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (tx *Tx) FindTagByName(ctx context.Context, tenantID, name string) (*gradebook.Tag, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}
	if t, ok := tx.d.tagByName(tenantID, name); ok {
		return &t, nil
	}
	return nil, gradebook.ErrNotFound
}

func (tx *Tx) SaveTag(ctx context.Context, t *gradebook.Tag) error {
	if err := tx.check(); err != nil {
		return err
	}
	return tx.d.saveTag(t)
}

func (tx *Tx) SaveUpload(ctx context.Context, u *gradebook.UploadRecord) error {
	if err := tx.check(); err != nil {
		return err
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	tx.d.uploads = append(tx.d.uploads, *u)
	return nil
}

func (d *data) tagByName(tenantID, name string) (gradebook.Tag, bool) {
	for _, t := range d.tags {
		if t.TenantID == tenantID && strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return gradebook.Tag{}, false
}

func (d *data) saveTag(t *gradebook.Tag) error {
	if other, ok := d.tagByName(t.TenantID, t.Name); ok && other.ID != t.ID {
		return gradebook.ErrConflict
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	} else if old, ok := d.tags[t.ID]; !ok || old.TenantID != t.TenantID {
		return gradebook.ErrNotFound
	}
	d.tags[t.ID] = *t
	return nil
}
