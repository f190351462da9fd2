package service

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Treasure123-school/school-web-treasure-sub002/internal/dto"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/model"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/repository"
)

// ── Mock ExamRepository ──

type mockExamRepo struct {
	exams map[string]*model.Exam
}

func newMockExamRepo() *mockExamRepo {
	return &mockExamRepo{exams: make(map[string]*model.Exam)}
}

func (m *mockExamRepo) GetByID(_ context.Context, id string) (*model.Exam, error) {
	if e, ok := m.exams[id]; ok {
		return e, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockExamRepo) ListByClassTerm(_ context.Context, classID, termID string) ([]model.Exam, error) {
	var result []model.Exam
	for _, e := range m.exams {
		if e.ClassID == classID && e.TermID == termID {
			result = append(result, *e)
		}
	}
	return result, nil
}

func (m *mockExamRepo) SetPublished(_ context.Context, id string, published bool) error {
	if e, ok := m.exams[id]; ok {
		e.IsPublished = published
		return nil
	}
	return gorm.ErrRecordNotFound
}

// ── Mock StudentRepository ──

type mockStudentRepo struct {
	students    map[string]*model.User
	personal    map[string][]string // "studentID:termID" → 选科
	classRoster map[string][]string // classID → 科目
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{
		students:    make(map[string]*model.User),
		personal:    make(map[string][]string),
		classRoster: make(map[string][]string),
	}
}

func (m *mockStudentRepo) GetStudent(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.students[id]; ok && u.Role == "student" {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStudentRepo) ListByClass(_ context.Context, classID string) ([]model.User, error) {
	var result []model.User
	for _, u := range m.students {
		if u.ClassID != nil && *u.ClassID == classID && u.Role == "student" {
			result = append(result, *u)
		}
	}
	return result, nil
}

func (m *mockStudentRepo) ResolveSubjects(_ context.Context, studentID, classID, termID string) ([]string, error) {
	if subjects, ok := m.personal[studentID+":"+termID]; ok && len(subjects) > 0 {
		return subjects, nil
	}
	return m.classRoster[classID], nil
}

// ── 共享内存存储（成绩单聚合） ──

type memStore struct {
	cards map[string]*model.ReportCard
	items map[string]*model.ReportCardItem
	seq   int
}

func newMemStore() *memStore {
	return &memStore{
		cards: make(map[string]*model.ReportCard),
		items: make(map[string]*model.ReportCardItem),
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memStore) itemsOf(cardID string) []model.ReportCardItem {
	var result []model.ReportCardItem
	for i := 1; i <= s.seq; i++ {
		id := fmt.Sprintf("item-%d", i)
		if item, ok := s.items[id]; ok && item.ReportCardID == cardID {
			result = append(result, *item)
		}
	}
	return result
}

func (s *memStore) snapshot() (map[string]model.ReportCard, map[string]model.ReportCardItem, int) {
	cards := make(map[string]model.ReportCard, len(s.cards))
	for k, v := range s.cards {
		cards[k] = *v
	}
	items := make(map[string]model.ReportCardItem, len(s.items))
	for k, v := range s.items {
		items[k] = *v
	}
	return cards, items, s.seq
}

func (s *memStore) restore(cards map[string]model.ReportCard, items map[string]model.ReportCardItem, seq int) {
	s.cards = make(map[string]*model.ReportCard, len(cards))
	for k := range cards {
		v := cards[k]
		s.cards[k] = &v
	}
	s.items = make(map[string]*model.ReportCardItem, len(items))
	for k := range items {
		v := items[k]
		s.items[k] = &v
	}
	s.seq = seq
}

// ── Mock ReportCardRepository ──

type mockReportCardRepo struct {
	store *memStore
}

func (m *mockReportCardRepo) GetByID(_ context.Context, id string) (*model.ReportCard, error) {
	if c, ok := m.store.cards[id]; ok {
		card := *c
		card.Items = m.store.itemsOf(id)
		return &card, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockReportCardRepo) GetByStudentTerm(_ context.Context, studentID, termID string) (*model.ReportCard, error) {
	for id, c := range m.store.cards {
		if c.StudentID == studentID && c.TermID == termID {
			card := *c
			card.Items = m.store.itemsOf(id)
			return &card, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockReportCardRepo) ListByClassTerm(_ context.Context, classID, termID string) ([]model.ReportCard, error) {
	var result []model.ReportCard
	for i := 1; i <= m.store.seq; i++ {
		id := fmt.Sprintf("rc-%d", i)
		c, ok := m.store.cards[id]
		if !ok || c.ClassID != classID || c.TermID != termID {
			continue
		}
		card := *c
		card.Items = m.store.itemsOf(id)
		result = append(result, card)
	}
	return result, nil
}

func (m *mockReportCardRepo) UpdatePosition(_ context.Context, reportCardID string, position, totalStudents int) error {
	c, ok := m.store.cards[reportCardID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.Position = &position
	c.TotalStudentsInClass = &totalStudents
	return nil
}

// ── Mock SyncAuditRepository ──

type mockSyncAuditRepo struct {
	logs       map[string]*model.SyncAuditLog
	seq        int
	failCreate bool
	failUpdate bool
}

func newMockSyncAuditRepo() *mockSyncAuditRepo {
	return &mockSyncAuditRepo{logs: make(map[string]*model.SyncAuditLog)}
}

func (m *mockSyncAuditRepo) Create(_ context.Context, log *model.SyncAuditLog) error {
	if m.failCreate {
		return fmt.Errorf("审计存储不可用")
	}
	m.seq++
	if log.SyncAuditLogID == "" {
		log.SyncAuditLogID = fmt.Sprintf("audit-%d", m.seq)
	}
	log.CreatedAt = time.Now()
	log.UpdatedAt = time.Now()
	stored := *log
	m.logs[log.SyncAuditLogID] = &stored
	return nil
}

func (m *mockSyncAuditRepo) GetByID(_ context.Context, id string) (*model.SyncAuditLog, error) {
	if l, ok := m.logs[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSyncAuditRepo) FindActive(_ context.Context, idempotencyKey string) (*model.SyncAuditLog, error) {
	for _, l := range m.logs {
		if l.IdempotencyKey == idempotencyKey && !l.IsTerminal() {
			cp := *l
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSyncAuditRepo) FindRecentSuccess(_ context.Context, studentID, examID string, since time.Time) (*model.SyncAuditLog, error) {
	for _, l := range m.logs {
		if l.StudentID == studentID && l.ExamID == examID && l.Status == model.SyncStatusSuccess &&
			l.SyncedAt != nil && !l.SyncedAt.Before(since) {
			cp := *l
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSyncAuditRepo) Update(_ context.Context, log *model.SyncAuditLog) error {
	if m.failUpdate {
		return fmt.Errorf("审计存储不可用")
	}
	if _, ok := m.logs[log.SyncAuditLogID]; !ok {
		return gorm.ErrRecordNotFound
	}
	log.UpdatedAt = time.Now()
	stored := *log
	m.logs[log.SyncAuditLogID] = &stored
	return nil
}

func (m *mockSyncAuditRepo) ListDueForRetry(_ context.Context, now time.Time, limit int) ([]model.SyncAuditLog, error) {
	var result []model.SyncAuditLog
	for _, l := range m.logs {
		if l.Status == model.SyncStatusRetrying && l.NextRetryAt != nil && !l.NextRetryAt.After(now) {
			result = append(result, *l)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (m *mockSyncAuditRepo) List(_ context.Context, filter repository.AuditLogFilter, offset, limit int) ([]model.SyncAuditLog, int64, error) {
	var all []model.SyncAuditLog
	for i := 1; i <= m.seq; i++ {
		id := fmt.Sprintf("audit-%d", i)
		l, ok := m.logs[id]
		if !ok {
			continue
		}
		if filter.StudentID != "" && l.StudentID != filter.StudentID {
			continue
		}
		if filter.ExamID != "" && l.ExamID != filter.ExamID {
			continue
		}
		if filter.SyncType != "" && l.SyncType != filter.SyncType {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		all = append(all, *l)
	}
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// ── Mock TxRunner：内存事务，出错时整体回滚 ──

type mockTxRunner struct {
	store      *memStore
	failTotals bool // 模拟汇总回写失败，验证聚合原子性
}

func (r *mockTxRunner) InTx(_ context.Context, fn func(tx repository.TxContext) error) error {
	cards, items, seq := r.store.snapshot()
	err := fn(&mockTxContext{store: r.store, failTotals: r.failTotals})
	if err != nil {
		r.store.restore(cards, items, seq)
	}
	return err
}

type mockTxContext struct {
	store      *memStore
	failTotals bool
}

func (c *mockTxContext) LockReportCard(_ context.Context, studentID, termID string) (*model.ReportCard, error) {
	for _, card := range c.store.cards {
		if card.StudentID == studentID && card.TermID == termID {
			cp := *card
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (c *mockTxContext) CreateReportCard(_ context.Context, card *model.ReportCard) error {
	if card.ReportCardID == "" {
		card.ReportCardID = c.store.nextID("rc")
	}
	stored := *card
	c.store.cards[card.ReportCardID] = &stored
	return nil
}

func (c *mockTxContext) CreateItems(_ context.Context, items []model.ReportCardItem) error {
	for i := range items {
		if items[i].ReportCardItemID == "" {
			items[i].ReportCardItemID = c.store.nextID("item")
		}
		stored := items[i]
		c.store.items[items[i].ReportCardItemID] = &stored
	}
	return nil
}

func (c *mockTxContext) GetItems(_ context.Context, reportCardID string) ([]model.ReportCardItem, error) {
	return c.store.itemsOf(reportCardID), nil
}

func (c *mockTxContext) UpdateItem(_ context.Context, item *model.ReportCardItem) error {
	if _, ok := c.store.items[item.ReportCardItemID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *item
	c.store.items[item.ReportCardItemID] = &stored
	return nil
}

func (c *mockTxContext) UpdateReportCardTotals(_ context.Context, card *model.ReportCard) error {
	if c.failTotals {
		return fmt.Errorf("模拟汇总回写失败")
	}
	if _, ok := c.store.cards[card.ReportCardID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *card
	c.store.cards[card.ReportCardID] = &stored
	return nil
}

// ── Fake Emitter ──

type fakeEmitter struct {
	changed []dto.ReportCardChangedPayload
}

func (f *fakeEmitter) EmitReportCardChanged(p dto.ReportCardChangedPayload) {
	f.changed = append(f.changed, p)
}
