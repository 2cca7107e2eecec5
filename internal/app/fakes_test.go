package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"group_question_service/internal/domain/answer"
	"group_question_service/internal/domain/cycle"
	"group_question_service/internal/domain/digest"
	"group_question_service/internal/domain/mail"
	"group_question_service/internal/domain/member"
	"group_question_service/internal/domain/question"
	"group_question_service/internal/domain/reply"
	idb "group_question_service/internal/infra/database"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

var errStorageDown = errors.New("connection refused")

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func testLogger() *logrus.Entry {
	logger, _ := test.NewNullLogger()
	return logrus.NewEntry(logger)
}

// store is the shared in-memory state behind the fake repositories.
type store struct {
	mu          sync.Mutex
	nextID      int64
	members     map[int64]*member.Member
	memberships map[[2]int64]bool
	questions   map[int64]*question.Question
	groups      map[int64]*question.Group
	records     map[int64]*question.Record
	cycles      map[int64]*cycle.Cycle
	answers     map[int64]*answer.Answer
	digests     map[int64]*digest.Digest

	failMembers  error
	failRecords  error
	failAnswers  error
	failDigestUp error
	failMutate   error
}

func newStore() *store {
	return &store{
		nextID:      100,
		members:     make(map[int64]*member.Member),
		memberships: make(map[[2]int64]bool),
		questions:   make(map[int64]*question.Question),
		groups:      make(map[int64]*question.Group),
		records:     make(map[int64]*question.Record),
		cycles:      make(map[int64]*cycle.Cycle),
		answers:     make(map[int64]*answer.Answer),
		digests:     make(map[int64]*digest.Digest),
	}
}

func (s *store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *store) addMember(email, name string, groupIDs ...int64) *member.Member {
	m := &member.Member{ID: s.id(), Email: member.NormalizeEmail(email), DisplayName: name}
	s.members[m.ID] = m
	for _, g := range groupIDs {
		s.memberships[[2]int64{m.ID, g}] = true
	}
	return m
}

func (s *store) addGroup(name string, weekly bool) *question.Group {
	g := &question.Group{ID: s.id(), Name: name, WeeklyEnabled: weekly}
	s.groups[g.ID] = g
	return g
}

func (s *store) addQuestion(content string) *question.Question {
	q := &question.Question{ID: s.id(), Content: content}
	s.questions[q.ID] = q
	return q
}

func (s *store) addRecord(groupID, questionID int64, createdAt time.Time) *question.Record {
	r := &question.Record{ID: s.id(), GroupID: groupID, QuestionID: questionID, CreatedAt: createdAt}
	s.records[r.ID] = r
	return r
}

// addCycle stores a cycle owning rec in the given status.
func (s *store) addCycle(rec *question.Record, status cycle.Status) *cycle.Cycle {
	c := &cycle.Cycle{
		ID:               s.id(),
		GroupID:          rec.GroupID,
		QuestionID:       rec.QuestionID,
		QuestionRecordID: sql.NullInt64{Int64: rec.ID, Valid: true},
		StartDate:        testNow.Add(-time.Hour),
		EndDate:          testNow.Add(143 * time.Hour),
		DigestDate:       testNow.Add(167 * time.Hour),
		Status:           status,
	}
	s.cycles[c.ID] = c
	return c
}

func (s *store) answersFor(recordID int64) []*answer.Answer {
	out := make([]*answer.Answer, 0)
	for _, a := range s.answers {
		if a.QuestionRecordID == recordID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memberRepo struct{ s *store }

func (r memberRepo) Create(_ context.Context, m *member.Member) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m.ID = r.s.id()
	m.Email = member.NormalizeEmail(m.Email)
	cp := *m
	r.s.members[m.ID] = &cp
	return nil
}

func (r memberRepo) GetByID(_ context.Context, id int64) (*member.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m, ok := r.s.members[id]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, idb.ErrMemberNotFound
}

func (r memberRepo) GetByEmail(_ context.Context, email string) (*member.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failMembers != nil {
		return nil, r.s.failMembers
	}
	for _, m := range r.s.members {
		if m.Email == email {
			cp := *m
			return &cp, nil
		}
	}
	return nil, idb.ErrMemberNotFound
}

func (r memberRepo) IsActiveInGroup(_ context.Context, memberID, groupID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.memberships[[2]int64{memberID, groupID}], nil
}

func (r memberRepo) ListActiveByGroup(_ context.Context, groupID int64) ([]*member.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*member.Member, 0)
	for key, active := range r.s.memberships {
		if active && key[1] == groupID {
			cp := *r.s.members[key[0]]
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memberRepo) SetMembership(_ context.Context, ms member.Membership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.memberships[[2]int64{ms.MemberID, ms.GroupID}] = ms.Active
	return nil
}

type questionRepo struct{ s *store }

func (r questionRepo) CreateQuestion(_ context.Context, q *question.Question) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q.ID = r.s.id()
	cp := *q
	r.s.questions[q.ID] = &cp
	return nil
}

func (r questionRepo) GetQuestionByID(_ context.Context, id int64) (*question.Question, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if q, ok := r.s.questions[id]; ok {
		cp := *q
		return &cp, nil
	}
	return nil, idb.ErrQuestionNotFound
}

func (r questionRepo) FindQuestionByContent(_ context.Context, normalized string) (*question.Question, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found *question.Question
	for _, q := range r.s.questions {
		if question.NormalizeContent(q.Content) == normalized && (found == nil || q.ID < found.ID) {
			found = q
		}
	}
	if found == nil {
		return nil, idb.ErrQuestionNotFound
	}
	cp := *found
	return &cp, nil
}

func (r questionRepo) NextUnsentQuestion(_ context.Context, groupID int64) (*question.Question, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sent := make(map[int64]bool)
	for _, rec := range r.s.records {
		if rec.GroupID == groupID {
			sent[rec.QuestionID] = true
		}
	}
	for _, c := range r.s.cycles {
		if c.GroupID == groupID {
			sent[c.QuestionID] = true
		}
	}
	var next *question.Question
	for _, q := range r.s.questions {
		if !sent[q.ID] && (next == nil || q.ID < next.ID) {
			next = q
		}
	}
	if next == nil {
		return nil, idb.ErrQuestionNotFound
	}
	cp := *next
	return &cp, nil
}

func (r questionRepo) CreateGroup(_ context.Context, g *question.Group) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g.ID = r.s.id()
	cp := *g
	r.s.groups[g.ID] = &cp
	return nil
}

func (r questionRepo) GetGroupByID(_ context.Context, id int64) (*question.Group, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if g, ok := r.s.groups[id]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, idb.ErrGroupNotFound
}

func (r questionRepo) ListGroupsByName(_ context.Context, name string) ([]*question.Group, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*question.Group, 0)
	for _, g := range r.s.groups {
		if strings.EqualFold(g.Name, name) {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r questionRepo) ListWeeklyGroups(_ context.Context) ([]*question.Group, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*question.Group, 0)
	for _, g := range r.s.groups {
		if g.WeeklyEnabled {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r questionRepo) GetRecordByID(_ context.Context, id int64) (*question.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failRecords != nil {
		return nil, r.s.failRecords
	}
	if rec, ok := r.s.records[id]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, idb.ErrRecordNotFound
}

func (r questionRepo) ListRecords(_ context.Context, groupID, questionID int64) ([]*question.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failRecords != nil {
		return nil, r.s.failRecords
	}
	out := make([]*question.Record, 0)
	for _, rec := range r.s.records {
		if rec.GroupID == groupID && rec.QuestionID == questionID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

type cycleRepo struct {
	s       *store
	records int // question records created through Tx
}

func (r *cycleRepo) Create(_ context.Context, c *cycle.Cycle) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.ID = r.s.id()
	cp := *c
	r.s.cycles[c.ID] = &cp
	return nil
}

func (r *cycleRepo) GetByID(_ context.Context, id int64) (*cycle.Cycle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.cycles[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, idb.ErrCycleNotFound
}

func (r *cycleRepo) GetByRecordID(_ context.Context, recordID int64) (*cycle.Cycle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.cycles {
		if c.QuestionRecordID.Valid && c.QuestionRecordID.Int64 == recordID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, idb.ErrCycleNotFound
}

func (r *cycleRepo) ListByStatus(_ context.Context, statuses ...cycle.Status) ([]*cycle.Cycle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*cycle.Cycle, 0)
	for _, c := range r.s.cycles {
		for _, st := range statuses {
			if c.Status.Equal(st) {
				cp := *c
				out = append(out, &cp)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *cycleRepo) ListOpenByGroup(ctx context.Context, groupID int64) ([]*cycle.Cycle, error) {
	open, err := r.ListByStatus(ctx, cycle.StatusScheduled, cycle.StatusActive)
	if err != nil {
		return nil, err
	}
	out := make([]*cycle.Cycle, 0)
	for _, c := range open {
		if c.GroupID == groupID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *cycleRepo) Mutate(ctx context.Context, id int64, fn cycle.MutateFunc) (*cycle.Cycle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failMutate != nil {
		return nil, r.s.failMutate
	}
	stored, ok := r.s.cycles[id]
	if !ok {
		return nil, idb.ErrCycleNotFound
	}
	working := *stored
	if err := fn(ctx, &working, cycleTx{r}); err != nil {
		if errors.Is(err, cycle.ErrNoChange) {
			cp := *stored
			return &cp, nil
		}
		return nil, err
	}
	if err := working.Validate(); err != nil {
		return nil, err
	}
	*stored = working
	cp := working
	return &cp, nil
}

// cycleTx runs under the store lock held by Mutate.
type cycleTx struct{ r *cycleRepo }

func (t cycleTx) CreateRecord(_ context.Context, groupID, questionID int64) (int64, error) {
	t.r.records++
	rec := &question.Record{ID: t.r.s.id(), GroupID: groupID, QuestionID: questionID, CreatedAt: testNow}
	t.r.s.records[rec.ID] = rec
	return rec.ID, nil
}

type answerRepo struct{ s *store }

func (r answerRepo) Create(_ context.Context, a *answer.Answer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failAnswers != nil {
		return r.s.failAnswers
	}
	for _, existing := range r.s.answers {
		if existing.MemberID == a.MemberID && existing.QuestionRecordID == a.QuestionRecordID {
			return idb.ErrDuplicateAnswer
		}
	}
	a.ID = r.s.id()
	a.CreatedAt = testNow
	cp := *a
	r.s.answers[a.ID] = &cp
	return nil
}

func (r answerRepo) Exists(_ context.Context, memberID, recordID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.answers {
		if a.MemberID == memberID && a.QuestionRecordID == recordID {
			return true, nil
		}
	}
	return false, nil
}

func (r answerRepo) ListByRecord(_ context.Context, recordID int64) ([]*answer.Answer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.answersFor(recordID), nil
}

type digestRepo struct{ s *store }

func (r digestRepo) Create(_ context.Context, d *digest.Digest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d.ID = r.s.id()
	cp := *d
	r.s.digests[d.ID] = &cp
	return nil
}

func (r digestRepo) Update(_ context.Context, d *digest.Digest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failDigestUp != nil && d.Status == digest.StatusSent {
		return r.s.failDigestUp
	}
	if _, ok := r.s.digests[d.ID]; !ok {
		return idb.ErrDigestNotFound
	}
	cp := *d
	r.s.digests[d.ID] = &cp
	return nil
}

func (r digestRepo) ListByRecords(_ context.Context, groupID int64, recordIDs []int64) ([]*digest.Digest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wanted := make(map[int64]bool)
	for _, id := range recordIDs {
		wanted[id] = true
	}
	out := make([]*digest.Digest, 0)
	for _, d := range r.s.digests {
		if d.GroupID != groupID {
			continue
		}
		for _, id := range d.RecordIDs {
			if wanted[id] {
				cp := *d
				out = append(out, &cp)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r digestRepo) GetByID(_ context.Context, id int64) (*digest.Digest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if d, ok := r.s.digests[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, idb.ErrDigestNotFound
}

// fakeSigner issues "<id>-ok" tokens.
type fakeSigner struct{}

func (fakeSigner) Sign(recordID int64) (string, error) {
	return strconv.FormatInt(recordID, 10) + "-ok", nil
}

func (fakeSigner) Verify(token string) (int64, error) {
	id, sig, ok := strings.Cut(token, "-")
	if !ok || sig != "ok" {
		return 0, fmt.Errorf("%w: %s", reply.ErrInvalidSignature, token)
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", reply.ErrInvalidSignature, token)
	}
	return n, nil
}

type fakeSender struct {
	mu        sync.Mutex
	questions []mail.QuestionEmail
	digests   []mail.DigestEmail
	digestErr error
}

func (f *fakeSender) SendQuestion(_ context.Context, email mail.QuestionEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions = append(f.questions, email)
	return nil
}

func (f *fakeSender) SendDigest(_ context.Context, email mail.DigestEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.digestErr != nil {
		return f.digestErr
	}
	f.digests = append(f.digests, email)
	return nil
}

type eventSink struct {
	mu     sync.Mutex
	events []reply.Event
}

func (e *eventSink) Publish(_ context.Context, ev reply.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *eventSink) ofKind(kind reply.EventKind) []reply.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]reply.Event, 0)
	for _, ev := range e.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

type alertSink struct {
	outcomes []reply.Outcome
}

func (a *alertSink) AlertRejected(_ context.Context, _ *reply.Message, outcome reply.Outcome) error {
	a.outcomes = append(a.outcomes, outcome)
	return nil
}

// fixture wires the application over one in-memory store.
type fixture struct {
	s         *store
	cycleRepo *cycleRepo
	sender    *fakeSender
	events    *eventSink
	alerts    *alertSink
	cycles    *CycleService
	digests   *DigestService
	replies   *ReplyService
}

const testDomain = "questions.example.com"

func newFixture() *fixture {
	s := newStore()
	f := &fixture{
		s:         s,
		cycleRepo: &cycleRepo{s: s},
		sender:    &fakeSender{},
		events:    &eventSink{},
		alerts:    &alertSink{},
	}
	members, questions, answers := memberRepo{s}, questionRepo{s}, answerRepo{s}
	log := testLogger()

	dispatcher := NewQuestionDispatcher(questions, members, fakeSigner{}, f.sender, testDomain, log)
	f.cycles = NewCycleService(f.cycleRepo, questions, dispatcher, 144*time.Hour, 24*time.Hour, log)
	f.cycles.now = func() time.Time { return testNow }
	f.digests = NewDigestService(f.cycleRepo, questions, answers, members, digestRepo{s}, f.sender, f.cycles, log)
	f.digests.now = func() time.Time { return testNow }

	locator := NewRecordLocator(f.events, log,
		NewTokenStrategy(fakeSigner{}, testDomain, questions, f.cycleRepo),
		NewHeaderStrategy(questions, f.cycleRepo),
		NewSubjectStrategy(questions, f.cycleRepo),
	)
	f.replies = NewReplyService(
		NewIdentityResolver(members, log),
		locator,
		NewContentExtractor(""),
		NewAdmissionController(members, f.cycleRepo, answers, log),
		f.events,
		f.alerts,
		testDomain,
		log,
	)
	return f
}
