package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"group_question_service/internal/domain/answer"
	"group_question_service/internal/domain/cycle"
	"group_question_service/internal/domain/digest"
	"group_question_service/internal/domain/question"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// closedCycle adds a closed cycle whose digest date has passed.
func closedCycle(s *store, rec *question.Record) *cycle.Cycle {
	c := s.addCycle(rec, cycle.StatusClosed)
	c.StartDate = testNow.Add(-170 * time.Hour)
	c.EndDate = testNow.Add(-26 * time.Hour)
	c.DigestDate = testNow.Add(-2 * time.Hour)
	return c
}

func addAnswer(s *store, memberID, recordID int64, content string) {
	a := &answer.Answer{ID: s.id(), MemberID: memberID, QuestionRecordID: recordID, Content: content, Source: answer.SourceEmail}
	s.answers[a.ID] = a
}

func TestRunDigestsSendsOneDigestPerGroup(t *testing.T) {
	f := newFixture()
	family := f.s.addGroup("Family", true)
	work := f.s.addGroup("Work", true)
	ana := f.s.addMember("ana@example.com", "Ana", family.ID)
	bob := f.s.addMember("bob@example.com", "", family.ID, work.ID)

	season := f.s.addRecord(family.ID, f.s.addQuestion("Favorite season?").ID, testNow)
	book := f.s.addRecord(family.ID, f.s.addQuestion("Favorite book?").ID, testNow)
	tool := f.s.addRecord(work.ID, f.s.addQuestion("Favorite tool?").ID, testNow)
	c1 := closedCycle(f.s, season)
	c2 := closedCycle(f.s, book)
	c3 := closedCycle(f.s, tool)
	notYet := f.s.addCycle(f.s.addRecord(family.ID, f.s.addQuestion("Later").ID, testNow), cycle.StatusClosed)
	notYet.StartDate = testNow.Add(-2 * time.Hour)
	notYet.EndDate = testNow.Add(-time.Hour)
	notYet.DigestDate = testNow.Add(time.Hour)

	addAnswer(f.s, ana.ID, season.ID, `I'd say "summer" & fall, 3 < 4`)
	addAnswer(f.s, bob.ID, season.ID, "Winter")
	addAnswer(f.s, bob.ID, tool.ID, "Vim")

	sent, err := f.digests.RunDigests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	require.Len(t, f.sender.digests, 2)

	familyDigest := f.sender.digests[0]
	assert.Equal(t, "Family", familyDigest.GroupName)
	assert.ElementsMatch(t, []string{"ana@example.com", "bob@example.com"}, familyDigest.To)
	require.Len(t, familyDigest.Entries, 2)
	assert.Equal(t, "Favorite season?", familyDigest.Entries[0].Question)
	require.Len(t, familyDigest.Entries[0].Answers, 2)
	assert.Equal(t, "Ana", familyDigest.Entries[0].Answers[0].Author)
	assert.Equal(t, `I'd say "summer" & fall, 3 < 4`, familyDigest.Entries[0].Answers[0].Content)
	assert.Equal(t, "bob@example.com", familyDigest.Entries[0].Answers[1].Author)
	assert.Empty(t, familyDigest.Entries[1].Answers)

	for _, c := range []*cycle.Cycle{c1, c2, c3} {
		assert.Equal(t, cycle.StatusCompleted, f.s.cycles[c.ID].Status)
	}
	assert.Equal(t, cycle.StatusClosed, f.s.cycles[notYet.ID].Status)

	for _, d := range f.s.digests {
		assert.Equal(t, digest.StatusSent, d.Status)
		assert.True(t, d.SentAt.Valid)
	}

	sent, err = f.digests.RunDigests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
}

func TestRunDigestsFailureKeepsCyclesClosed(t *testing.T) {
	f := newFixture()
	g := f.s.addGroup("Family", true)
	f.s.addMember("ana@example.com", "Ana", g.ID)
	c := closedCycle(f.s, f.s.addRecord(g.ID, f.s.addQuestion("Q").ID, testNow))
	f.sender.digestErr = errors.New("smtp unavailable")

	sent, err := f.digests.RunDigests(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, sent)
	assert.Equal(t, cycle.StatusClosed, f.s.cycles[c.ID].Status)

	require.Len(t, f.s.digests, 1)
	for _, d := range f.s.digests {
		assert.Equal(t, digest.StatusFailed, d.Status)
		assert.Equal(t, "smtp unavailable", d.Error.String)
		assert.Equal(t, []int64{c.QuestionRecordID.Int64}, d.RecordIDs)
	}

	f.sender.digestErr = nil
	sent, err = f.digests.RunDigests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, cycle.StatusCompleted, f.s.cycles[c.ID].Status)

	require.Len(t, f.s.digests, 1, "the failed digest is reused on retry")
	for _, d := range f.s.digests {
		assert.Equal(t, digest.StatusSent, d.Status)
		assert.False(t, d.Error.Valid)
		assert.Equal(t, []int64{c.QuestionRecordID.Int64}, d.RecordIDs)
	}
}

func TestRunDigestsDoesNotResendAfterCompleteFails(t *testing.T) {
	f := newFixture()
	g := f.s.addGroup("Family", true)
	f.s.addMember("ana@example.com", "Ana", g.ID)
	c := closedCycle(f.s, f.s.addRecord(g.ID, f.s.addQuestion("Q").ID, testNow))
	f.s.failMutate = errors.New("lock timeout")

	sent, err := f.digests.RunDigests(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, f.sender.digests, 1)
	assert.Equal(t, cycle.StatusClosed, f.s.cycles[c.ID].Status)

	f.s.failMutate = nil
	sent, err = f.digests.RunDigests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Len(t, f.sender.digests, 1)
	assert.Len(t, f.s.digests, 1)
	assert.Equal(t, cycle.StatusCompleted, f.s.cycles[c.ID].Status)
}
