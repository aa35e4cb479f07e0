package records

import (
	"context"
)

// repoMock is an in-memory records repo used in unit tests, where the
// "surviving ledger" behind BestSurviving is scripted per exercise.
type repoMock struct {
	records  map[string]*PersonalRecord
	bests    map[string]SurvivingBest
	rescans  map[string]int
	failWith error
}

func NewMockRecordsRepo() *repoMock {
	return &repoMock{
		records: make(map[string]*PersonalRecord),
		bests:   make(map[string]SurvivingBest),
		rescans: make(map[string]int),
	}
}

func (r *repoMock) key(userID, exerciseName string) string {
	return userID + "||" + exerciseName
}

// SetSurvivingBest scripts the rescan result for one exercise.
func (r *repoMock) SetSurvivingBest(userID, exerciseName string, best SurvivingBest) {
	r.bests[r.key(userID, exerciseName)] = best
}

// FailWith makes every subsequent call return err.
func (r *repoMock) FailWith(err error) {
	r.failWith = err
}

func (r *repoMock) Rescans(userID, exerciseName string) int {
	return r.rescans[r.key(userID, exerciseName)]
}

func (r *repoMock) Record(userID, exerciseName string) *PersonalRecord {
	return r.records[r.key(userID, exerciseName)]
}

func (r *repoMock) Get(_ context.Context, userID, exerciseName string) (*PersonalRecord, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	pr, ok := r.records[r.key(userID, exerciseName)]
	if !ok {
		return nil, ErrRecordNotFound
	}
	recordCopy := *pr
	return &recordCopy, nil
}

func (r *repoMock) Insert(_ context.Context, pr PersonalRecord) error {
	if r.failWith != nil {
		return r.failWith
	}
	r.records[r.key(pr.UserID, pr.ExerciseName)] = &pr
	return nil
}

func (r *repoMock) Update(_ context.Context, pr PersonalRecord) error {
	if r.failWith != nil {
		return r.failWith
	}
	if _, ok := r.records[r.key(pr.UserID, pr.ExerciseName)]; !ok {
		return ErrRecordNotFound
	}
	r.records[r.key(pr.UserID, pr.ExerciseName)] = &pr
	return nil
}

func (r *repoMock) Delete(_ context.Context, userID, exerciseName string) error {
	if r.failWith != nil {
		return r.failWith
	}
	if _, ok := r.records[r.key(userID, exerciseName)]; !ok {
		return ErrRecordNotFound
	}
	delete(r.records, r.key(userID, exerciseName))
	return nil
}

func (r *repoMock) BestSurviving(_ context.Context, userID, exerciseName string) (SurvivingBest, error) {
	if r.failWith != nil {
		return SurvivingBest{}, r.failWith
	}
	r.rescans[r.key(userID, exerciseName)]++
	return r.bests[r.key(userID, exerciseName)], nil
}
