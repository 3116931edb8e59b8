package service

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/sakif/climate-crew/internal/apperror"
	"github.com/sakif/climate-crew/internal/model"
	"github.com/sakif/climate-crew/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeStore implements every repository interface in memory, the same way
// *sqlite.DB does on disk. Setting failWith makes every call fail with that
// error, which is how the tests simulate an unreachable store. failOp
// narrows the failure to a single operation.

type fakeStore struct {
	mu sync.Mutex

	users    []*model.User // insertion order matters for leaderboard ties
	profiles map[string]*model.Profile
	tasks    map[string]*model.TaskState
	subs     []*model.Submission

	failWith error
	failOp   string
	calls    map[string]int
}

var (
	_ repository.UserRepository        = (*fakeStore)(nil)
	_ repository.ProfileRepository     = (*fakeStore)(nil)
	_ repository.TaskRepository        = (*fakeStore)(nil)
	_ repository.SubmissionRepository  = (*fakeStore)(nil)
	_ repository.LeaderboardRepository = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles: make(map[string]*model.Profile),
		tasks:    make(map[string]*model.TaskState),
		calls:    make(map[string]int),
	}
}

func (f *fakeStore) enter(op string) error {
	f.calls[op]++
	if f.failOp != "" && f.failOp != op {
		return nil
	}
	return f.failWith
}

func (f *fakeStore) userByID(id string) *model.User {
	for _, u := range f.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (f *fakeStore) CreateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateUser"); err != nil {
		return err
	}
	for _, u := range f.users {
		if u.Username == user.Username || (user.Email != "" && u.Email == user.Email) {
			return apperror.Conflict("user", user.Username)
		}
	}
	user.ID = fmt.Sprintf("user-%d", len(f.users)+1)
	stored := *user
	f.users = append(f.users, &stored)
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetUserByID"); err != nil {
		return nil, err
	}
	if u := f.userByID(id); u != nil {
		copied := *u
		return &copied, nil
	}
	return nil, apperror.NotFound("user", id)
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetUserByUsername"); err != nil {
		return nil, err
	}
	for _, u := range f.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (f *fakeStore) GetOrCreateProfile(_ context.Context, userID string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetOrCreateProfile"); err != nil {
		return nil, err
	}
	if p, ok := f.profiles[userID]; ok {
		copied := *p
		return &copied, nil
	}
	u := f.userByID(userID)
	if u == nil {
		return nil, apperror.NotFound("user", userID)
	}
	p := &model.Profile{UserID: userID, Username: u.Username, Email: u.Email}
	f.profiles[userID] = p
	copied := *p
	return &copied, nil
}

func (f *fakeStore) UpdateProfile(_ context.Context, userID string, patch model.ProfilePatch) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateProfile"); err != nil {
		return false, err
	}
	p, ok := f.profiles[userID]
	if !ok {
		return false, nil
	}
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.Contact, patch.Contact)
	set(&p.City, patch.City)
	set(&p.Country, patch.Country)
	set(&p.Occupation, patch.Occupation)
	if patch.Image != nil {
		p.Image = patch.Image
	}
	return true, nil
}

func (f *fakeStore) InitTask(_ context.Context, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("InitTask"); err != nil {
		return err
	}
	if f.userByID(userID) == nil {
		return apperror.NotFound("user", userID)
	}
	if _, ok := f.tasks[userID]; !ok {
		f.tasks[userID] = &model.TaskState{UserID: userID, CurrentTask: text}
	}
	return nil
}

func (f *fakeStore) GetTask(_ context.Context, userID string) (*model.TaskState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetTask"); err != nil {
		return nil, err
	}
	ts, ok := f.tasks[userID]
	if !ok {
		return nil, apperror.NotFound("task state", userID)
	}
	copied := *ts
	return &copied, nil
}

func (f *fakeStore) SetTaskText(_ context.Context, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SetTaskText"); err != nil {
		return err
	}
	if f.userByID(userID) == nil {
		return apperror.NotFound("user", userID)
	}
	ts, ok := f.tasks[userID]
	if !ok {
		ts = &model.TaskState{UserID: userID}
		f.tasks[userID] = ts
	}
	ts.CurrentTask = text
	return nil
}

func (f *fakeStore) CompleteTask(_ context.Context, userID string, reward int, next string) (*model.TaskState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CompleteTask"); err != nil {
		return nil, err
	}
	ts, ok := f.tasks[userID]
	if !ok {
		return nil, apperror.NotFound("task state", userID)
	}
	ts.Points += reward
	ts.CompletedCount++
	ts.CurrentTask = next
	copied := *ts
	return &copied, nil
}

func (f *fakeStore) CreateSubmission(_ context.Context, sub *model.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateSubmission"); err != nil {
		return err
	}
	if f.userByID(sub.UserID) == nil {
		return apperror.NotFound("user", sub.UserID)
	}
	sub.ID = int64(len(f.subs) + 1)
	sub.Upvotes = 0
	sub.HasImage = len(sub.Image) > 0
	stored := *sub
	f.subs = append(f.subs, &stored)
	return nil
}

func (f *fakeStore) CreateSubmissionForTask(_ context.Context, sub *model.Submission, reward int, next string) (*model.TaskState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateSubmissionForTask"); err != nil {
		return nil, err
	}
	if f.userByID(sub.UserID) == nil {
		return nil, apperror.NotFound("user", sub.UserID)
	}
	ts, ok := f.tasks[sub.UserID]
	if !ok {
		return nil, apperror.NotFound("task state", sub.UserID)
	}
	if ts.CurrentTask != sub.TaskText {
		return nil, apperror.Conflict("task state", sub.UserID)
	}

	sub.ID = int64(len(f.subs) + 1)
	sub.Upvotes = 0
	sub.HasImage = len(sub.Image) > 0
	stored := *sub
	f.subs = append(f.subs, &stored)

	ts.Points += reward
	ts.CompletedCount++
	ts.CurrentTask = next
	copied := *ts
	return &copied, nil
}

func (f *fakeStore) GetSubmission(_ context.Context, id int64) (*model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetSubmission"); err != nil {
		return nil, err
	}
	for _, s := range f.subs {
		if s.ID == id {
			copied := *s
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("submission", strconv.FormatInt(id, 10))
}

func (f *fakeStore) ListSubmissions(_ context.Context, filter repository.SubmissionFilter) ([]model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListSubmissions"); err != nil {
		return nil, err
	}
	var out []model.Submission
	for _, s := range f.subs {
		if filter.UserID == "" || s.UserID == filter.UserID {
			listed := *s
			listed.Image = nil
			out = append(out, listed)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Submission) int {
		if c := cmp.Compare(b.SubmissionDate, a.SubmissionDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeStore) IncrementUpvotes(_ context.Context, id int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("IncrementUpvotes"); err != nil {
		return 0, err
	}
	for _, s := range f.subs {
		if s.ID == id {
			s.Upvotes++
			return s.Upvotes, nil
		}
	}
	return 0, apperror.NotFound("submission", strconv.FormatInt(id, 10))
}

func (f *fakeStore) Standings(_ context.Context) ([]model.LeaderboardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Standings"); err != nil {
		return nil, err
	}
	var out []model.LeaderboardEntry
	for _, u := range f.users {
		ts, ok := f.tasks[u.ID]
		if !ok {
			continue
		}
		out = append(out, model.LeaderboardEntry{
			UserID:         u.ID,
			Username:       u.Username,
			Points:         ts.Points,
			CompletedCount: ts.CompletedCount,
		})
	}
	slices.SortStableFunc(out, func(a, b model.LeaderboardEntry) int {
		return cmp.Compare(b.Points, a.Points)
	})
	return out, nil
}

// addUser registers a user directly in the fake, bypassing UserService.
func (f *fakeStore) addUser(t *testing.T, username string) string {
	t.Helper()
	u := &model.User{Username: username}
	if err := f.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("addUser(%s): %v", username, err)
	}
	return u.ID
}

// =========================================================================
// FAKE RECORDER
// =========================================================================

type countingRecorder struct {
	mu         sync.Mutex
	completed  int
	points     int
	assigned   int
	created    int
	upvoted    int
	registered int
}

func (r *countingRecorder) TaskCompleted(p int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
	r.points += p
}
func (r *countingRecorder) TaskAssigned()      { r.mu.Lock(); r.assigned++; r.mu.Unlock() }
func (r *countingRecorder) SubmissionCreated() { r.mu.Lock(); r.created++; r.mu.Unlock() }
func (r *countingRecorder) SubmissionUpvoted() { r.mu.Lock(); r.upvoted++; r.mu.Unlock() }
func (r *countingRecorder) UserRegistered()    { r.mu.Lock(); r.registered++; r.mu.Unlock() }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
