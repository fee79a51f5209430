package sync

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/omegaop/backoffice/internal/auth"
	"github.com/omegaop/backoffice/internal/models"
	"github.com/omegaop/backoffice/internal/store"
)

// fakeStore implements StateStore in memory. Save fans the written state out
// to every watch channel, mimicking the remote change notification that
// follows a committed write (including the writer's own echo).
type fakeStore struct {
	mu      sync.Mutex
	doc     *models.StateDocument
	loadErr error
	saveErr error
	saves   []models.AppState
	feeds   []chan models.AppState
}

func (f *fakeStore) Load(ctx context.Context) (*models.StateDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.doc, nil
}

func (f *fakeStore) Save(ctx context.Context, state models.AppState) error {
	f.mu.Lock()
	if f.saveErr != nil {
		err := f.saveErr
		f.mu.Unlock()
		return err
	}
	f.saves = append(f.saves, state)
	feeds := append([]chan models.AppState{}, f.feeds...)
	f.mu.Unlock()

	for _, ch := range feeds {
		ch <- state
	}
	return nil
}

func (f *fakeStore) Watch(ctx context.Context) (<-chan models.AppState, error) {
	ch := make(chan models.AppState, 16)
	f.mu.Lock()
	f.feeds = append(f.feeds, ch)
	f.mu.Unlock()
	return ch, nil
}

func (f *fakeStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func (f *fakeStore) lastSave() models.AppState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves[len(f.saves)-1]
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func baselineDoc() *models.StateDocument {
	state := models.SeedState(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	state.Team = []models.User{
		{ID: "user-ana", AuthID: "subj-ana", Name: "Ana", Email: "ana@omegaop.com.br", Role: "Designer", IsActive: true, IsApproved: true},
		{ID: "user-bia", Name: "Bia", Email: "bia@omegaop.com.br", Role: "Copywriter", IsActive: true, IsApproved: true},
	}
	return &models.StateDocument{ID: store.DocumentID, Data: state}
}

func newSynced(t *testing.T, fs *fakeStore, opts ...Option) *Synchronizer {
	t.Helper()
	opts = append([]Option{WithDebounce(time.Hour)}, opts...)
	s := New(fs, quietLogger(), opts...)
	require.NoError(t, s.Bootstrap(context.Background(), nil))
	return s
}

func TestBootstrapSeedsDefaultsWhenStoreEmpty(t *testing.T) {
	fs := &fakeStore{loadErr: store.ErrNotFound}
	s := newSynced(t, fs)

	st := s.State()
	require.Len(t, st.DB, 1)
	for _, bucket := range st.DB {
		require.Len(t, bucket.Clients, 1)
		assert.Equal(t, "Cliente Exemplo", bucket.Clients[0].Name)
		assert.Equal(t, models.SalesGoal{}, bucket.SalesGoal)
	}
	assert.Nil(t, s.CurrentUser())
	assert.Equal(t, StatusConnected, s.Status())
	assert.Zero(t, fs.saveCount())
}

func TestBootstrapSchemaMissingIsFatalToEntry(t *testing.T) {
	fs := &fakeStore{loadErr: store.ErrSchemaMissing}
	s := New(fs, quietLogger())

	err := s.Bootstrap(context.Background(), nil)
	assert.ErrorIs(t, err, ErrSetupRequired)
	assert.Equal(t, StatusSetupRequired, s.Status())
}

func TestBootstrapAdoptsExistingDocument(t *testing.T) {
	fs := &fakeStore{doc: baselineDoc()}
	s := newSynced(t, fs)

	st := s.State()
	require.Len(t, st.Team, 2)
	assert.Equal(t, "Ana", st.Team[0].Name)
	assert.Equal(t, StatusConnected, s.Status())
}

func TestDebounceCoalescesBurstIntoOneWrite(t *testing.T) {
	fs := &fakeStore{doc: baselineDoc()}
	s := New(fs, quietLogger(), WithDebounce(30*time.Millisecond))
	require.NoError(t, s.Bootstrap(context.Background(), nil))

	for i := 0; i < 5; i++ {
		s.AddTask("Março 2025", "tarefa", models.AssignedAll)
	}

	require.Eventually(t, func() bool { return fs.saveCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, fs.lastSave().DB["Março 2025"].Tasks, 5)

	// No further writes follow once the coalesced state has landed.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, fs.saveCount())
}

func TestIdenticalStateIsNotRewritten(t *testing.T) {
	doc := baselineDoc()
	bucket := doc.Data.DB["Março 2025"]
	bucket.Tasks = []models.Task{{ID: "task-1", Title: "revisar", AssignedTo: "user-ana"}}
	doc.Data.DB["Março 2025"] = bucket

	fs := &fakeStore{doc: doc}
	s := newSynced(t, fs)

	// Two toggles cancel out; the candidate equals the last known snapshot.
	s.ToggleTask("Março 2025", "task-1")
	s.ToggleTask("Março 2025", "task-1")

	require.NoError(t, s.Flush(context.Background()))
	assert.Zero(t, fs.saveCount())
}

func TestEchoSuppressionKeepsPendingLocalEdits(t *testing.T) {
	doc := baselineDoc()
	fs := &fakeStore{doc: doc}
	s := newSynced(t, fs)

	s.AddTask("Março 2025", "pendente", models.AssignedAll)

	// The echo of the last known snapshot must not replace local state.
	s.ApplyRemote(doc.Data)

	assert.Len(t, s.State().DB["Março 2025"].Tasks, 1)
}

func TestEchoSuppressionSurvivesBSONRoundTrip(t *testing.T) {
	fs := &fakeStore{doc: baselineDoc()}
	s := newSynced(t, fs)

	s.PostChatMessage("Março 2025", "user-ana", "bom dia")
	require.NoError(t, s.Flush(context.Background()))
	require.Equal(t, 1, fs.saveCount())

	// What the change stream delivers has round-tripped through the database
	// encoding, which holds datetimes at millisecond precision.
	raw, err := bson.Marshal(fs.lastSave())
	require.NoError(t, err)
	var echo models.AppState
	require.NoError(t, bson.Unmarshal(raw, &echo))

	// A local edit lands between the save and the echo's arrival.
	s.AddTask("Março 2025", "pendente", models.AssignedAll)

	s.ApplyRemote(echo)

	bucket := s.State().DB["Março 2025"]
	assert.Len(t, bucket.ChatMessages, 1)
	require.Len(t, bucket.Tasks, 1, "the pending edit must survive the echo")

	// The pending edit still flushes as its own write.
	require.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, 2, fs.saveCount())
	assert.Len(t, fs.lastSave().DB["Março 2025"].Tasks, 1)
}

func TestRemoteUpdateReplacesStateAndReresolvesUser(t *testing.T) {
	fs := &fakeStore{doc: baselineDoc()}
	s := newSynced(t, fs)

	user, err := s.Reconcile(context.Background(), &auth.Session{Subject: "subj-ana", Email: "ana@omegaop.com.br"})
	require.NoError(t, err)
	assert.Equal(t, "user-ana", user.ID)

	// Another session promotes Ana; the incoming snapshot refreshes the
	// resolved identity.
	next := baselineDoc().Data
	next.Team = append([]models.User{}, next.Team...)
	next.Team[0].Role = "CEO"
	s.ApplyRemote(next)

	require.NotNil(t, s.CurrentUser())
	assert.Equal(t, "CEO", s.CurrentUser().Role)

	// A snapshot without the user retains the previously resolved identity.
	gone := baselineDoc().Data
	gone.Team = gone.Team[1:]
	s.ApplyRemote(gone)

	require.NotNil(t, s.CurrentUser())
	assert.Equal(t, "user-ana", s.CurrentUser().ID)
	assert.Equal(t, "CEO", s.CurrentUser().Role)
}

func TestReconcilePrefersSubjectIDOverEmail(t *testing.T) {
	doc := baselineDoc()
	// Ana's subject id on one record, her email on another.
	doc.Data.Team[1].Email = "ana@omegaop.com.br"
	fs := &fakeStore{doc: doc}
	s := newSynced(t, fs)

	user, err := s.Reconcile(context.Background(), &auth.Session{Subject: "subj-ana", Email: "ana@omegaop.com.br"})
	require.NoError(t, err)
	assert.Equal(t, "user-ana", user.ID)
	assert.Zero(t, fs.saveCount(), "a roster match must not write")
}

func TestReconcileMatchesByEmail(t *testing.T) {
	fs := &fakeStore{doc: baselineDoc()}
	s := newSynced(t, fs)

	user, err := s.Reconcile(context.Background(), &auth.Session{Subject: "subj-new", Email: "BIA@omegaop.com.br"})
	require.NoError(t, err)
	assert.Equal(t, "user-bia", user.ID)
	assert.Zero(t, fs.saveCount())
}

func TestReconcileProvisionsCEO(t *testing.T) {
	doc := baselineDoc()
	doc.Data.Team = []models.User{}
	fs := &fakeStore{doc: doc}
	s := newSynced(t, fs)

	user, err := s.Reconcile(context.Background(), &auth.Session{Subject: "subj-ceo", Email: SuperAdminEmail})
	require.NoError(t, err)
	assert.Equal(t, CEOUserID, user.ID)

	// Provisioning persists immediately, without the debounce.
	require.Equal(t, 1, fs.saveCount())
	saved := fs.lastSave()
	require.NotEmpty(t, saved.Team)
	assert.Equal(t, CEOUserID, saved.Team[0].ID)
	assert.True(t, saved.Team[0].IsApproved)
}

func TestReconcileReplacesStaleCEORecord(t *testing.T) {
	doc := baselineDoc()
	doc.Data.Team = append(doc.Data.Team, models.User{ID: CEOUserID, Name: "antigo", Email: "old@x.com"})
	fs := &fakeStore{doc: doc}
	s := newSynced(t, fs)

	_, err := s.Reconcile(context.Background(), &auth.Session{Subject: "subj-ceo", Email: SuperAdminEmail})
	require.NoError(t, err)

	team := s.State().Team
	assert.Equal(t, CEOUserID, team[0].ID)
	assert.Equal(t, "subj-ceo", team[0].AuthID)
	count := 0
	for _, u := range team {
		if u.ID == CEOUserID {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestReconcileProvisionsManager(t *testing.T) {
	fs := &fakeStore{doc: baselineDoc()}
	s := newSynced(t, fs)

	user, err := s.Reconcile(context.Background(), &auth.Session{Subject: "subj-caio", Email: "caio@omegaop.com.br"})
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "subj-caio", user.AuthID)
	assert.Equal(t, "caio", user.Name, "name falls back to the email local part")
	assert.Equal(t, models.DefaultRole, user.Role)
	assert.True(t, user.IsActive)
	assert.True(t, user.IsApproved)

	// Appended, not prepended.
	team := s.State().Team
	assert.Equal(t, user.ID, team[len(team)-1].ID)
	assert.Equal(t, 1, fs.saveCount())
}

func TestResolveDisplayNameFallbacks(t *testing.T) {
	assert.Equal(t, "Caio", resolveDisplayName(&auth.Session{DisplayName: "Caio", Email: "c@x.com"}))
	assert.Equal(t, "caio", resolveDisplayName(&auth.Session{Email: "caio@x.com"}))
	assert.Equal(t, "Novo Usuário", resolveDisplayName(&auth.Session{Email: ""}))
}

func TestRegisterSaleScenario(t *testing.T) {
	fs := &fakeStore{doc: baselineDoc()}
	s := newSynced(t, fs)

	client, err := s.RegisterSale(context.Background(), "Março 2025", "Acme", 2500, "user-ana", "Tráfego Pago")
	require.NoError(t, err)
	assert.Equal(t, "Acme", client.Name)

	// All three effects land in a single immediate save.
	require.Equal(t, 1, fs.saveCount())
	saved := fs.lastSave()

	assert.Equal(t, 2500.0, saved.Team[0].SalesVolume)

	bucket := saved.DB["Março 2025"]
	assert.Equal(t, 2500.0, bucket.SalesGoal.CurrentValue)
	assert.Equal(t, 1, bucket.SalesGoal.TotalSales)

	last := bucket.Clients[len(bucket.Clients)-1]
	assert.Equal(t, "Acme", last.Name)
	assert.Equal(t, 2500.0, last.ContractValue)
	assert.Equal(t, []string{"user-ana"}, last.AssignedUserIDs)
}

func TestDisplayNameChangePropagatesToOtherSession(t *testing.T) {
	fs := &fakeStore{doc: baselineDoc()}

	a := newSynced(t, fs)
	b := newSynced(t, fs)

	require.NoError(t, a.SetDisplayName(context.Background(), "user-ana", "Ana Paula"))

	require.Eventually(t, func() bool {
		return b.State().Team[0].Name == "Ana Paula"
	}, time.Second, 5*time.Millisecond)

	// B only received the notification; A's write is the single save.
	assert.Equal(t, 1, fs.saveCount())
}

func TestSaveFailureSetsErrorStatusAndRetries(t *testing.T) {
	fs := &fakeStore{doc: baselineDoc()}
	s := newSynced(t, fs)

	fs.mu.Lock()
	fs.saveErr = assert.AnError
	fs.mu.Unlock()

	s.AddTask("Março 2025", "tarefa", models.AssignedAll)
	assert.Error(t, s.Flush(context.Background()))
	assert.Equal(t, StatusError, s.Status())

	// The state stays locally usable and the next cycle retries.
	fs.mu.Lock()
	fs.saveErr = nil
	fs.mu.Unlock()

	require.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, StatusConnected, s.Status())
	assert.Equal(t, 1, fs.saveCount())
}

func TestDriveCascadeDeleteOp(t *testing.T) {
	fs := &fakeStore{doc: baselineDoc()}
	s := newSynced(t, fs)

	root := s.CreateDriveItem("Março 2025", SectionDrive, "", models.KindFolder, "docs")
	child := s.CreateDriveItem("Março 2025", SectionDrive, root.ID, models.KindFolder, "old")
	s.CreateDriveItem("Março 2025", SectionDrive, child.ID, models.KindFile, "arquivo.md")
	keep := s.CreateDriveItem("Março 2025", SectionDrive, "", models.KindFile, "logo.png")

	s.DeleteDriveItem("Março 2025", SectionDrive, root.ID)

	items := s.State().DB["Março 2025"].Drive
	require.Len(t, items, 1)
	assert.Equal(t, keep.ID, items[0].ID)
}

func TestRegisterRole(t *testing.T) {
	fs := &fakeStore{doc: baselineDoc()}
	s := newSynced(t, fs)

	require.NoError(t, s.RegisterRole("Estagiário"))
	assert.Contains(t, s.State().AvailableRoles, "Estagiário")
	assert.Error(t, s.RegisterRole("Estagiário"))
	assert.Error(t, s.RegisterRole("  "))
}

func TestSetUserRoleRequiresRegisteredRole(t *testing.T) {
	fs := &fakeStore{doc: baselineDoc()}
	s := newSynced(t, fs)

	assert.Error(t, s.SetUserRole("user-ana", "Cargo Inexistente"))

	require.NoError(t, s.SetUserRole("user-ana", "Copywriter"))
	assert.Equal(t, "Copywriter", s.State().Team[0].Role)
}

type fakeFeed struct {
	ch       chan auth.SessionEvent
	released bool
}

func (f *fakeFeed) Subscribe() (<-chan auth.SessionEvent, func()) {
	return f.ch, func() { f.released = true }
}

func TestSessionFeedDrivesIdentity(t *testing.T) {
	fs := &fakeStore{doc: baselineDoc()}
	s := newSynced(t, fs)

	feed := &fakeFeed{ch: make(chan auth.SessionEvent, 1)}
	s.AttachSessionFeed(feed)

	feed.ch <- auth.SessionEvent{
		Type:    auth.SignedIn,
		Session: &auth.Session{Subject: "subj-ana", Email: "ana@omegaop.com.br"},
	}
	require.Eventually(t, func() bool { return s.CurrentUser() != nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "user-ana", s.CurrentUser().ID)

	feed.ch <- auth.SessionEvent{Type: auth.SignedOut}
	require.Eventually(t, func() bool { return s.CurrentUser() == nil }, time.Second, 5*time.Millisecond)

	s.Close()
	assert.True(t, feed.released, "auth subscription must be released on teardown")
}

func TestCloseIsIdempotent(t *testing.T) {
	fs := &fakeStore{doc: baselineDoc()}
	s := newSynced(t, fs)

	s.Close()
	assert.NotPanics(t, func() { s.Close() })
}
