package job

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/classifier-cli/internal/model"
	"github.com/sells-group/classifier-cli/internal/store"
)

type stubEngine struct {
	calls  atomic.Int64
	block  chan struct{} // when non-nil, Classify waits until closed
	err    error
	panics bool
}

func (s *stubEngine) Classify(_ context.Context, company model.CompanyText) (*model.ClassificationResult, error) {
	s.calls.Add(1)
	if s.block != nil {
		<-s.block
	}
	if s.panics {
		panic("scorer index out of range")
	}
	if s.err != nil {
		return nil, s.err
	}
	return &model.ClassificationResult{
		CompanyKey:  company.CompanyKey,
		Sector:      "Healthcare",
		Industry:    "Services",
		SubIndustry: "Clinics",
		Code:        "8011",
		Confidence:  0.8,
		DecidedAt:   time.Now().UTC(),
	}, nil
}

type stubProvider struct {
	mu      sync.Mutex
	texts   map[string]model.CompanyText
	sources map[string][]model.SourceInput
	err     error
}

func (s *stubProvider) CompanyText(_ context.Context, key string) (model.CompanyText, []model.SourceInput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return model.CompanyText{}, nil, s.err
	}
	return s.texts[key], s.sources[key], nil
}

func (s *stubProvider) touch(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	srcs := s.sources[key]
	for i := range srcs {
		srcs[i].ModTime = srcs[i].ModTime.Add(time.Minute)
	}
}

func newTestManager(t *testing.T, engine Engine) (*Manager, *stubProvider, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	provider := &stubProvider{
		texts: map[string]model.CompanyText{
			"acme": {CompanyKey: "acme", Body: "outpatient clinics"},
			"globex": {CompanyKey: "globex", Body: "cloud software"},
		},
		sources: map[string][]model.SourceInput{
			"acme":   {{Name: "about.json", ModTime: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}},
			"globex": {{Name: "home.json", ModTime: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}},
		},
	}
	return NewManager(context.Background(), st, engine, provider, 4), provider, st
}

func waitForTerminal(t *testing.T, m *Manager, key string) Outcome {
	t.Helper()
	var out Outcome
	require.Eventually(t, func() bool {
		var err error
		out, err = m.Status(context.Background(), key)
		require.NoError(t, err)
		return out.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return out
}

func TestManager_RequestRunsJobToReady(t *testing.T) {
	engine := &stubEngine{}
	m, _, _ := newTestManager(t, engine)

	out, err := m.Request(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPreparing, out.Status)

	final := waitForTerminal(t, m, "acme")
	assert.Equal(t, model.StatusReady, final.Status)

	res, found, err := m.Result(context.Background(), "acme")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Clinics", res.Result.SubIndustry)
	assert.Equal(t, int64(1), engine.calls.Load())
}

func TestManager_RepeatRequestUnchangedFingerprintIsCached(t *testing.T) {
	engine := &stubEngine{}
	m, _, _ := newTestManager(t, engine)

	_, err := m.Request(context.Background(), "acme")
	require.NoError(t, err)
	waitForTerminal(t, m, "acme")

	out, err := m.Request(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, out.Status)
	require.NotNil(t, out.Result)
	assert.Equal(t, "Clinics", out.Result.SubIndustry)
	assert.Equal(t, int64(1), engine.calls.Load(), "cached hit must not rescore")
}

func TestManager_FingerprintChangeForcesRecompute(t *testing.T) {
	engine := &stubEngine{}
	m, provider, _ := newTestManager(t, engine)

	_, err := m.Request(context.Background(), "acme")
	require.NoError(t, err)
	waitForTerminal(t, m, "acme")

	provider.touch("acme")

	out, err := m.Request(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPreparing, out.Status)

	waitForTerminal(t, m, "acme")
	assert.Equal(t, int64(2), engine.calls.Load())
}

func TestManager_SameKeyPreparingSchedulesOnce(t *testing.T) {
	engine := &stubEngine{block: make(chan struct{})}
	m, _, _ := newTestManager(t, engine)

	first, err := m.Request(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPreparing, first.Status)

	// Let the worker enter Classify, then request again while in flight.
	require.Eventually(t, func() bool { return engine.calls.Load() == 1 }, 5*time.Second, 5*time.Millisecond)

	second, err := m.Request(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPreparing, second.Status)

	close(engine.block)
	waitForTerminal(t, m, "acme")
	assert.Equal(t, int64(1), engine.calls.Load())
}

func TestManager_DifferentKeysIndependent(t *testing.T) {
	engine := &stubEngine{}
	m, _, _ := newTestManager(t, engine)

	_, err := m.Request(context.Background(), "acme")
	require.NoError(t, err)
	_, err = m.Request(context.Background(), "globex")
	require.NoError(t, err)

	acme := waitForTerminal(t, m, "acme")
	globex := waitForTerminal(t, m, "globex")
	assert.Equal(t, model.StatusReady, acme.Status)
	assert.Equal(t, model.StatusReady, globex.Status)
	assert.Equal(t, int64(2), engine.calls.Load())
}

func TestManager_EngineErrorLandsInErrorState(t *testing.T) {
	engine := &stubEngine{err: eris.New("classify: narrowing pass yielded zero candidates")}
	m, _, _ := newTestManager(t, engine)

	_, err := m.Request(context.Background(), "acme")
	require.NoError(t, err)

	final := waitForTerminal(t, m, "acme")
	assert.Equal(t, model.StatusError, final.Status)
	assert.Contains(t, final.Error, "zero candidates")
}

func TestManager_PanicLandsInErrorState(t *testing.T) {
	engine := &stubEngine{panics: true}
	m, _, _ := newTestManager(t, engine)

	_, err := m.Request(context.Background(), "acme")
	require.NoError(t, err)

	final := waitForTerminal(t, m, "acme")
	assert.Equal(t, model.StatusError, final.Status)
	assert.Contains(t, final.Error, "internal error")
}

func TestManager_ErrorStateRetriesOnNextRequest(t *testing.T) {
	engine := &stubEngine{err: eris.New("boom")}
	m, _, _ := newTestManager(t, engine)

	_, err := m.Request(context.Background(), "acme")
	require.NoError(t, err)
	waitForTerminal(t, m, "acme")

	engine.err = nil
	out, err := m.Request(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPreparing, out.Status)

	final := waitForTerminal(t, m, "acme")
	assert.Equal(t, model.StatusReady, final.Status)
}

func TestManager_ShutdownMidJobStillReachesTerminalState(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	provider := &stubProvider{
		texts:   map[string]model.CompanyText{"acme": {CompanyKey: "acme", Body: "outpatient clinics"}},
		sources: map[string][]model.SourceInput{"acme": {{Name: "about.json", ModTime: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}}},
	}
	engine := &stubEngine{block: make(chan struct{})}
	baseCtx, cancel := context.WithCancel(context.Background())
	m := NewManager(baseCtx, st, engine, provider, 4)

	_, err = m.Request(context.Background(), "acme")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return engine.calls.Load() == 1 }, 5*time.Second, 5*time.Millisecond)

	// Shut down while the job is in flight, then let it complete.
	cancel()
	close(engine.block)
	m.Wait()

	entry, err := st.Get(context.Background(), "acme")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.Status.Terminal(), "row must reach a terminal state, got %q", entry.Status)
}

func TestManager_StatusUnknownKey(t *testing.T) {
	m, _, _ := newTestManager(t, &stubEngine{})

	out, err := m.Status(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotStarted, out.Status)

	_, found, err := m.Result(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestManager_ProviderFailureSurfaces(t *testing.T) {
	m, provider, _ := newTestManager(t, &stubEngine{})
	provider.err = eris.New("data dir missing")

	_, err := m.Request(context.Background(), "acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load company text")
}
