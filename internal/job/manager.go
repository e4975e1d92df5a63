package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/classifier-cli/internal/model"
	"github.com/sells-group/classifier-cli/internal/store"
)

// Engine produces a classification decision for one company.
type Engine interface {
	Classify(ctx context.Context, company model.CompanyText) (*model.ClassificationResult, error)
}

// Provider is the extraction collaborator: it supplies the aggregated company
// text and the source inventory that feeds the cache fingerprint.
type Provider interface {
	CompanyText(ctx context.Context, companyKey string) (model.CompanyText, []model.SourceInput, error)
}

// Outcome is what a prepare request or status poll reports.
type Outcome struct {
	Status model.JobStatus             `json:"status"`
	Result *model.ClassificationResult `json:"result,omitempty"`
	Error  string                      `json:"error,omitempty"`
}

// Manager enforces the per-key job state machine: not_started → preparing →
// {ready | error}, with at most one in-flight job per company key and
// fingerprint-gated cache reuse. Jobs for different keys are independent.
type Manager struct {
	store    store.Store
	engine   Engine
	provider Provider

	// baseCtx outlives individual requests so background work is not
	// cancelled when the HTTP request that triggered it returns.
	baseCtx context.Context
	group   *errgroup.Group

	mu       sync.Mutex
	inflight map[string]bool
}

// NewManager builds a manager whose background jobs run until baseCtx is
// cancelled, with at most maxConcurrent jobs classifying at once.
func NewManager(baseCtx context.Context, st store.Store, engine Engine, provider Provider, maxConcurrent int) *Manager {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	g := new(errgroup.Group)
	g.SetLimit(maxConcurrent)
	return &Manager{
		store:    st,
		engine:   engine,
		provider: provider,
		baseCtx:  baseCtx,
		group:    g,
		inflight: make(map[string]bool),
	}
}

// Request implements the prepare operation. A ready entry with a matching
// fingerprint is returned synchronously without recomputation; a key already
// preparing is a no-op; anything else overwrites the row with a fresh
// preparing entry and schedules the work in the background.
func (m *Manager) Request(ctx context.Context, companyKey string) (Outcome, error) {
	company, sources, err := m.provider.CompanyText(ctx, companyKey)
	if err != nil {
		return Outcome{}, eris.Wrapf(err, "job: load company text %s", companyKey)
	}
	fp := Fingerprint(sources)

	entry, err := m.store.Get(ctx, companyKey)
	if err != nil {
		return Outcome{}, err
	}

	if entry != nil && entry.Status == model.StatusReady && entry.SourcesFingerprint == fp {
		result, err := decodeResult(entry.ResultJSON)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Status: model.StatusReady, Result: result}, nil
	}

	m.mu.Lock()
	if m.inflight[companyKey] {
		m.mu.Unlock()
		return Outcome{Status: model.StatusPreparing}, nil
	}
	m.inflight[companyKey] = true
	m.mu.Unlock()

	fresh := model.CacheEntry{
		CompanyKey:         companyKey,
		JobID:              uuid.New().String(),
		SourcesFingerprint: fp,
		Status:             model.StatusPreparing,
	}
	if entry != nil {
		fresh.CreatedAt = entry.CreatedAt
	}
	if err := m.store.Upsert(ctx, fresh); err != nil {
		m.release(companyKey)
		return Outcome{}, err
	}

	zap.L().Info("classification job scheduled",
		zap.String("company", companyKey),
		zap.String("job_id", fresh.JobID),
		zap.String("fingerprint", fp[:12]))

	// Dispatch from a separate goroutine so a full worker pool delays the
	// job, not this request.
	go m.group.Go(func() error {
		m.run(fresh, company)
		return nil
	})

	return Outcome{Status: model.StatusPreparing}, nil
}

// Status is a non-blocking read of the current state for pollers. An unknown
// key reports not_started.
func (m *Manager) Status(ctx context.Context, companyKey string) (Outcome, error) {
	entry, err := m.store.Get(ctx, companyKey)
	if err != nil {
		return Outcome{}, err
	}
	if entry == nil {
		return Outcome{Status: model.StatusNotStarted}, nil
	}
	return Outcome{Status: entry.Status, Error: entry.ErrorMessage}, nil
}

// Result returns the cached classification when ready. The boolean follows
// the entry's existence: (zero, false, nil) means the key was never requested.
func (m *Manager) Result(ctx context.Context, companyKey string) (Outcome, bool, error) {
	entry, err := m.store.Get(ctx, companyKey)
	if err != nil {
		return Outcome{}, false, err
	}
	if entry == nil {
		return Outcome{}, false, nil
	}

	out := Outcome{Status: entry.Status, Error: entry.ErrorMessage}
	if entry.Status == model.StatusReady {
		if out.Result, err = decodeResult(entry.ResultJSON); err != nil {
			return Outcome{}, false, err
		}
	}
	return out, true, nil
}

// Wait blocks until all scheduled background jobs have finished. Used by the
// one-shot CLI path and graceful shutdown.
func (m *Manager) Wait() {
	m.group.Wait() //nolint:errcheck // workers report failures via the store
}

// run executes one background unit of work. Every failure mode, panics
// included, lands the row in a terminal error state so pollers never see an
// eternal preparing.
func (m *Manager) run(entry model.CacheEntry, company model.CompanyText) {
	defer m.release(entry.CompanyKey)
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("classification job panicked",
				zap.String("company", entry.CompanyKey),
				zap.Any("panic", r))
			m.finish(entry, "", fmt.Sprintf("internal error: %v", r))
		}
	}()

	result, err := m.engine.Classify(m.baseCtx, company)
	if err != nil {
		m.finish(entry, "", err.Error())
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		m.finish(entry, "", "encode result: "+err.Error())
		return
	}
	m.finish(entry, string(payload), "")
}

// finish writes the terminal row for a job: ready with a result, or error
// with a short diagnostic. The write runs on an uncancellable context so a
// shutdown that interrupts the job cannot strand the row in preparing.
func (m *Manager) finish(entry model.CacheEntry, resultJSON, errMsg string) {
	entry.ResultJSON = resultJSON
	entry.ErrorMessage = errMsg
	if errMsg != "" {
		entry.Status = model.StatusError
	} else {
		entry.Status = model.StatusReady
	}

	if err := m.store.Upsert(context.WithoutCancel(m.baseCtx), entry); err != nil {
		zap.L().Error("persist job outcome failed",
			zap.String("company", entry.CompanyKey),
			zap.Error(err))
		return
	}
	zap.L().Info("classification job finished",
		zap.String("company", entry.CompanyKey),
		zap.String("status", string(entry.Status)))
}

func (m *Manager) release(companyKey string) {
	m.mu.Lock()
	delete(m.inflight, companyKey)
	m.mu.Unlock()
}

func decodeResult(raw string) (*model.ClassificationResult, error) {
	var result model.ClassificationResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, eris.Wrap(err, "job: decode cached result")
	}
	return &result, nil
}
