package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/guillermoBallester/maskit/internal/core/domain"
	"github.com/guillermoBallester/maskit/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- mock MaskStore ---

type mockStore struct {
	mu      sync.Mutex
	records map[string]port.MaskRecord
	saveErr error
}

func newMockStore() *mockStore {
	return &mockStore{records: make(map[string]port.MaskRecord)}
}

func (m *mockStore) Save(_ context.Context, rec port.MaskRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if prev, ok := m.records[rec.Name]; ok {
		rec.CreatedAt = prev.CreatedAt
	}
	m.records[rec.Name] = rec
	return nil
}

func (m *mockStore) Get(_ context.Context, name string) (*port.MaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (m *mockStore) List(context.Context) ([]port.MaskSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []port.MaskSummary
	for _, rec := range m.records {
		out = append(out, port.MaskSummary{Name: rec.Name, MaskedFields: rec.MaskedFields, UpdatedAt: rec.UpdatedAt})
	}
	return out, nil
}

func (m *mockStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[name]; !ok {
		return domain.ErrNotFound
	}
	delete(m.records, name)
	return nil
}

// --- recording auditor / instrumentation ---

type recordingAuditor struct {
	mu      sync.Mutex
	entries []port.AuditEntry
}

func (a *recordingAuditor) Record(_ context.Context, e port.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

func (a *recordingAuditor) Close() error { return nil }

type countingInst struct {
	port.NoopInstrumentation
	applies, errors, leaves int
}

func (c *countingInst) IncrementApplyCount(context.Context)      { c.applies++ }
func (c *countingInst) IncrementApplyErrors(context.Context)     { c.errors++ }
func (c *countingInst) AddMaskedFields(_ context.Context, n int) { c.leaves += n }

func user() domain.Document {
	return domain.Document{
		"name":  "John Doe",
		"email": "john@example.com",
		"phone": "123-456-7890",
		"role":  "user",
	}
}

func catalog(t *testing.T, e *domain.Engine) map[string]*domain.CompiledMask {
	t.Helper()
	cm, err := e.Compile([]domain.Rule{
		{Key: "name", Mask: domain.FixedLength(4)},
		{Key: "email", Mask: domain.HelperRef(domain.HelperEmail), Ignore: domain.ParamIn{Param: "role", Values: []string{"admin"}}},
	})
	require.NoError(t, err)
	return map[string]*domain.CompiledMask{"user": cm, "everything": e.CompileAll()}
}

// --- tests ---

func TestMaskService_ApplyNamed(t *testing.T) {
	e := domain.NewEngine(nil)
	aud := &recordingAuditor{}
	inst := &countingInst{}
	svc := NewMaskService(e, catalog(t, e), nil, aud, testLogger(), nil, inst)

	ctx := WithToolName(context.Background(), "apply_mask")
	res, err := svc.Apply(ctx, ApplyRequest{MaskName: "user", Document: user(), Param: domain.Param{"role": "user"}})
	require.NoError(t, err)

	assert.Equal(t, "****", res.Document["name"])
	assert.Equal(t, "****@example.com", res.Document["email"])
	assert.Equal(t, []string{"email", "name"}, res.MaskedFields)
	assert.NotEmpty(t, res.RequestID)

	require.Len(t, aud.entries, 1)
	assert.Equal(t, "apply_mask", aud.entries[0].Tool)
	assert.Equal(t, "user", aud.entries[0].MaskName)
	assert.Equal(t, 2, aud.entries[0].RuleCount)
	assert.Equal(t, res.RequestID, aud.entries[0].RequestID)
	assert.NoError(t, aud.entries[0].Err)

	assert.Equal(t, 1, inst.applies)
	assert.Equal(t, 2, inst.leaves)
}

func TestMaskService_ApplyInlineAndMaskAll(t *testing.T) {
	svc := NewMaskService(nil, nil, nil, nil, testLogger(), nil, nil)

	res, err := svc.Apply(context.Background(), ApplyRequest{
		Rules:    []domain.Rule{{Key: "phone", Mask: domain.HelperRef(domain.HelperPhone)}},
		Document: user(),
	})
	require.NoError(t, err)
	assert.Equal(t, "******7890", res.Document["phone"])

	res, err = svc.Apply(context.Background(), ApplyRequest{MaskAll: true, Document: domain.Document{"a": "xy"}})
	require.NoError(t, err)
	assert.Equal(t, domain.Document{"a": "**"}, res.Document)

	res, err = svc.Apply(context.Background(), ApplyRequest{Document: user()})
	require.NoError(t, err)
	assert.Equal(t, user(), res.Document)
	assert.Empty(t, res.MaskedFields)
}

func TestMaskService_ApplyErrors(t *testing.T) {
	aud := &recordingAuditor{}
	inst := &countingInst{}
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	svc := NewMaskService(nil, nil, nil, aud, testLogger(), tp.Tracer("test"), inst)

	_, err := svc.Apply(context.Background(), ApplyRequest{MaskName: "missing", Document: user()})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Apply(context.Background(), ApplyRequest{
		Rules: []domain.Rule{
			{Key: "name", Mask: domain.FixedLength(1)},
			{Key: "name", Mask: domain.FixedLength(2)},
		},
		Document: user(),
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateRuleKey)

	assert.Equal(t, 2, inst.errors)
	require.Len(t, aud.entries, 2)
	assert.Error(t, aud.entries[1].Err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "MaskService.Apply", spans[0].Name)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
}

func TestMaskService_SaveAndLoad(t *testing.T) {
	e := domain.NewEngine(nil)
	store := newMockStore()
	svc := NewMaskService(e, catalog(t, e), store, nil, testLogger(), nil, nil)
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	ctx := context.Background()
	rec, err := svc.SaveNamed(ctx, "user", "userMask", user(), domain.Param{"role": "user"})
	require.NoError(t, err)
	assert.Equal(t, "userMask", rec.Name)
	assert.Equal(t, []string{"email", "name"}, rec.MaskedFields)
	assert.Equal(t, fixed, rec.CreatedAt)
	assert.Contains(t, rec.SerializedMask, `"helper"`)

	// Upsert keeps CreatedAt.
	svc.now = func() time.Time { return fixed.Add(time.Hour) }
	_, err = svc.SaveNamed(ctx, "user", "userMask", user(), domain.Param{"role": "admin"})
	require.NoError(t, err)
	stored, err := store.Get(ctx, "userMask")
	require.NoError(t, err)
	assert.Equal(t, fixed, stored.CreatedAt)
	assert.Equal(t, fixed.Add(time.Hour), stored.UpdatedAt)
	assert.Equal(t, []string{"name"}, stored.MaskedFields)

	cm, loaded, err := svc.Load(ctx, "userMask")
	require.NoError(t, err)
	assert.Equal(t, "userMask", loaded.Name)

	want, err := svc.catalog["user"].Apply(user(), nil)
	require.NoError(t, err)
	got, err := cm.Apply(user(), nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Saved masks are resolvable by name.
	res, err := svc.Apply(ctx, ApplyRequest{MaskName: "userMask", Document: user()})
	require.NoError(t, err)
	assert.Equal(t, "****", res.Document["name"])
}

func TestMaskService_SaveErrors(t *testing.T) {
	e := domain.NewEngine(nil)
	ctx := context.Background()

	noStore := NewMaskService(e, catalog(t, e), nil, nil, testLogger(), nil, nil)
	_, err := noStore.SaveNamed(ctx, "user", "", user(), nil)
	assert.ErrorIs(t, err, ErrNoStore)

	store := newMockStore()
	svc := NewMaskService(e, nil, store, nil, testLogger(), nil, nil)

	inline, err := e.Compile([]domain.Rule{{Key: "name", Mask: domain.Func(func(v any, _ *domain.MaskConfig, _ domain.Param) (any, error) { return v, nil })}})
	require.NoError(t, err)
	_, err = svc.Save(ctx, "inline", inline, user(), nil)
	assert.ErrorIs(t, err, domain.ErrNotPortable)

	store.saveErr = fmt.Errorf("disk full")
	_, err = svc.Save(ctx, "all", e.CompileAll(), user(), nil)
	assert.ErrorContains(t, err, "disk full")

	_, err = svc.Save(ctx, "nil", nil, user(), nil)
	assert.Error(t, err)

	_, _, err = svc.Load(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMaskService_ListDescribeDelete(t *testing.T) {
	e := domain.NewEngine(nil)
	store := newMockStore()
	svc := NewMaskService(e, catalog(t, e), store, nil, testLogger(), nil, nil)
	ctx := context.Background()

	_, err := svc.Save(ctx, "saved", e.CompileAll(), user(), nil)
	require.NoError(t, err)
	_, err = svc.Save(ctx, "user", e.CompileAll(), user(), nil)
	require.NoError(t, err)

	infos, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "everything", infos[0].Name)
	assert.True(t, infos[0].MaskAll)
	assert.Equal(t, "user", infos[1].Name)
	assert.Equal(t, "catalog", infos[1].Source)
	assert.Equal(t, "saved", infos[2].Name)
	assert.Equal(t, "store", infos[2].Source)

	text, err := svc.Describe(ctx, "user")
	require.NoError(t, err)
	var pm domain.PortableMask
	require.NoError(t, json.Unmarshal([]byte(text), &pm))
	assert.Len(t, pm.Rules, 2)

	require.NoError(t, svc.Delete(ctx, "saved"))
	assert.ErrorIs(t, svc.Delete(ctx, "saved"), domain.ErrNotFound)
}

func TestMaskService_Log(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	svc := NewMaskService(nil, nil, nil, nil, logger, nil, nil)

	svc.Log(context.Background(), "masked user", domain.Document{"name": "****", "tags": []any{"a"}})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "masked user", line["msg"])
	assert.Equal(t, map[string]any{"name": "****", "tags": []any{"a"}}, line["document"])
}
