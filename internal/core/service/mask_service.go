package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/guillermoBallester/maskit/internal/core/domain"
	"github.com/guillermoBallester/maskit/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ErrNoStore is returned by persistence operations when no store is configured.
var ErrNoStore = errors.New("no mask store configured")

type toolNameKey struct{}

// WithToolName returns a context carrying the MCP tool name for audit logging.
func WithToolName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, toolNameKey{}, name)
}

func toolNameFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(toolNameKey{}).(string); ok {
		return v
	}
	return ""
}

// ApplyRequest selects a mask and the document to run it on. Exactly one of
// MaskName, Rules or MaskAll is used, in that order of precedence.
type ApplyRequest struct {
	MaskName string
	Rules    []domain.Rule
	MaskAll  bool
	Document domain.Document
	Param    domain.Param
}

type ApplyResult struct {
	RequestID    string          `json:"request_id"`
	Document     domain.Document `json:"document"`
	MaskedFields []string        `json:"masked_fields"`
}

// MaskInfo describes a mask available by name.
type MaskInfo struct {
	Name         string     `json:"name"`
	Source       string     `json:"source"` // "catalog" or "store"
	RuleCount    int        `json:"rule_count,omitempty"`
	MaskAll      bool       `json:"mask_all,omitempty"`
	MaskedFields []string   `json:"masked_fields,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// MaskService orchestrates mask resolution (catalog, store), application
// (domain) and persistence (store).
type MaskService struct {
	engine  *domain.Engine
	catalog map[string]*domain.CompiledMask
	store   port.MaskStore
	auditor port.MaskAuditor
	logger  *slog.Logger
	tracer  trace.Tracer
	inst    port.Instrumentation
	now     func() time.Time
}

func NewMaskService(engine *domain.Engine, catalog map[string]*domain.CompiledMask, store port.MaskStore, auditor port.MaskAuditor, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *MaskService {
	if engine == nil {
		engine = domain.NewEngine(nil)
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if auditor == nil {
		auditor = noopAuditor{}
	}
	return &MaskService{
		engine:  engine,
		catalog: catalog,
		store:   store,
		auditor: auditor,
		logger:  logger,
		tracer:  tracer,
		inst:    inst,
		now:     time.Now,
	}
}

func (s *MaskService) Engine() *domain.Engine { return s.engine }

// Apply resolves the requested mask and runs it against a copy of the document.
func (s *MaskService) Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	requestID := uuid.NewString()
	ctx, span := s.tracer.Start(ctx, "MaskService.Apply",
		trace.WithAttributes(
			attribute.String("maskit.request_id", requestID),
			attribute.String("maskit.mask.name", req.MaskName),
			attribute.Int("maskit.rules", len(req.Rules)),
			attribute.Bool("maskit.mask_all", req.MaskAll),
		),
	)
	defer span.End()

	start := time.Now()
	cm, err := s.resolve(ctx, req)
	var out domain.Document
	if err == nil {
		out, err = cm.Apply(req.Document, req.Param)
	}
	durationMS := time.Since(start).Milliseconds()
	s.inst.RecordApplyDuration(ctx, float64(durationMS))

	var masked []string
	if err == nil {
		masked = domain.MaskedFields(req.Document, out)
	}

	entry := port.AuditEntry{
		RequestID:    requestID,
		Tool:         toolNameFromCtx(ctx),
		Operation:    "apply",
		MaskName:     req.MaskName,
		RuleCount:    len(req.Rules),
		MaskAll:      req.MaskAll,
		MaskedFields: masked,
		DurationMS:   durationMS,
		Err:          err,
	}
	if cm != nil {
		entry.RuleCount = len(cm.Rules())
		entry.MaskAll = cm.MaskAll()
	}
	s.auditor.Record(ctx, entry)

	if err != nil {
		s.logger.WarnContext(ctx, "mask apply failed",
			slog.String("request_id", requestID),
			slog.String("mask", req.MaskName),
			slog.String("error", err.Error()),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.inst.IncrementApplyErrors(ctx)
		return nil, err
	}

	leaves := domain.CountMaskedLeaves(req.Document, out)
	s.inst.IncrementApplyCount(ctx)
	s.inst.AddMaskedFields(ctx, leaves)
	span.SetAttributes(
		attribute.Int("maskit.fields.masked", len(masked)),
		attribute.Int("maskit.leaves.masked", leaves),
	)
	s.logger.DebugContext(ctx, "mask applied",
		slog.String("request_id", requestID),
		slog.String("mask", req.MaskName),
		slog.Int("masked_fields", len(masked)),
		slog.Int64("duration_ms", durationMS),
	)

	return &ApplyResult{RequestID: requestID, Document: out, MaskedFields: masked}, nil
}

func (s *MaskService) resolve(ctx context.Context, req ApplyRequest) (*domain.CompiledMask, error) {
	switch {
	case req.MaskName != "":
		return s.Mask(ctx, req.MaskName)
	case req.Rules != nil:
		return s.engine.Compile(req.Rules)
	case req.MaskAll:
		return s.engine.CompileAll(), nil
	default:
		// No rules means no masking.
		return s.engine.Compile([]domain.Rule{})
	}
}

// Mask looks a compiled mask up by name: the catalog first, then the store.
func (s *MaskService) Mask(ctx context.Context, name string) (*domain.CompiledMask, error) {
	if cm, ok := s.catalog[name]; ok {
		return cm, nil
	}
	if s.store == nil {
		return nil, fmt.Errorf("mask %q: %w", name, domain.ErrNotFound)
	}
	cm, _, err := s.Load(ctx, name)
	return cm, err
}

// Save runs cm against original, records which top-level fields it masked and
// upserts the result under name together with cm's portable form.
func (s *MaskService) Save(ctx context.Context, name string, cm *domain.CompiledMask, original domain.Document, param domain.Param) (*port.MaskRecord, error) {
	if cm == nil {
		return nil, fmt.Errorf("save %q: no compiled mask", name)
	}
	ctx, span := s.tracer.Start(ctx, "MaskService.Save",
		trace.WithAttributes(attribute.String("maskit.mask.name", name)),
	)
	defer span.End()

	rec, err := s.save(ctx, name, cm, original, param)
	s.auditor.Record(ctx, port.AuditEntry{
		Tool:         toolNameFromCtx(ctx),
		Operation:    "save",
		MaskName:     name,
		RuleCount:    len(cm.Rules()),
		MaskAll:      cm.MaskAll(),
		MaskedFields: maskedOf(rec),
		Err:          err,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.logger.InfoContext(ctx, "mask saved",
		slog.String("mask", name),
		slog.Any("masked_fields", rec.MaskedFields),
	)
	return rec, nil
}

func (s *MaskService) save(ctx context.Context, name string, cm *domain.CompiledMask, original domain.Document, param domain.Param) (*port.MaskRecord, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	if name == "" {
		return nil, fmt.Errorf("save: mask name is required")
	}
	serialized, err := domain.Serialize(cm)
	if err != nil {
		return nil, fmt.Errorf("serializing mask %q: %w", name, err)
	}
	masked, err := cm.Apply(original, param)
	if err != nil {
		return nil, fmt.Errorf("applying mask %q: %w", name, err)
	}

	now := s.now().UTC()
	rec := port.MaskRecord{
		Name:           name,
		MaskedFields:   domain.MaskedFields(original, masked),
		Original:       original,
		Param:          param,
		SerializedMask: serialized,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving mask %q: %w", name, err)
	}
	return &rec, nil
}

// SaveNamed saves the mask currently known as maskName under saveAs.
func (s *MaskService) SaveNamed(ctx context.Context, maskName, saveAs string, original domain.Document, param domain.Param) (*port.MaskRecord, error) {
	cm, err := s.Mask(ctx, maskName)
	if err != nil {
		return nil, err
	}
	if saveAs == "" {
		saveAs = maskName
	}
	return s.Save(ctx, saveAs, cm, original, param)
}

// Load fetches a saved mask and rebuilds it against the service's engine.
func (s *MaskService) Load(ctx context.Context, name string) (*domain.CompiledMask, *port.MaskRecord, error) {
	ctx, span := s.tracer.Start(ctx, "MaskService.Load",
		trace.WithAttributes(attribute.String("maskit.mask.name", name)),
	)
	defer span.End()

	if s.store == nil {
		return nil, nil, ErrNoStore
	}
	rec, err := s.store.Get(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, fmt.Errorf("loading mask %q: %w", name, err)
	}
	cm, err := s.engine.Deserialize(rec.SerializedMask)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, fmt.Errorf("rebuilding mask %q: %w", name, err)
	}
	return cm, rec, nil
}

// Describe returns the portable form of a named mask.
func (s *MaskService) Describe(ctx context.Context, name string) (string, error) {
	cm, err := s.Mask(ctx, name)
	if err != nil {
		return "", err
	}
	return domain.Serialize(cm)
}

// List returns catalog masks followed by stored masks, each sorted by name.
// A stored mask that shadows a catalog name is listed once, as catalog.
func (s *MaskService) List(ctx context.Context) ([]MaskInfo, error) {
	infos := make([]MaskInfo, 0, len(s.catalog))
	for name, cm := range s.catalog {
		infos = append(infos, MaskInfo{Name: name, Source: "catalog", RuleCount: len(cm.Rules()), MaskAll: cm.MaskAll()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	if s.store == nil {
		return infos, nil
	}
	saved, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing saved masks: %w", err)
	}
	for _, sm := range saved {
		if _, shadowed := s.catalog[sm.Name]; shadowed {
			continue
		}
		updated := sm.UpdatedAt
		infos = append(infos, MaskInfo{Name: sm.Name, Source: "store", MaskedFields: sm.MaskedFields, UpdatedAt: &updated})
	}
	return infos, nil
}

// Delete removes a saved mask.
func (s *MaskService) Delete(ctx context.Context, name string) error {
	if s.store == nil {
		return ErrNoStore
	}
	if err := s.store.Delete(ctx, name); err != nil {
		return fmt.Errorf("deleting mask %q: %w", name, err)
	}
	s.logger.InfoContext(ctx, "mask deleted", slog.String("mask", name))
	return nil
}

// Log writes doc as a structured log record.
func (s *MaskService) Log(ctx context.Context, msg string, doc domain.Document) {
	s.logger.LogAttrs(ctx, slog.LevelInfo, msg, slog.Any("document", doc))
}

func maskedOf(rec *port.MaskRecord) []string {
	if rec == nil {
		return nil
	}
	return rec.MaskedFields
}

type noopAuditor struct{}

func (noopAuditor) Record(context.Context, port.AuditEntry) {}
func (noopAuditor) Close() error                            { return nil }
