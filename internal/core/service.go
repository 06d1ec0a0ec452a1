package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pepplus/internal/infra/persistence/memory"
	"pepplus/internal/permission"
	"pepplus/pkg/domain"
)

// ErrUnknownEntity is returned for entity types without a registered Kind.
var ErrUnknownEntity = errors.New("unknown entity type")

// Service exposes the permission-gated, transactional lifecycle operations of
// every registered entity type.
type Service struct {
	store   PersistentStore
	gate    *permission.Gate
	kinds   map[EntityType]kindHandler
	clock   Clock
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		kinds:   make(map[EntityType]kindHandler),
		clock:   systemClock{},
		logger:  discardLogger(),
		metrics: noopMetrics{},
		tracer:  noopTracer{},
	}
	for _, kind := range defaultKinds() {
		s.kinds[kind.entity()] = kind
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.gate == nil {
		s.gate = permission.NewGate(nil)
	}
	if cs, ok := store.(clockSetter); ok {
		cs.SetNowFunc(s.clock.Now)
	}
	return s
}

// clockSetter is implemented by stores whose validity windows follow an
// injectable clock. The service clock drives them so stamped dates and
// validity_from agree.
type clockSetter interface {
	SetNowFunc(func() time.Time)
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

// Gate returns the permission gate mutations are checked against.
func (s *Service) Gate() *permission.Gate { return s.gate }

// Create validates attrs, authorizes p and persists a new current row of
// entity, returning its external identifier.
func (s *Service) Create(ctx context.Context, entity EntityType, attrs Attributes, p Principal) (string, error) {
	var id string
	err := s.run(ctx, OpCreate, entity, func(ctx context.Context, kind kindHandler) error {
		var err error
		id, err = kind.create(ctx, s, attrs, p)
		return err
	})
	return id, err
}

// Update applies the mutable attributes present in attrs to the current row of id.
func (s *Service) Update(ctx context.Context, entity EntityType, id string, attrs Attributes, p Principal) error {
	return s.run(ctx, OpUpdate, entity, func(ctx context.Context, kind kindHandler) error {
		return kind.update(ctx, s, id, attrs, p)
	})
}

// Delete retires the current row of id. The row stays queryable through History.
func (s *Service) Delete(ctx context.Context, entity EntityType, id string, p Principal) error {
	return s.run(ctx, OpDelete, entity, func(ctx context.Context, kind kindHandler) error {
		return kind.retire(ctx, s, id, p)
	})
}

// BulkCreateAttendance records the attendance of several families at one
// session in a single transaction. The create permission is checked once up
// front; the first invalid or conflicting family aborts the whole batch.
func (s *Service) BulkCreateAttendance(ctx context.Context, sessionID string, families []Attributes, p Principal) ([]string, error) {
	var ids []string
	err := s.run(ctx, OpBulkCreate, EntityAttendance, func(ctx context.Context, kind kindHandler) error {
		if err := s.authorize(p, EntityAttendance, permission.OpCreate); err != nil {
			return err
		}
		if len(families) == 0 {
			return domain.NewValidationError(domain.FieldError{Field: "familias", Message: "at least one family is required"})
		}
		schema, _ := domain.SchemaFor(EntityAttendance)
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			ids = ids[:0]
			for i, family := range families {
				proposed := family.WithoutIdentity().
					Merge(Attributes{"sessao_id": sessionID}).
					WithDefaults(kind.defaults())
				if violations := schema.Validate(proposed); len(violations) > 0 {
					for j := range violations {
						violations[j].Field = fmt.Sprintf("familias[%d].%s", i, violations[j].Field)
					}
					return domain.NewValidationError(violations...)
				}
				id, err := kind.insert(tx, s, proposed, p)
				if err != nil {
					return fmt.Errorf("familias[%d]: %w", i, err)
				}
				ids = append(ids, id)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// GenerateDistrictReport is reserved for aggregating a district report from
// session and attendance data. It authorizes the caller and then reports
// domain.ErrNotImplemented without touching storage.
func (s *Service) GenerateDistrictReport(ctx context.Context, districtID string, period domain.ReportPeriod, year int, p Principal) (string, error) {
	err := s.run(ctx, OpGenerate, EntityDistrictReport, func(context.Context, kindHandler) error {
		if err := s.authorize(p, EntityDistrictReport, permission.OpGenerate); err != nil {
			return err
		}
		return fmt.Errorf("generate %s %s/%d: %w", districtID, period, year, domain.ErrNotImplemented)
	})
	return "", err
}

// ListCurrent is the read-gateway passthrough returning open rows of entity.
func (s *Service) ListCurrent(ctx context.Context, entity EntityType) ([]domain.StoredRow, error) {
	if _, ok := s.kinds[entity]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	return s.store.ListCurrent(ctx, entity)
}

// History returns every stored row of id, retired rows included.
func (s *Service) History(ctx context.Context, entity EntityType, id string) ([]domain.StoredRow, error) {
	if _, ok := s.kinds[entity]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	return s.store.History(ctx, entity, id)
}

func (s *Service) authorize(p Principal, entity EntityType, op permission.Operation) error {
	code, err := permission.CodeFor(entity, op)
	if err != nil {
		return err
	}
	if !s.gate.Authorize(p, code) {
		return domain.PermissionError{Entity: entity, Operation: string(op)}
	}
	return nil
}

func (s *Service) effectContext(tx Transaction, request Attributes, p Principal) EffectContext {
	return EffectContext{
		Tx:      tx,
		Request: request,
		Actor:   p.AuditID(),
		Today:   domain.NewDate(tx.Now()),
	}
}

// run resolves the Kind and wraps fn with tracing, metrics and logging.
func (s *Service) run(ctx context.Context, op string, entity EntityType, fn func(context.Context, kindHandler) error) (err error) {
	name := op + "." + string(entity)
	ctx, span := s.tracer.Start(ctx, name)
	started := time.Now()
	defer func() {
		span.End(err)
		s.metrics.Observe(ctx, name, err == nil, time.Since(started))
		s.logOutcome(op, entity, err)
	}()

	kind, ok := s.kinds[entity]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	return fn(ctx, kind)
}

func (s *Service) logOutcome(op string, entity EntityType, err error) {
	var (
		validation domain.ValidationError
		denied     domain.PermissionError
	)
	switch {
	case err == nil:
		s.logger.Info("mutation committed", "operation", op, "entity", string(entity))
	case errors.As(err, &validation):
		s.logger.Debug("mutation rejected", "operation", op, "entity", string(entity), "violations", len(validation.Errors))
	case errors.As(err, &denied), domain.IsNotFound(err), errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrNotImplemented):
		s.logger.Warn("mutation refused", "operation", op, "entity", string(entity), "error", err.Error())
	default:
		s.logger.Error("mutation failed", "operation", op, "entity", string(entity), "error", err.Error())
	}
}
