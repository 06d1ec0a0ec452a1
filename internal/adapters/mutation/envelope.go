// Package mutation is the system boundary of the lifecycle engine. Envelope
// turns every service outcome into the uniform success / error-list response,
// and Handler carries envelopes over HTTP.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"pepplus/internal/core"
	"pepplus/internal/permission"
	"pepplus/pkg/domain"
)

// Operation names a mutation request kind.
type Operation string

// Supported operations.
const (
	OpCreate     Operation = "create"
	OpUpdate     Operation = "update"
	OpDelete     Operation = "delete"
	OpBulkCreate Operation = "bulk_create"
	OpGenerate   Operation = "generate"
)

// Request is one mutation as received from a caller. For bulk_create, ID is
// the session and Families the attendance records; for generate, Attributes
// carries distrito_id, periodo and ano.
type Request struct {
	Operation  Operation           `json:"operation" yaml:"operation"`
	EntityType string              `json:"entity_type" yaml:"entity_type"`
	ID         string              `json:"id,omitempty" yaml:"id,omitempty"`
	Attributes domain.Attributes   `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Families   []domain.Attributes `json:"families,omitempty" yaml:"families,omitempty"`
}

// ErrorEntry is one element of a failure response.
type ErrorEntry struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// Response is the uniform mutation result. An empty Errors list means success.
type Response struct {
	UUID   string       `json:"uuid,omitempty"`
	UUIDs  []string     `json:"uuids,omitempty"`
	Errors []ErrorEntry `json:"errors"`
}

// OK reports whether the mutation succeeded.
func (r Response) OK() bool { return len(r.Errors) == 0 }

// Service is the subset of core.Service the envelope drives.
type Service interface {
	Create(ctx context.Context, entity domain.EntityType, attrs domain.Attributes, p permission.Principal) (string, error)
	Update(ctx context.Context, entity domain.EntityType, id string, attrs domain.Attributes, p permission.Principal) error
	Delete(ctx context.Context, entity domain.EntityType, id string, p permission.Principal) error
	BulkCreateAttendance(ctx context.Context, sessionID string, families []domain.Attributes, p permission.Principal) ([]string, error)
	GenerateDistrictReport(ctx context.Context, districtID string, period domain.ReportPeriod, year int, p permission.Principal) (string, error)
}

// ErrUnknownOperation is reported for operations outside the supported set.
var ErrUnknownOperation = errors.New("unknown mutation operation")

// Envelope executes requests against a Service.
type Envelope struct {
	svc    Service
	logger core.Logger
}

// NewEnvelope wraps svc. A nil logger discards.
func NewEnvelope(svc Service, logger core.Logger) *Envelope {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Envelope{svc: svc, logger: logger}
}

var generateSchema = domain.Schema{
	Entity: domain.EntityDistrictReport,
	Rules: []domain.Rule{
		domain.Required("distrito_id", "is required"),
		domain.Required("periodo", "is required"),
		domain.OneOf("periodo", domain.ReportPeriods),
		domain.Required("ano", "is required"),
	},
}

// Execute runs req on behalf of p. It never panics and never returns a raw
// error: every failure, including a recovered panic, becomes Response.Errors.
func (e *Envelope) Execute(ctx context.Context, p permission.Principal, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("mutation panicked", "operation", string(req.Operation), "entity", req.EntityType, "panic", fmt.Sprint(r))
			resp = Response{Errors: []ErrorEntry{{Message: "internal error", Detail: fmt.Sprint(r)}}}
		}
	}()

	resp.Errors = []ErrorEntry{}
	if err := e.dispatch(ctx, p, req, &resp); err != nil {
		resp = Response{Errors: Entries(err)}
	}
	return resp
}

func (e *Envelope) dispatch(ctx context.Context, p permission.Principal, req Request, resp *Response) error {
	entity, ok := domain.ParseEntityType(req.EntityType)
	if !ok {
		return fmt.Errorf("%w: %q", core.ErrUnknownEntity, req.EntityType)
	}
	id := strings.TrimSpace(req.ID)
	switch req.Operation {
	case OpCreate:
		uuid, err := e.svc.Create(ctx, entity, req.Attributes, p)
		resp.UUID = uuid
		return err
	case OpUpdate:
		if id == "" {
			return missingID()
		}
		return e.svc.Update(ctx, entity, id, req.Attributes, p)
	case OpDelete:
		if id == "" {
			return missingID()
		}
		return e.svc.Delete(ctx, entity, id, p)
	case OpBulkCreate:
		if entity != domain.EntityAttendance {
			return fmt.Errorf("%w: bulk_create on %s", ErrUnknownOperation, entity)
		}
		if id == "" {
			return missingID()
		}
		uuids, err := e.svc.BulkCreateAttendance(ctx, id, req.Families, p)
		resp.UUIDs = uuids
		return err
	case OpGenerate:
		if entity != domain.EntityDistrictReport {
			return fmt.Errorf("%w: generate on %s", ErrUnknownOperation, entity)
		}
		if violations := generateSchema.Validate(req.Attributes); len(violations) > 0 {
			return domain.NewValidationError(violations...)
		}
		district, _ := req.Attributes.String("distrito_id")
		period, _ := req.Attributes.String("periodo")
		year, _ := req.Attributes.Number("ano")
		uuid, err := e.svc.GenerateDistrictReport(ctx, district, domain.ReportPeriod(period), int(year), p)
		resp.UUID = uuid
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOperation, req.Operation)
	}
}

func missingID() error {
	return domain.NewValidationError(domain.FieldError{Field: "id", Message: "is required"})
}

// Entries maps err onto response entries: one per violation for validation
// errors, and a single entry carrying the error text otherwise.
func Entries(err error) []ErrorEntry {
	if err == nil {
		return []ErrorEntry{}
	}
	var verr domain.ValidationError
	if errors.As(err, &verr) && len(verr.Errors) > 0 {
		out := make([]ErrorEntry, 0, len(verr.Errors))
		for _, fe := range verr.Errors {
			out = append(out, ErrorEntry{Message: fe.Message, Detail: fe.Field})
		}
		return out
	}
	return []ErrorEntry{{Message: err.Error(), Detail: err.Error()}}
}
