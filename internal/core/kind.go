package core

import (
	"context"
	"time"

	"pepplus/internal/permission"
	"pepplus/pkg/domain"
)

// Kind configures the shared create/update/delete orchestration for one
// entity type.
type Kind[T any, PT domain.RecordPtr[T]] struct {
	Schema domain.Schema
	// Mutable lists the attributes Update may change. Other keys in an update
	// request are ignored.
	Mutable []string
	// Defaults fill absent or null attributes on create.
	Defaults Attributes
	// Stamp sets service-managed attributes of a new record.
	Stamp func(rec PT, now time.Time)
	// BeforeUpdate effects adjust the record after the patch is applied and
	// before it is written.
	BeforeUpdate []Effect[PT]
	// AfterCreate effects run once the new row is inserted.
	AfterCreate []Effect[PT]
}

// kindHandler erases the type parameters so the service can hold every Kind in one map.
type kindHandler interface {
	entity() EntityType
	defaults() Attributes
	create(ctx context.Context, s *Service, attrs Attributes, p Principal) (string, error)
	insert(tx Transaction, s *Service, proposed Attributes, p Principal) (string, error)
	update(ctx context.Context, s *Service, id string, attrs Attributes, p Principal) error
	retire(ctx context.Context, s *Service, id string, p Principal) error
}

func (k *Kind[T, PT]) entity() EntityType { return k.Schema.Entity }

func (k *Kind[T, PT]) defaults() Attributes { return k.Defaults }

// create validates, then authorizes, then writes. Nothing touches storage
// until both checks pass.
func (k *Kind[T, PT]) create(ctx context.Context, s *Service, attrs Attributes, p Principal) (string, error) {
	proposed := attrs.WithoutIdentity().WithDefaults(k.Defaults)
	if violations := k.Schema.Validate(proposed); len(violations) > 0 {
		return "", domain.NewValidationError(violations...)
	}
	if err := s.authorize(p, k.entity(), permission.OpCreate); err != nil {
		return "", err
	}
	var id string
	err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		id, err = k.insert(tx, s, proposed, p)
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// insert writes an already validated attribute set and runs the create effects.
func (k *Kind[T, PT]) insert(tx Transaction, s *Service, proposed Attributes, p Principal) (string, error) {
	var rec T
	ptr := PT(&rec)
	if err := domain.ApplyAttributes(ptr, proposed); err != nil {
		return "", err
	}
	if k.Stamp != nil {
		k.Stamp(ptr, tx.Now())
	}
	ptr.Versioning().AuditUserID = p.AuditID()
	if err := tx.Insert(ptr); err != nil {
		return "", err
	}
	if err := runEffects(k.AfterCreate, s.effectContext(tx, proposed, p), ptr); err != nil {
		return "", err
	}
	return ptr.Versioning().UUID, nil
}

// update fetches the current row and authorizes before validating the merged
// attribute set. Only mutable attributes present in attrs are applied.
func (k *Kind[T, PT]) update(ctx context.Context, s *Service, id string, attrs Attributes, p Principal) error {
	return s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var rec T
		ptr := PT(&rec)
		if err := tx.CurrentByExternalID(k.entity(), id, ptr); err != nil {
			return err
		}
		if err := s.authorize(p, k.entity(), permission.OpUpdate); err != nil {
			return err
		}
		existing, err := domain.AttributesOf(ptr)
		if err != nil {
			return err
		}
		patch := attrs.WithoutIdentity().Only(k.Mutable)
		if violations := k.Schema.Validate(existing.Merge(patch)); len(violations) > 0 {
			return domain.NewValidationError(violations...)
		}
		if err := domain.ApplyAttributes(ptr, patch); err != nil {
			return err
		}
		if err := runEffects(k.BeforeUpdate, s.effectContext(tx, attrs, p), ptr); err != nil {
			return err
		}
		return tx.MutateInPlace(ptr, p.AuditID())
	})
}

// retire closes the validity window of the current row.
func (k *Kind[T, PT]) retire(ctx context.Context, s *Service, id string, p Principal) error {
	return s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var rec T
		ptr := PT(&rec)
		if err := tx.CurrentByExternalID(k.entity(), id, ptr); err != nil {
			return err
		}
		if err := s.authorize(p, k.entity(), permission.OpDelete); err != nil {
			return err
		}
		return tx.CloseWindow(ptr, p.AuditID(), tx.Now())
	})
}
