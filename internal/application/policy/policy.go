// Package policy decide si un actor puede ejecutar una operación destructiva.
// Los casos de uso llaman a Check explícitamente antes de escribir; no hay intercepción
// a nivel de driver de almacenamiento.
package policy

import (
	"context"
	"fmt"
	"slices"

	"github.com/jhoicas/inventario-tags/internal/domain"
	"github.com/jhoicas/inventario-tags/internal/domain/entity"
)

// Operation operación sujeta a política.
type Operation string

const (
	OpCancelTag Operation = "cancel_tag"
	OpReconcile Operation = "reconcile"
)

// Checker verifica una operación antes de ejecutarla.
type Checker interface {
	Check(ctx context.Context, op Operation, actor entity.Actor) error
}

// CheckFunc adapta una función a Checker.
type CheckFunc func(ctx context.Context, op Operation, actor entity.Actor) error

func (f CheckFunc) Check(ctx context.Context, op Operation, actor entity.Actor) error {
	return f(ctx, op, actor)
}

// AllowAll permite todo (herramientas internas y pruebas).
var AllowAll = CheckFunc(func(context.Context, Operation, entity.Actor) error { return nil })

// RolePolicy permite cada operación solo a los roles listados.
type RolePolicy struct {
	rules map[Operation][]string
}

// DefaultRules reglas por defecto: cancelar admin/bodeguero, conciliar solo admin (o el proceso batch).
func DefaultRules() map[Operation][]string {
	return map[Operation][]string{
		OpCancelTag: {entity.RoleAdmin, entity.RoleBodeguero},
		OpReconcile: {entity.RoleAdmin, entity.RoleSystem},
	}
}

// NewRolePolicy construye la política; rules nil usa DefaultRules.
func NewRolePolicy(rules map[Operation][]string) *RolePolicy {
	if rules == nil {
		rules = DefaultRules()
	}
	return &RolePolicy{rules: rules}
}

// Check devuelve ErrUnauthorized si no hay actor y ErrForbidden si el rol no está permitido.
// Una operación sin regla se niega.
func (p *RolePolicy) Check(_ context.Context, op Operation, actor entity.Actor) error {
	if actor.ID == "" {
		return domain.ErrUnauthorized
	}
	if !slices.Contains(p.rules[op], actor.Role) {
		return fmt.Errorf("%s por rol %q: %w", op, actor.Role, domain.ErrForbidden)
	}
	return nil
}
