package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")
	ErrRateLimited  = errors.New("demasiadas solicitudes")

	// Asignación y reclamo de instancias.
	ErrInsufficientStock    = errors.New("stock insuficiente")
	ErrInvalidSelection     = errors.New("selección de instancias inválida")
	ErrAlreadyClaimed       = errors.New("la instancia ya fue reclamada")
	ErrNotClaimed           = errors.New("la instancia no está reclamada")
	ErrNotClaimedByThisLine = errors.New("la instancia no pertenece a esta línea")

	// Máquina de estados de tags.
	ErrAlreadyTerminal = errors.New("el tag ya está en estado terminal")

	// Conciliación.
	ErrReconcileRunning = errors.New("ya hay una conciliación en curso")
)
