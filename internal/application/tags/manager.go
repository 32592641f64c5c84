package tags

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jhoicas/inventario-tags/internal/application/allocation"
	"github.com/jhoicas/inventario-tags/internal/application/inventory"
	"github.com/jhoicas/inventario-tags/internal/application/policy"
	"github.com/jhoicas/inventario-tags/internal/domain"
	"github.com/jhoicas/inventario-tags/internal/domain/entity"
	"github.com/jhoicas/inventario-tags/internal/domain/repository"
)

// DefaultMaxClaimRetries reintentos por línea cuando otro actor gana el reclamo de una instancia.
const DefaultMaxClaimRetries = 3

// Config parámetros del gestor de tags.
type Config struct {
	MaxClaimRetries int
}

// Manager es dueño de los tags y su máquina de estados (active -> fulfilled | cancelled).
// Orquesta el motor de asignación y el almacén de instancias; cada mutación corre en una
// transacción y los deltas del agregado se aplican después del commit.
type Manager struct {
	txRunner   repository.TxRunner
	repos      repository.Repositories
	aggregator *inventory.AggregatorUseCase
	policy     policy.Checker
	log        zerolog.Logger
	cfg        Config
	now        func() time.Time

	claimCounter      metric.Int64Counter
	lostClaimCounter  metric.Int64Counter
	allocationFailure metric.Int64Counter
}

// NewManager construye el gestor.
func NewManager(
	txRunner repository.TxRunner,
	repos repository.Repositories,
	aggregator *inventory.AggregatorUseCase,
	checker policy.Checker,
	log zerolog.Logger,
	cfg Config,
) *Manager {
	if cfg.MaxClaimRetries <= 0 {
		cfg.MaxClaimRetries = DefaultMaxClaimRetries
	}
	meter := otel.Meter("github.com/jhoicas/inventario-tags/tags")
	claims, _ := meter.Int64Counter("inventory_claims_total",
		metric.WithDescription("Instancias reclamadas por tags"))
	lost, _ := meter.Int64Counter("inventory_claim_conflicts_total",
		metric.WithDescription("Reclamos perdidos frente a otro actor (reintentos)"))
	failures, _ := meter.Int64Counter("inventory_allocation_failures_total",
		metric.WithDescription("Operaciones de tag rechazadas por asignación"))

	return &Manager{
		txRunner:          txRunner,
		repos:             repos,
		aggregator:        aggregator,
		policy:            checker,
		log:               log,
		cfg:               cfg,
		now:               time.Now,
		claimCounter:      claims,
		lostClaimCounter:  lost,
		allocationFailure: failures,
	}
}

// LineInput una línea solicitada al crear un tag.
type LineInput struct {
	SKUID       string
	Method      string
	Quantity    int
	InstanceIDs []string // solo manual
	Notes       string
}

// CreateTagInput entrada de CreateTag.
type CreateTagInput struct {
	CustomerID string
	ProjectID  string
	Type       string
	DueDate    *time.Time
	Notes      string
	Lines      []LineInput
}

// LineSelection nueva selección para AmendLine. Quantity 0 conserva la cantidad actual.
type LineSelection struct {
	Method      string
	Quantity    int
	InstanceIDs []string
	Notes       *string
}

func (sel LineSelection) keepsManualSelection(line *entity.TagLine) bool {
	return sel.Method == "" && len(sel.InstanceIDs) == 0 && (sel.Quantity == 0 || sel.Quantity == line.Quantity())
}

// CreateTag crea un tag activo y reclama las instancias de todas sus líneas.
// Es atómico entre líneas: si una línea no se puede satisfacer no queda ninguna instancia reclamada.
func (m *Manager) CreateTag(ctx context.Context, in CreateTagInput, actor entity.Actor) (*entity.Tag, error) {
	if in.Type == "" {
		in.Type = entity.TagTypeReserved
	}
	if !entity.ValidTagType(in.Type) || (in.CustomerID == "" && in.ProjectID == "") {
		return nil, domain.ErrInvalidInput
	}
	for _, li := range in.Lines {
		if li.SKUID == "" {
			return nil, domain.ErrInvalidInput
		}
		if _, err := allocation.NormalizeMethod(li.Method); err != nil {
			return nil, err
		}
	}

	var (
		tag     *entity.Tag
		changes []entity.InstanceChange
	)
	err := m.run(ctx, func(repos repository.Repositories) error {
		changes = nil
		now := m.now()
		tag = &entity.Tag{
			ID:         uuid.New().String(),
			CustomerID: in.CustomerID,
			ProjectID:  in.ProjectID,
			Type:       in.Type,
			Status:     entity.TagStatusActive,
			DueDate:    in.DueDate,
			Notes:      in.Notes,
			CreatedBy:  actor.ID,
			UpdatedBy:  actor.ID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		engine := allocation.NewEngine(repos.Instances, repos.SKUs)
		for _, li := range in.Lines {
			line := &entity.TagLine{
				ID:     uuid.New().String(),
				TagID:  tag.ID,
				SKUID:  li.SKUID,
				Method: methodOrAuto(li.Method),
				Notes:  li.Notes,
			}
			claimed, err := m.claimLine(ctx, repos, engine, tag, line, allocation.Request{
				SKUID:       li.SKUID,
				Quantity:    li.Quantity,
				Method:      li.Method,
				InstanceIDs: li.InstanceIDs,
			})
			changes = append(changes, claimed...)
			if err != nil {
				return fmt.Errorf("línea %s: %w", li.SKUID, err)
			}
			tag.Lines = append(tag.Lines, line)
		}
		if err := repos.Tags.Create(ctx, tag); err != nil {
			return err
		}
		return m.applyChanges(ctx, repos, changes, entity.MovementTypeClaim, actor)
	})
	if err != nil {
		m.allocationFailure.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "create_tag")))
		return nil, err
	}

	m.claimCounter.Add(ctx, int64(len(changes)))
	m.log.Info().Str("tag_id", tag.ID).Str("actor", actor.ID).Int("lines", len(tag.Lines)).Msg("tag creado")
	return tag, nil
}

// AmendLine libera las instancias de la línea y vuelve a asignar según la nueva selección.
// Si la nueva asignación falla la línea conserva su selección anterior.
func (m *Manager) AmendLine(ctx context.Context, tagID, lineID string, sel LineSelection, actor entity.Actor) (*entity.Tag, error) {
	if sel.Method != "" {
		if _, err := allocation.NormalizeMethod(sel.Method); err != nil {
			return nil, err
		}
	}

	var (
		tag     *entity.Tag
		changes []entity.InstanceChange
	)
	err := m.run(ctx, func(repos repository.Repositories) error {
		changes = nil
		var err error
		tag, err = repos.Tags.GetForUpdate(ctx, tagID)
		if err != nil {
			return err
		}
		if tag.IsTerminal() {
			return domain.ErrAlreadyTerminal
		}
		line := tag.Line(lineID)
		if line == nil {
			return domain.ErrNotFound
		}
		// Una línea manual sin método, ids ni cambio de cantidad conserva su selección: solo notas.
		if line.Method == entity.SelectionManual && sel.keepsManualSelection(line) {
			if sel.Notes != nil {
				line.Notes = *sel.Notes
			}
			tag.UpdatedBy = actor.ID
			tag.UpdatedAt = m.now()
			return repos.Tags.Update(ctx, tag)
		}
		if len(line.ConsumedIDs) > 0 {
			return fmt.Errorf("la línea %s ya tiene consumos: %w", line.ID, domain.ErrConflict)
		}

		quantity := sel.Quantity
		switch {
		case quantity == 0 && len(sel.InstanceIDs) > 0:
			quantity = len(sel.InstanceIDs)
		case quantity == 0:
			quantity = line.Quantity()
		}
		released, err := m.releaseLine(ctx, repos, line)
		changes = append(changes, released...)
		if err != nil {
			return err
		}

		line.SelectedIDs = nil
		if sel.Method != "" {
			line.Method = sel.Method
		}
		if sel.Notes != nil {
			line.Notes = *sel.Notes
		}
		engine := allocation.NewEngine(repos.Instances, repos.SKUs)
		claimed, err := m.claimLine(ctx, repos, engine, tag, line, allocation.Request{
			SKUID:       line.SKUID,
			Quantity:    quantity,
			Method:      line.Method,
			InstanceIDs: sel.InstanceIDs,
		})
		changes = append(changes, claimed...)
		if err != nil {
			return err
		}
		tag.UpdatedBy = actor.ID
		tag.UpdatedAt = m.now()
		if err := repos.Tags.Update(ctx, tag); err != nil {
			return err
		}
		return m.applyChanges(ctx, repos, changes, entity.MovementTypeAmend, actor)
	})
	if err != nil {
		m.allocationFailure.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "amend_line")))
		return nil, err
	}

	return tag, nil
}

// FulfillLine consume las instancias indicadas; cada una debe estar retenida por esta línea.
// El tag pasa a fulfilled cuando todas sus líneas quedan completamente consumidas.
func (m *Manager) FulfillLine(ctx context.Context, tagID, lineID string, instanceIDs []string, actor entity.Actor) (*entity.Tag, error) {
	if len(instanceIDs) == 0 {
		return nil, domain.ErrInvalidInput
	}
	seen := make(map[string]bool, len(instanceIDs))
	for _, id := range instanceIDs {
		if seen[id] {
			return nil, domain.ErrInvalidInput
		}
		seen[id] = true
	}

	var (
		tag     *entity.Tag
		changes []entity.InstanceChange
	)
	err := m.run(ctx, func(repos repository.Repositories) error {
		changes = nil
		var err error
		tag, err = repos.Tags.GetForUpdate(ctx, tagID)
		if err != nil {
			return err
		}
		if tag.IsTerminal() {
			return domain.ErrAlreadyTerminal
		}
		line := tag.Line(lineID)
		if line == nil {
			return domain.ErrNotFound
		}
		for _, id := range instanceIDs {
			if !line.Selected(id) || line.Consumed(id) {
				return fmt.Errorf("instancia %s: %w", id, domain.ErrNotClaimedByThisLine)
			}
			ch, err := repos.Instances.Consume(ctx, id, line.ID)
			if err != nil {
				if errors.Is(err, domain.ErrNotClaimed) || errors.Is(err, domain.ErrNotFound) {
					return fmt.Errorf("instancia %s: %w", id, domain.ErrNotClaimedByThisLine)
				}
				return err
			}
			changes = append(changes, ch)
			line.ConsumedIDs = append(line.ConsumedIDs, id)
		}
		now := m.now()
		tag.RefreshStatus(now)
		tag.UpdatedBy = actor.ID
		tag.UpdatedAt = now
		if err := repos.Tags.Update(ctx, tag); err != nil {
			return err
		}
		return m.applyChanges(ctx, repos, changes, entity.MovementTypeConsume, actor)
	})
	if err != nil {
		return nil, err
	}

	if tag.Status == entity.TagStatusFulfilled {
		m.log.Info().Str("tag_id", tag.ID).Str("actor", actor.ID).Msg("tag cumplido")
	}
	return tag, nil
}

// CancelTag libera todas las instancias aún retenidas y deja el tag cancelado.
// Las instancias ya consumidas no se revierten.
func (m *Manager) CancelTag(ctx context.Context, tagID string, actor entity.Actor) (*entity.Tag, error) {
	if err := m.policy.Check(ctx, policy.OpCancelTag, actor); err != nil {
		return nil, err
	}

	var (
		tag     *entity.Tag
		changes []entity.InstanceChange
	)
	err := m.run(ctx, func(repos repository.Repositories) error {
		changes = nil
		var err error
		tag, err = repos.Tags.GetForUpdate(ctx, tagID)
		if err != nil {
			return err
		}
		if tag.IsTerminal() {
			return domain.ErrAlreadyTerminal
		}
		for _, line := range tag.Lines {
			released, err := m.releaseLine(ctx, repos, line)
			changes = append(changes, released...)
			if err != nil {
				return err
			}
		}
		now := m.now()
		tag.Status = entity.TagStatusCancelled
		tag.CancelledAt = &now
		tag.UpdatedBy = actor.ID
		tag.UpdatedAt = now
		if err := repos.Tags.Update(ctx, tag); err != nil {
			return err
		}
		return m.applyChanges(ctx, repos, changes, entity.MovementTypeRelease, actor)
	})
	if err != nil {
		return nil, err
	}

	m.log.Info().Str("tag_id", tag.ID).Str("actor", actor.ID).Int("released", len(changes)).Msg("tag cancelado")
	return tag, nil
}

// GetTag obtiene un tag con sus líneas.
func (m *Manager) GetTag(ctx context.Context, tagID string) (*entity.Tag, error) {
	return m.repos.Tags.GetByID(ctx, tagID)
}

// ListTags lista tags por estado ("" = todos).
func (m *Manager) ListTags(ctx context.Context, status string, limit, offset int) ([]*entity.Tag, error) {
	return m.repos.Tags.List(ctx, status, limit, offset)
}

// Preview asignación de solo lectura (no reclama nada).
func (m *Manager) Preview(ctx context.Context, req allocation.Request) ([]*entity.Instance, error) {
	return allocation.NewEngine(m.repos.Instances, m.repos.SKUs).Allocate(ctx, req)
}

// claimLine asigna y reclama las instancias de una línea. Cuando otro actor gana un reclamo
// la instancia se excluye y se vuelve a asignar lo que falta, hasta MaxClaimRetries.
func (m *Manager) claimLine(
	ctx context.Context,
	repos repository.Repositories,
	engine *allocation.Engine,
	tag *entity.Tag,
	line *entity.TagLine,
	req allocation.Request,
) ([]entity.InstanceChange, error) {
	ref := entity.ClaimRef{TagID: tag.ID, LineID: line.ID, TagType: tag.Type}
	method, err := allocation.NormalizeMethod(req.Method)
	if err != nil {
		return nil, err
	}
	want := req.Quantity
	if method == entity.SelectionManual {
		if req.Quantity > 0 && req.Quantity != len(req.InstanceIDs) {
			return nil, domain.ErrInvalidSelection
		}
		want = len(req.InstanceIDs)
	}

	var (
		changes []entity.InstanceChange
		lost    []string
	)
	for attempt := 0; ; attempt++ {
		r := req
		r.Quantity = want - len(line.SelectedIDs)
		r.Exclude = append(append([]string(nil), lost...), line.SelectedIDs...)
		picks, err := engine.Allocate(ctx, r)
		if err != nil {
			return changes, err
		}
		for _, inst := range picks {
			ch, err := repos.Instances.Claim(ctx, inst.ID, ref)
			if errors.Is(err, domain.ErrAlreadyClaimed) {
				m.lostClaimCounter.Add(ctx, 1)
				if method == entity.SelectionManual {
					return changes, domain.ErrInvalidSelection
				}
				lost = append(lost, inst.ID)
				continue
			}
			if err != nil {
				return changes, err
			}
			changes = append(changes, ch)
			line.SelectedIDs = append(line.SelectedIDs, inst.ID)
		}
		if len(line.SelectedIDs) == want {
			return changes, nil
		}
		if attempt >= m.cfg.MaxClaimRetries {
			m.log.Warn().Str("sku_id", line.SKUID).Int("lost", len(lost)).Msg("reintentos de reclamo agotados")
			return changes, domain.ErrInsufficientStock
		}
	}
}

// releaseLine libera las instancias de la línea que siguen retenidas por ella.
func (m *Manager) releaseLine(ctx context.Context, repos repository.Repositories, line *entity.TagLine) ([]entity.InstanceChange, error) {
	var changes []entity.InstanceChange
	for _, id := range line.Pending() {
		inst, err := repos.Instances.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				m.log.Warn().Str("line_id", line.ID).Str("instance_id", id).Msg("instancia seleccionada inexistente")
				continue
			}
			return changes, err
		}
		if !inst.HeldBy(line.ID) {
			m.log.Warn().Str("line_id", line.ID).Str("instance_id", id).Msg("instancia seleccionada no retenida por la línea")
			continue
		}
		ch, err := repos.Instances.Release(ctx, id)
		if err != nil {
			return changes, err
		}
		changes = append(changes, ch)
	}
	return changes, nil
}

// run ejecuta fn en una transacción y la reintenta completa si el almacenamiento la aborta por concurrencia.
func (m *Manager) run(ctx context.Context, fn func(repos repository.Repositories) error) error {
	var err error
	for attempt := 0; attempt <= m.cfg.MaxClaimRetries; attempt++ {
		err = m.txRunner.Run(ctx, fn)
		if !errors.Is(err, repository.ErrRetryable) {
			return err
		}
		m.log.Debug().Int("attempt", attempt+1).Msg("transacción abortada por concurrencia, reintentando")
	}
	return err
}

// applyChanges ajusta los agregados dentro de la misma transacción que cambió las instancias,
// así ningún recálculo puede ver las instancias sin su delta o el delta dos veces.
func (m *Manager) applyChanges(ctx context.Context, repos repository.Repositories, changes []entity.InstanceChange, movementType string, actor entity.Actor) error {
	if len(changes) == 0 {
		return nil
	}
	return m.aggregator.ApplyChangesTx(ctx, repos, changes, movementType, actor.ID)
}

func methodOrAuto(method string) string {
	if method == "" {
		return entity.SelectionAuto
	}
	return method
}
