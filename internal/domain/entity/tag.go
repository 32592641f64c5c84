package entity

import "time"

// Tipos de tag: por qué se retienen las instancias.
const (
	TagTypeReserved  = "reserved"
	TagTypeBroken    = "broken"
	TagTypeImperfect = "imperfect"
	TagTypeLoaned    = "loaned"
	TagTypeStock     = "stock"
)

// Estados del tag. Fulfilled y Cancelled son terminales.
const (
	TagStatusActive    = "active"
	TagStatusFulfilled = "fulfilled"
	TagStatusCancelled = "cancelled"
)

// Métodos de selección de instancias por línea.
const (
	SelectionManual    = "manual"
	SelectionAuto      = "auto"
	SelectionFIFO      = "fifo"
	SelectionCostBased = "cost_based"
)

// ValidTagType indica si t es un tipo de tag conocido.
func ValidTagType(t string) bool {
	switch t {
	case TagTypeReserved, TagTypeBroken, TagTypeImperfect, TagTypeLoaned, TagTypeStock:
		return true
	}
	return false
}

// Tag es un registro de demanda que reclama y consume instancias.
type Tag struct {
	ID          string
	CustomerID  string
	ProjectID   string
	Type        string
	Status      string
	DueDate     *time.Time
	Notes       string
	Lines       []*TagLine
	CreatedBy   string
	UpdatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	FulfilledAt *time.Time
	CancelledAt *time.Time
}

// TagLine sub-solicitud de un SKU dentro de un tag.
// La cantidad no se almacena: siempre es len(SelectedIDs).
type TagLine struct {
	ID          string
	TagID       string
	SKUID       string
	Method      string
	SelectedIDs []string
	ConsumedIDs []string
	Notes       string
}

// Quantity cantidad de la línea, derivada de la selección.
func (l *TagLine) Quantity() int { return len(l.SelectedIDs) }

// Selected indica si la instancia forma parte de la selección de la línea.
func (l *TagLine) Selected(instanceID string) bool {
	for _, id := range l.SelectedIDs {
		if id == instanceID {
			return true
		}
	}
	return false
}

// Consumed indica si la instancia ya fue consumida por la línea.
func (l *TagLine) Consumed(instanceID string) bool {
	for _, id := range l.ConsumedIDs {
		if id == instanceID {
			return true
		}
	}
	return false
}

// Pending instancias seleccionadas aún sin consumir.
func (l *TagLine) Pending() []string {
	out := make([]string, 0, len(l.SelectedIDs))
	for _, id := range l.SelectedIDs {
		if !l.Consumed(id) {
			out = append(out, id)
		}
	}
	return out
}

// Fulfilled la línea está completa cuando todas sus instancias seleccionadas fueron consumidas.
func (l *TagLine) Fulfilled() bool {
	return len(l.ConsumedIDs) == len(l.SelectedIDs)
}

// IsTerminal indica si el tag ya no admite mutaciones.
func (t *Tag) IsTerminal() bool {
	return t.Status == TagStatusFulfilled || t.Status == TagStatusCancelled
}

// Line busca una línea por ID.
func (t *Tag) Line(lineID string) *TagLine {
	for _, l := range t.Lines {
		if l.ID == lineID {
			return l
		}
	}
	return nil
}

// RefreshStatus pasa el tag a fulfilled cuando todas sus líneas están consumidas.
// El estado es consecuencia del consumo, no un valor que se fije desde fuera.
func (t *Tag) RefreshStatus(now time.Time) {
	if t.Status != TagStatusActive || len(t.Lines) == 0 {
		return
	}
	for _, l := range t.Lines {
		if !l.Fulfilled() {
			return
		}
	}
	t.Status = TagStatusFulfilled
	t.FulfilledAt = &now
}

// Clone devuelve una copia profunda del tag.
func (t Tag) Clone() Tag {
	lines := make([]*TagLine, len(t.Lines))
	for i, l := range t.Lines {
		c := *l
		c.SelectedIDs = append([]string(nil), l.SelectedIDs...)
		c.ConsumedIDs = append([]string(nil), l.ConsumedIDs...)
		lines[i] = &c
	}
	t.Lines = lines
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	if t.FulfilledAt != nil {
		f := *t.FulfilledAt
		t.FulfilledAt = &f
	}
	if t.CancelledAt != nil {
		c := *t.CancelledAt
		t.CancelledAt = &c
	}
	return t
}
