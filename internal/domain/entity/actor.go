package entity

// Actor identidad que ejecuta una operación (para auditoría y políticas).
// Para el núcleo el ID es opaco.
type Actor struct {
	ID   string
	Role string
}

// Roles válidos para Actor.
const (
	RoleAdmin     = "admin"
	RoleBodeguero = "bodeguero"
	RoleVendedor  = "vendedor"
	RoleSystem    = "system"
)
