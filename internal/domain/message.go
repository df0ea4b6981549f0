package domain

// Roles que el proxy de completions acepta. La interfaz de chat solo
// produce system, user y assistant; el resto se tolera por compatibilidad
// con clientes externos.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleFunction  = "function"
	RoleTool      = "tool"
	RoleDeveloper = "developer"
)

var validRoles = map[string]struct{}{
	RoleSystem:    {},
	RoleUser:      {},
	RoleAssistant: {},
	RoleFunction:  {},
	RoleTool:      {},
	RoleDeveloper: {},
}

// ValidRole indica si el rol pertenece al conjunto aceptado por el proxy.
func ValidRole(role string) bool {
	_, ok := validRoles[role]
	return ok
}

// Message es un turno dentro de una sesión. Una vez agregado a la sesión
// es inmutable; el orden de inserción es el orden cronológico.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
