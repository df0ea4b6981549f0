package domain

import (
	"sort"
	"strconv"
	"time"
)

// Session es una conversación ordenada con identificador estable.
// El id se deriva del reloj al momento de creación, de modo que también
// sirve como marca de creación para la vista de historial. Dos creaciones
// dentro del mismo milisegundo podrían chocar; el Store de sesiones
// desambigua contra su colección antes de aceptar un id.
type Session struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewSession crea una sesión vacía con id derivado del instante dado.
func NewSession(now time.Time) Session {
	return Session{
		ID:        strconv.FormatInt(now.UnixMilli(), 10),
		Messages:  []Message{},
		UpdatedAt: now,
	}
}

// Append devuelve una copia de la sesión con el mensaje agregado al final
// y UpdatedAt avanzado. No muta el receptor.
func (s Session) Append(msg Message, now time.Time) Session {
	messages := make([]Message, 0, len(s.Messages)+1)
	messages = append(messages, s.Messages...)
	messages = append(messages, msg)
	s.Messages = messages
	s.UpdatedAt = now
	return s
}

// SortSessions ordena la colección para la vista de historial:
// actualizadas más recientemente primero.
func SortSessions(sessions []Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
}
