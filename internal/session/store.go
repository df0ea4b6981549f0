package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"buddybot/internal/domain"
	"buddybot/internal/storage"
)

// Store es la única fuente de verdad de las sesiones durante la vida del
// proceso. Posee la colección en memoria (más reciente primero) y el
// puntero a la sesión activa, y mantiene el Adapter sincronizado tras
// cada mutación. Un solo escritor: el mutex cubre el caso de listeners y
// UI corriendo en goroutines distintas.
//
// Sin coordinación entre procesos sobre el mismo almacén: el último
// escritor gana. Limitación aceptada, no un defecto a corregir acá.
type Store struct {
	mu        sync.Mutex
	adapter   *storage.Adapter
	logger    *zap.Logger
	now       func() time.Time
	identity  string
	ready     bool
	sessions  []domain.Session
	active    domain.Session
	hasActive bool
	listeners []func()
}

func NewStore(adapter *storage.Adapter, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		adapter: adapter,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe registra un listener que será invocado de forma síncrona
// después de cada mutación confirmada.
func (s *Store) Subscribe(listener func()) {
	if listener == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, listener)
	s.mu.Unlock()
}

// Initialize carga colección y sesión activa para el scope de la
// identidad dada, creando una sesión vacía si no hay ninguna activa.
// Es idempotente: repetir con la misma identidad no hace nada, y si la
// identidad se resuelve tarde (arranque anónimo, login después) el store
// se re-resuelve contra el scope nuevo en vez de retener datos anónimos.
func (s *Store) Initialize(ctx context.Context, identity string) {
	s.mu.Lock()
	if s.ready && s.identity == identity {
		s.mu.Unlock()
		return
	}

	s.identity = identity
	s.sessions = s.adapter.LoadCollection(ctx, identity)
	domain.SortSessions(s.sessions)

	if active, ok := s.adapter.LoadActive(ctx, identity); ok {
		s.active = active
		s.hasActive = true
		s.upsertActiveLocked(ctx, false)
	} else {
		s.startNewLocked(ctx)
	}
	s.ready = true
	s.mu.Unlock()

	s.notify()
}

// StartNewConversation crea una sesión vacía, la vuelve activa, la
// antepone a la colección y persiste ambas. Devuelve la sesión creada.
func (s *Store) StartNewConversation(ctx context.Context) domain.Session {
	s.mu.Lock()
	created := s.startNewLocked(ctx)
	s.mu.Unlock()

	s.notify()
	return created
}

// AppendMessage agrega el mensaje a la sesión activa, avanza UpdatedAt y
// reubica la sesión al frente de la colección. Crea una sesión si no hay
// ninguna activa.
func (s *Store) AppendMessage(ctx context.Context, msg domain.Message) {
	s.mu.Lock()
	if !s.hasActive {
		s.startNewLocked(ctx)
	}
	s.active = s.active.Append(msg, s.now())
	s.upsertActiveLocked(ctx, true)
	s.mu.Unlock()

	s.notify()
}

// LoadSession vuelve activa la sesión con el id dado y persiste el
// puntero. No reordena la colección. Si el id no existe, no hace nada.
func (s *Store) LoadSession(ctx context.Context, id string) {
	s.mu.Lock()
	found := false
	for _, existing := range s.sessions {
		if existing.ID == id {
			s.active = cloneSession(existing)
			s.hasActive = true
			found = true
			break
		}
	}
	if found {
		if err := s.adapter.SaveActive(ctx, s.identity, s.active); err != nil {
			s.logger.Warn("persist active session failed", zap.Error(err))
		}
	}
	s.mu.Unlock()

	if found {
		s.notify()
	}
}

// DeleteSession elimina la sesión de la colección y persiste el recorte.
// Si la eliminada era la activa, arranca una conversación nueva en el
// acto: el puntero activo nunca queda colgando.
func (s *Store) DeleteSession(ctx context.Context, id string) {
	s.mu.Lock()
	kept := s.sessions[:0]
	removed := false
	for _, existing := range s.sessions {
		if existing.ID == id {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	if !removed {
		s.mu.Unlock()
		return
	}
	s.sessions = kept
	if err := s.adapter.SaveCollection(ctx, s.identity, s.sessions); err != nil {
		s.logger.Warn("persist collection failed", zap.Error(err))
	}
	if s.hasActive && s.active.ID == id {
		s.startNewLocked(ctx)
	}
	s.mu.Unlock()

	s.notify()
}

// Sessions devuelve una copia de la colección, más reciente primero.
func (s *Store) Sessions() []domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Session, len(s.sessions))
	for i, existing := range s.sessions {
		out[i] = cloneSession(existing)
	}
	return out
}

// Active devuelve una copia de la sesión activa.
func (s *Store) Active() (domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasActive {
		return domain.Session{}, false
	}
	return cloneSession(s.active), true
}

// Identity devuelve la identidad con la que el store fue resuelto.
func (s *Store) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *Store) startNewLocked(ctx context.Context) domain.Session {
	created := domain.NewSession(s.now())
	created.ID = s.dedupeIDLocked(created.ID)
	s.active = created
	s.hasActive = true
	s.sessions = append([]domain.Session{cloneSession(created)}, s.sessions...)
	if err := s.adapter.SaveCollection(ctx, s.identity, s.sessions); err != nil {
		s.logger.Warn("persist collection failed", zap.Error(err))
	}
	if err := s.adapter.SaveActive(ctx, s.identity, s.active); err != nil {
		s.logger.Warn("persist active session failed", zap.Error(err))
	}
	return cloneSession(created)
}

// upsertActiveLocked reemplaza la entrada de la sesión activa en la
// colección por el snapshot actual. Con toFront la mueve al frente.
func (s *Store) upsertActiveLocked(ctx context.Context, toFront bool) {
	snapshot := cloneSession(s.active)
	kept := make([]domain.Session, 0, len(s.sessions)+1)
	replaced := false
	for _, existing := range s.sessions {
		if existing.ID == snapshot.ID {
			if !toFront {
				kept = append(kept, snapshot)
				replaced = true
			}
			continue
		}
		kept = append(kept, existing)
	}
	if toFront || !replaced {
		kept = append([]domain.Session{snapshot}, kept...)
	}
	s.sessions = kept
	if err := s.adapter.SaveActive(ctx, s.identity, s.active); err != nil {
		s.logger.Warn("persist active session failed", zap.Error(err))
	}
	if err := s.adapter.SaveCollection(ctx, s.identity, s.sessions); err != nil {
		s.logger.Warn("persist collection failed", zap.Error(err))
	}
}

// dedupeIDLocked evita que dos creaciones dentro del mismo milisegundo
// compartan id dentro del scope.
func (s *Store) dedupeIDLocked(id string) string {
	for {
		taken := false
		for _, existing := range s.sessions {
			if existing.ID == id {
				taken = true
				break
			}
		}
		if !taken {
			return id
		}
		id = id + "-" + uuid.NewString()[:8]
	}
}

func (s *Store) notify() {
	s.mu.Lock()
	listeners := make([]func(), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()
	for _, listener := range listeners {
		listener()
	}
}

func cloneSession(in domain.Session) domain.Session {
	messages := make([]domain.Message, len(in.Messages))
	copy(messages, in.Messages)
	in.Messages = messages
	return in
}
