package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"buddybot/internal/domain"
	"buddybot/internal/llm"
	"buddybot/internal/session"
)

// ErrBusy señala un turno todavía en vuelo: mientras dura la llamada al
// cliente de completions no se acepta otro SendMessage sobre la misma
// sesión.
var ErrBusy = errors.New("chat: turn already in flight")

// Controller orquesta un turno de conversación: entrada del usuario ->
// Store -> cliente de completions -> Store con la respuesta (o el texto
// de fallback). Es el único componente que llama a la vez a los
// mutadores del Store y al cliente.
type Controller struct {
	store    *session.Store
	client   llm.Client
	fallback string
	logger   *zap.Logger

	mu      sync.Mutex
	loading bool
}

// NewController crea el controlador. fallback es el texto de asistente
// que se inserta cuando la completion falla; nunca se expone el error
// crudo en la transcripción.
func NewController(store *session.Store, client llm.Client, fallback string, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		store:    store,
		client:   client,
		fallback: fallback,
		logger:   logger,
	}
}

// Loading indica si hay un turno en vuelo. La capa de presentación lo usa
// para deshabilitar el envío.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// SendMessage ejecuta un turno completo. Texto vacío es un no-op. Un
// segundo llamado mientras hay un turno en vuelo devuelve ErrBusy sin
// tocar la sesión. Pase lo que pase con la completion, el estado de
// loading se libera y el turno termina con una entrada visible del
// asistente.
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	c.loading = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
	}()

	if _, ok := c.store.Active(); !ok {
		c.store.StartNewConversation(ctx)
	}

	c.store.AppendMessage(ctx, domain.Message{Role: domain.RoleUser, Content: text})

	active, _ := c.store.Active()
	reply, err := c.client.Complete(ctx, active.Messages)
	if err != nil {
		c.logger.Warn("completion failed, inserting fallback", zap.Error(err))
		reply = c.fallback
	}

	c.store.AppendMessage(ctx, domain.Message{Role: domain.RoleAssistant, Content: reply})
	return nil
}
