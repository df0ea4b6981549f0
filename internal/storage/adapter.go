package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"buddybot/internal/domain"
)

// Claves persistidas. Con identidad conocida se les agrega el sufijo
// "_<identidad>" para que dos usuarios del mismo almacén no compartan
// historial; sin identidad se usa un espacio anónimo único.
const (
	keySessions = "chatSessions"
	keyActive   = "currentSession"
	keyUserID   = "userId"
)

// Adapter traduce el contrato de persistencia de sesiones a un KV.
// No guarda estado propio: es una superficie de lectura/escritura.
// Las lecturas degradan suave: datos ausentes, corruptos o no parseables
// producen resultados vacíos, nunca un error hacia el llamador.
type Adapter struct {
	kv     KV
	logger *zap.Logger
}

func NewAdapter(kv KV, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{kv: kv, logger: logger}
}

// ScopeKey deriva la clave namespaced para la identidad dada.
func ScopeKey(base, identity string) string {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return base
	}
	return base + "_" + identity
}

// LoadCollection devuelve la colección de sesiones del scope, vacía si no
// hay nada almacenado o el contenido no es JSON válido.
func (a *Adapter) LoadCollection(ctx context.Context, identity string) []domain.Session {
	key := ScopeKey(keySessions, identity)
	raw, err := a.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			a.logger.Warn("load collection failed", zap.String("key", key), zap.Error(err))
		}
		return nil
	}

	var sessions []domain.Session
	if err := json.Unmarshal(raw, &sessions); err != nil {
		a.logger.Warn("stored collection corrupt, starting empty", zap.String("key", key), zap.Error(err))
		return nil
	}
	return sessions
}

// SaveCollection sobrescribe la colección del scope.
func (a *Adapter) SaveCollection(ctx context.Context, identity string, sessions []domain.Session) error {
	if sessions == nil {
		sessions = []domain.Session{}
	}
	raw, err := json.Marshal(sessions)
	if err != nil {
		return err
	}
	return a.kv.Set(ctx, ScopeKey(keySessions, identity), raw)
}

// LoadActive devuelve el snapshot de la sesión activa del scope, si existe.
func (a *Adapter) LoadActive(ctx context.Context, identity string) (domain.Session, bool) {
	key := ScopeKey(keyActive, identity)
	raw, err := a.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			a.logger.Warn("load active session failed", zap.String("key", key), zap.Error(err))
		}
		return domain.Session{}, false
	}

	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		a.logger.Warn("stored active session corrupt, ignoring", zap.String("key", key), zap.Error(err))
		return domain.Session{}, false
	}
	if session.ID == "" {
		return domain.Session{}, false
	}
	return session, true
}

// SaveActive sobrescribe el snapshot de la sesión activa del scope.
func (a *Adapter) SaveActive(ctx context.Context, identity string, session domain.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return a.kv.Set(ctx, ScopeKey(keyActive, identity), raw)
}

// LoadUserID devuelve la identidad guardada por el flujo de autenticación,
// o cadena vacía si no hay ninguna.
func (a *Adapter) LoadUserID(ctx context.Context) string {
	raw, err := a.kv.Get(ctx, keyUserID)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

// SaveUserID guarda la identidad actual; con cadena vacía la elimina.
func (a *Adapter) SaveUserID(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return a.kv.Delete(ctx, keyUserID)
	}
	return a.kv.Set(ctx, keyUserID, []byte(userID))
}
