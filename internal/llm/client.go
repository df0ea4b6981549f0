package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"buddybot/internal/domain"
)

// Client define el contrato del cliente de completions: recibe la
// secuencia completa de mensajes de la sesión activa y devuelve el texto
// del asistente, o un *Failure tipado. Nunca reintenta: la decisión de
// qué mostrar ante un fallo es del Controller.
type Client interface {
	Complete(ctx context.Context, messages []domain.Message) (string, error)
}

// FailureKind clasifica los fallos del cliente de completions.
type FailureKind int

const (
	FailureNetwork  FailureKind = iota // transporte: no hubo respuesta HTTP
	FailureClient                      // respuesta 4xx del proxy
	FailureUpstream                    // respuesta 5xx del proxy o del upstream
	FailureSchema                      // cuerpo 200 sin el campo esperado
)

// Failure es un fallo tipado con una razón legible. Cuando el proxy
// responde con {"error": ...} esa razón se propaga textual.
type Failure struct {
	Kind   FailureKind
	Reason string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("completion failure: %s", f.Reason)
}

type completionRequest struct {
	Input []domain.Message `json:"input"`
}

type completionResponse struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// HTTPClient habla el protocolo del proxy: POST {input} -> {output}.
type HTTPClient struct {
	endpoint string
	persona  string
	client   *http.Client
	logger   *zap.Logger
}

// NewHTTPClient construye un cliente apuntando al endpoint del proxy.
// persona es la instrucción de sistema que se antepone a cada envío.
func NewHTTPClient(endpoint, persona string, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		endpoint: endpoint,
		persona:  persona,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   logger,
	}
}

// Complete transmite pares rol+contenido al proxy y devuelve la respuesta
// del asistente. Política de persona: se antepone exactamente un mensaje
// de sistema con la persona configurada, salvo que la secuencia ya
// contenga uno; los mensajes de sistema del llamador nunca se mutan.
func (c *HTTPClient) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	payload := completionRequest{Input: c.withPersona(messages)}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &Failure{Kind: FailureNetwork, Reason: "network failure: " + err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Failure{Kind: FailureNetwork, Reason: "read response: " + err.Error()}
	}

	var cr completionResponse
	decodeErr := json.Unmarshal(respBody, &cr)

	if resp.StatusCode != http.StatusOK {
		reason := fmt.Sprintf("completion endpoint returned status %d", resp.StatusCode)
		if decodeErr == nil && cr.Error != "" {
			reason = cr.Error
		}
		c.logger.Warn("completion request failed",
			zap.Int("status", resp.StatusCode),
			zap.String("reason", reason),
		)
		kind := FailureUpstream
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			kind = FailureClient
		}
		return "", &Failure{Kind: kind, Reason: reason}
	}

	if decodeErr != nil {
		return "", &Failure{Kind: FailureSchema, Reason: "unparsable response body"}
	}
	if strings.TrimSpace(cr.Output) == "" {
		return "", &Failure{Kind: FailureSchema, Reason: "response missing output"}
	}
	return cr.Output, nil
}

func (c *HTTPClient) withPersona(messages []domain.Message) []domain.Message {
	if c.persona == "" {
		return messages
	}
	for _, msg := range messages {
		if msg.Role == domain.RoleSystem {
			return messages
		}
	}
	out := make([]domain.Message, 0, len(messages)+1)
	out = append(out, domain.Message{Role: domain.RoleSystem, Content: c.persona})
	out = append(out, messages...)
	return out
}
