package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"buddybot/internal/domain"
)

// Respuesta fija cuando el upstream devuelve un contenido vacío.
const emptyReply = "Desculpe, não entendi."

// CompletionHandler implementa el proxy de completions: recibe
// {"input": [mensajes]} y responde {"output": texto}. No guarda estado.
type CompletionHandler struct {
	logger      *zap.Logger
	upstream    *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewCompletionHandler construye el proxy contra un upstream compatible
// con la API de chat completions de OpenAI.
func NewCompletionHandler(logger *zap.Logger, apiKey, baseURL, model string, maxTokens int, temperature float32) *CompletionHandler {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	return &CompletionHandler{
		logger:      logger,
		upstream:    openai.NewClientWithConfig(clientConfig),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// Generate maneja POST /api/openai.
func (h *CompletionHandler) Generate(c *gin.Context) {
	var req struct {
		Input json.RawMessage `json:"input"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid completion request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "input must be an array of messages"})
		return
	}

	// Un JSON null deserializa a slice nil sin error; solo un literal de
	// array cuenta como entrada válida.
	var items []json.RawMessage
	if err := json.Unmarshal(req.Input, &items); err != nil || items == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "input must be an array of messages"})
		return
	}

	upstreamReq := openai.ChatCompletionRequest{
		Model:       h.model,
		Messages:    normalizeInput(items),
		MaxTokens:   h.maxTokens,
		Temperature: h.temperature,
	}

	resp, err := h.upstream.CreateChatCompletion(c.Request.Context(), upstreamReq)
	if err != nil {
		h.logger.Error("upstream completion failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": upstreamErrorMessage(err)})
		return
	}

	output := ""
	if len(resp.Choices) > 0 {
		output = strings.TrimSpace(resp.Choices[0].Message.Content)
	}
	if output == "" {
		output = emptyReply
	}

	c.JSON(http.StatusOK, gin.H{"output": output})
}

// normalizeInput tolera entradas laxas: elementos sin estructura se
// degradan a texto con rol user, y roles fuera del conjunto aceptado se
// corrigen a user en vez de rechazar el pedido.
func normalizeInput(items []json.RawMessage) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(items))
	for _, raw := range items {
		var msg domain.Message
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Content == "" {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    domain.RoleUser,
				Content: rawAsText(raw),
			})
			continue
		}
		if !domain.ValidRole(msg.Role) {
			msg.Role = domain.RoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return messages
}

func rawAsText(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return string(raw)
}

// upstreamErrorMessage extrae el mensaje del error de la API cuando
// existe; el detalle completo queda solo en el log.
func upstreamErrorMessage(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "upstream completion error"
}
