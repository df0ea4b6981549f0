package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"buddybot/internal/chat"
	"buddybot/internal/config"
	"buddybot/internal/db"
	"buddybot/internal/domain"
	"buddybot/internal/llm"
	"buddybot/internal/session"
	"buddybot/internal/storage"
)

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	kv, err := openKV(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer kv.Close()

	adapter := storage.NewAdapter(kv, logger)
	store := session.NewStore(adapter, logger)
	client := llm.NewHTTPClient(cfg.ProxyURL, cfg.Persona, logger)
	controller := chat.NewController(store, client, cfg.FallbackReply, logger)

	// Identidad guardada por un login previo; vacía = scope anónimo.
	identity := adapter.LoadUserID(ctx)
	store.Initialize(ctx, identity)

	dirty := false
	store.Subscribe(func() { dirty = true })

	fmt.Println("===== BuddyBot =====")
	printHelp()
	printActive(store)

	for {
		fmt.Print("Tu > ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := runCommand(ctx, line, store, adapter); quit {
				return
			}
			continue
		}

		dirty = false
		if err := controller.SendMessage(ctx, line); err != nil {
			fmt.Printf("No se pudo enviar: %v\n", err)
			continue
		}
		if dirty {
			if active, ok := store.Active(); ok && len(active.Messages) > 0 {
				last := active.Messages[len(active.Messages)-1]
				fmt.Printf("Bot > %s\n", last.Content)
			}
		}
	}
}

func runCommand(ctx context.Context, line string, store *session.Store, adapter *storage.Adapter) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/salir", "/exit":
		fmt.Println("Hasta luego.")
		return true
	case "/nueva":
		store.StartNewConversation(ctx)
		fmt.Println("Conversación nueva iniciada.")
	case "/historial":
		printSessions(store)
	case "/cargar":
		if id, ok := pickSession(store, fields); ok {
			store.LoadSession(ctx, id)
			printActive(store)
		}
	case "/borrar":
		if id, ok := pickSession(store, fields); ok {
			store.DeleteSession(ctx, id)
			fmt.Println("Conversación eliminada.")
		}
	case "/login":
		if len(fields) < 2 {
			fmt.Println("Uso: /login <user-id>")
			return false
		}
		identity := fields[1]
		if err := adapter.SaveUserID(ctx, identity); err != nil {
			fmt.Printf("No se pudo guardar la identidad: %v\n", err)
		}
		store.Initialize(ctx, identity)
		fmt.Printf("Sesiones cargadas para %s.\n", identity)
	case "/logout":
		if err := adapter.SaveUserID(ctx, ""); err != nil {
			fmt.Printf("No se pudo limpiar la identidad: %v\n", err)
		}
		store.Initialize(ctx, "")
		fmt.Println("Sesiones anónimas cargadas.")
	case "/ayuda", "/help":
		printHelp()
	default:
		fmt.Println("Comando desconocido. /ayuda para ver la lista.")
	}
	return false
}

// pickSession resuelve el argumento numérico de /cargar y /borrar contra
// la vista de historial (más reciente primero).
func pickSession(store *session.Store, fields []string) (string, bool) {
	sessions := store.Sessions()
	if len(sessions) == 0 {
		fmt.Println("No hay conversaciones guardadas.")
		return "", false
	}
	if len(fields) < 2 {
		fmt.Println("Uso: " + fields[0] + " <número>")
		return "", false
	}
	idx, err := strconv.Atoi(fields[1])
	if err != nil || idx < 1 || idx > len(sessions) {
		fmt.Println("Selección inválida.")
		return "", false
	}
	return sessions[idx-1].ID, true
}

func printSessions(store *session.Store) {
	sessions := store.Sessions()
	if len(sessions) == 0 {
		fmt.Println("No hay conversaciones guardadas.")
		return
	}
	active, hasActive := store.Active()
	for i, s := range sessions {
		marker := " "
		if hasActive && s.ID == active.ID {
			marker = "*"
		}
		fmt.Printf("%s [%d] %s (%d mensajes)\n", marker, i+1, s.UpdatedAt.Local().Format("2006-01-02 15:04"), len(s.Messages))
	}
}

func printActive(store *session.Store) {
	active, ok := store.Active()
	if !ok {
		return
	}
	if len(active.Messages) == 0 {
		fmt.Println("Envía un mensaje para comenzar...")
		return
	}
	for _, msg := range active.Messages {
		switch msg.Role {
		case domain.RoleAssistant:
			fmt.Printf("Bot > %s\n", msg.Content)
		case domain.RoleUser:
			fmt.Printf("Tu > %s\n", msg.Content)
		}
	}
}

func printHelp() {
	fmt.Println("Comandos: /nueva, /historial, /cargar <n>, /borrar <n>, /login <user-id>, /logout, /salir")
}

// openKV construye el backend de persistencia según STORE_BACKEND.
func openKV(ctx context.Context, cfg *config.Config) (storage.KV, error) {
	switch cfg.StoreBackend {
	case "memory":
		return storage.NewMemoryKV(), nil
	case "badger":
		return storage.NewBadgerKV(cfg.StorePath)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return storage.NewRedisKV(client), nil
	case "postgres":
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return storage.NewPgKV(pool), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
