package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Dhoini/Entitlement-microservice/internal/api/rest/middleware"
	"github.com/Dhoini/Entitlement-microservice/internal/domain"
	"github.com/Dhoini/Entitlement-microservice/internal/service"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
	"github.com/Dhoini/Entitlement-microservice/pkg/res"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10
	// клиент ничего не присылает кроме close и pong
	maxInboundMessageSize = 512
)

// EntitlementView запись вместе с регионами, которые она открывает. Entitlement
// равен nil, если записи нет или значение неизвестно.
type EntitlementView struct {
	Entitlement *domain.Entitlement `json:"entitlement"`
	Regions     []domain.Region     `json:"regions"`
}

func newEntitlementView(e *domain.Entitlement) EntitlementView {
	tier := domain.TierNone
	if e != nil && e.IsActive {
		tier = e.MembershipTier
	}
	return EntitlementView{Entitlement: e, Regions: domain.AccessibleRegions(tier)}
}

type watchMessage struct {
	Type string `json:"type"`
	EntitlementView
}

// EntitlementHandler чтение записи текущего пользователя и подписка на её изменения
type EntitlementHandler struct {
	entitlements *service.EntitlementService
	upgrader     websocket.Upgrader
	log          *logger.Logger

	// base отменяется при остановке сервера и закрывает все открытые watch
	base      context.Context
	closeBase context.CancelFunc

	mu       sync.Mutex
	closed   bool
	watchers sync.WaitGroup
}

// NewEntitlementHandler создает обработчик. allowedOrigin это базовый URL
// приложения; WebSocket из браузера с другого origin отклоняется.
func NewEntitlementHandler(entitlements *service.EntitlementService, allowedOrigin string, log *logger.Logger) *EntitlementHandler {
	base, cancel := context.WithCancel(context.Background())
	return &EntitlementHandler{
		entitlements: entitlements,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     sameOrigin(allowedOrigin),
		},
		log:       log,
		base:      base,
		closeBase: cancel,
	}
}

// sameOrigin пропускает запросы без Origin (не браузер) и запросы с origin
// приложения.
func sameOrigin(allowed string) func(r *http.Request) bool {
	allowedURL, err := url.Parse(allowed)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, perr := url.Parse(origin)
		if perr != nil || err != nil {
			return false
		}
		return strings.EqualFold(u.Scheme, allowedURL.Scheme) && strings.EqualFold(u.Host, allowedURL.Host)
	}
}

// GetEntitlement возвращает запись текущего пользователя
func (h *EntitlementHandler) GetEntitlement(c *gin.Context) {
	rec, err := h.entitlements.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, newEntitlementView(rec))
}

// Register создает запись для текущего пользователя. Повторный вызов
// возвращает существующую запись со статусом 200.
func (h *EntitlementHandler) Register(c *gin.Context) {
	rec, created, err := h.entitlements.Register(c.Request.Context(), middleware.UserID(c), middleware.UserEmail(c))
	if err != nil {
		writeError(c, err, h.log)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, newEntitlementView(rec))
}

// GetServers возвращает регионы и серверы с пометкой доступности
func (h *EntitlementHandler) GetServers(c *gin.Context) {
	tier, regions, err := h.entitlements.Servers(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tier": tier, "regions": regions})
}

// Watch переводит соединение в WebSocket и отправляет текущее значение
// записи, затем каждое изменение. Подписка живет не дольше токена: в момент
// его exp соединение закрывается.
func (h *EntitlementHandler) Watch(c *gin.Context) {
	userID := middleware.UserID(c)

	exp, ok := middleware.TokenExpiry(c)
	if !ok {
		writeError(c, domain.NewEntitlementError(domain.CodeUnauthenticated,
			"watch requires a token with an expiry", userID, http.StatusUnauthorized, domain.ErrUnauthenticated), h.log)
		return
	}

	if !h.acquire() {
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Server is shutting down", Code: domain.CodeInternal},
			http.StatusServiceUnavailable)
		c.Abort()
		return
	}
	defer h.watchers.Done()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrader уже записал ответ
		h.log.Warnw("WebSocket upgrade failed", "userID", userID, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithDeadline(h.base, exp)
	defer cancel()

	log := h.log.With("userID", userID, "remoteAddr", conn.RemoteAddr().String())
	log.Debugw("Watch connected", "expiresAt", exp)

	go h.readPump(conn, cancel)
	h.writePump(ctx, conn, h.entitlements.Watch(ctx, userID), log)

	log.Debugw("Watch disconnected")
}

// acquire регистрирует watch, если обработчик еще не закрыт
func (h *EntitlementHandler) acquire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.watchers.Add(1)
	return true
}

// readPump читает входящие кадры ради pong и close. Любая ошибка чтения
// завершает подписку.
func (h *EntitlementHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(maxInboundMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *EntitlementHandler) writePump(ctx context.Context, conn *websocket.Conn, updates <-chan *domain.Entitlement, log *logger.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-updates:
			if !ok {
				// ctx завершен: клиент ушел, истек токен или сервер останавливается
				code, text := websocket.CloseGoingAway, ""
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					code, text = websocket.ClosePolicyViolation, "session expired"
					log.Debugw("Watch session expired")
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(watchMessage{Type: "entitlement", EntitlementView: newEntitlementView(e)}); err != nil {
				log.Debugw("Watch write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close закрывает все открытые подписки и ждет их завершения. Вызывается
// при остановке сервера: Shutdown не трогает соединения после upgrade.
func (h *EntitlementHandler) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	h.closeBase()
	h.watchers.Wait()
}
