package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"hustle-crm/config"
	"hustle-crm/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Для разработки разрешаем все источники
	},
}

// GlobalHub - единственный экземпляр хаба для всего приложения
var GlobalHub = NewHub()

// ApprovalEvent — событие по согласованию, рассылаемое партнёрам проекта.
type ApprovalEvent struct {
	Type       string `json:"type"` // approval_created | approval_resolved
	ApprovalID string `json:"approval_id"`
	ProjectID  uint   `json:"project_id"`
	Target     string `json:"target_model"`
	Status     string `json:"status"`
	Amount     string `json:"amount"`
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID uint
}

type Hub struct {
	clients    map[uint]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uint]*Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.userID] = client
			h.mu.Unlock()
			slog.Info("Client registered", "userID", client.userID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.userID]; ok {
				delete(h.clients, client.userID)
				close(client.send)
			}
			h.mu.Unlock()
			slog.Info("Client unregistered", "userID", client.userID)
		}
	}
}

// NotifyApproval рассылает событие всем подключённым партнёрам проекта.
// Вызывается workflow после фиксации транзакции.
func (h *Hub) NotifyApproval(approval *models.TransactionApproval) {
	event := ApprovalEvent{
		Type:       "approval_created",
		ApprovalID: approval.PublicID,
		ProjectID:  approval.ProjectID,
		Target:     approval.TargetModel,
		Status:     approval.Status,
		Amount:     approval.Amount.String(),
	}
	if approval.Status != models.ApprovalStatusPending {
		event.Type = "approval_resolved"
	}

	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal approval event", "error", err)
		return
	}

	var partnerIDs []uint
	if err := config.DB.Model(&models.Partner{}).
		Where("project_id = ?", approval.ProjectID).
		Pluck("user_id", &partnerIDs).Error; err != nil {
		slog.Error("Не удалось получить партнёров для рассылки", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range partnerIDs {
		if client, ok := h.clients[id]; ok {
			select {
			case client.send <- payload:
			default:
				// Клиент не вычитывает — отключаем, чтобы не копить буфер.
				delete(h.clients, id)
				close(client.send)
			}
		}
	}
}

// ApprovalWSEndpoint апгрейдит соединение и подключает пользователя к хабу.
func ApprovalWSEndpoint(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket connection", "error", err)
		return
	}

	client := &Client{
		hub:    GlobalHub,
		conn:   conn,
		send:   make(chan []byte, 16),
		userID: currentUserID(c),
	}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		// Клиенты ничего не шлют, читаем только ради close/pong.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(45 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
