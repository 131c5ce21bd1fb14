// internal/api/websocket.go
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Corphon/PitchPilotMCP/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 本地单用户工具，放开来源检查
		return true
	},
}

// FeedClient 表示一个订阅存储变更的 WebSocket 客户端连接
type FeedClient struct {
	conn      *websocket.Conn
	send      chan []byte
	closed    int32     // 原子操作标志，0=开启，1=关闭
	lastPing  time.Time // 最后一次ping时间
	createdAt time.Time
}

// StorageFeed 把存储变更事件广播给所有已连接客户端，
// 对应浏览器跨标签页的 storage 事件通知。
type StorageFeed struct {
	clients     map[*FeedClient]bool
	broadcast   chan []byte
	register    chan *FeedClient
	unregister  chan *FeedClient
	mutex       sync.RWMutex
	pingTimeout time.Duration
}

// 全局存储变更广播器
var storageFeed = &StorageFeed{
	clients:     make(map[*FeedClient]bool),
	broadcast:   make(chan []byte, 256),
	register:    make(chan *FeedClient, 16),
	unregister:  make(chan *FeedClient, 16),
	pingTimeout: 60 * time.Second,
}

func init() {
	go storageFeed.run()
}

// ========================================
// FeedClient 方法
// ========================================

// Close 安全关闭客户端连接
func (client *FeedClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		if client.conn != nil {
			client.conn.Close()
		}
	}
}

// IsClosed 检查连接是否已关闭
func (client *FeedClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// UpdatePing 更新最后ping时间
func (client *FeedClient) UpdatePing() {
	client.lastPing = time.Now()
}

// IsExpired 检查连接是否超时
func (client *FeedClient) IsExpired(timeout time.Duration) bool {
	if timeout <= 0 {
		return true
	}
	return time.Since(client.lastPing) > timeout
}

// ========================================
// StorageFeed 方法
// ========================================

// run 运行广播器主循环
func (feed *StorageFeed) run() {
	cleanupTicker := time.NewTicker(30 * time.Second)
	defer cleanupTicker.Stop()

	for {
		select {
		case client := <-feed.register:
			feed.registerClient(client)

		case client := <-feed.unregister:
			feed.unregisterClient(client)

		case <-cleanupTicker.C:
			feed.cleanupExpiredConnections()

		case message := <-feed.broadcast:
			feed.broadcastMessage(message)
		}
	}
}

// registerClient 注册新客户端
func (feed *StorageFeed) registerClient(client *FeedClient) {
	if client == nil {
		return
	}

	feed.mutex.Lock()
	defer feed.mutex.Unlock()

	feed.clients[client] = true
	client.UpdatePing()

	log.Printf("存储变更订阅客户端已连接，总数: %d", len(feed.clients))
}

// unregisterClient 安全注销客户端
func (feed *StorageFeed) unregisterClient(client *FeedClient) {
	if client == nil {
		return
	}

	feed.mutex.Lock()
	defer feed.mutex.Unlock()

	delete(feed.clients, client)
	if !client.IsClosed() {
		client.Close()
	}

	log.Printf("存储变更订阅客户端已断开，总数: %d", len(feed.clients))
}

// cleanupExpiredConnections 清理过期和死连接
func (feed *StorageFeed) cleanupExpiredConnections() {
	feed.mutex.Lock()
	defer feed.mutex.Unlock()

	for client := range feed.clients {
		if client.IsClosed() || client.IsExpired(feed.pingTimeout) {
			delete(feed.clients, client)
			if !client.IsClosed() {
				client.Close()
			}
		}
	}
}

// broadcastMessage 广播消息到所有客户端
func (feed *StorageFeed) broadcastMessage(message []byte) {
	feed.mutex.RLock()
	defer feed.mutex.RUnlock()

	for client := range feed.clients {
		if client.IsClosed() {
			continue
		}
		select {
		case client.send <- message:
		default:
			// 队列满，丢弃而不阻塞
			log.Printf("警告: 存储变更消息队列已满，消息被丢弃")
		}
	}
}

// PublishChange 把一次存储变更事件推入广播队列。
// 由存储订阅回调调用，不阻塞写路径。
func PublishChange(event storage.ChangeEvent) {
	payload := map[string]interface{}{
		"type":      "storage_change",
		"key":       event.Key,
		"action":    string(event.Action),
		"timestamp": event.Timestamp.Format(time.RFC3339),
	}

	msgBytes, err := json.Marshal(payload)
	if err != nil {
		return
	}

	select {
	case storageFeed.broadcast <- msgBytes:
	default:
		log.Printf("警告: 广播队列已满，存储变更事件被丢弃 (key=%s)", event.Key)
	}
}

// ClientCount 返回当前连接的客户端数
func (feed *StorageFeed) ClientCount() int {
	feed.mutex.RLock()
	defer feed.mutex.RUnlock()
	return len(feed.clients)
}

// ========================================
// 连接处理
// ========================================

// StorageFeedWebSocket 升级连接并启动读写协程
func (h *Handler) StorageFeedWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket升级失败: %v", err)
		return
	}

	client := &FeedClient{
		conn:      conn,
		send:      make(chan []byte, 64),
		lastPing:  time.Now(),
		createdAt: time.Now(),
	}

	storageFeed.register <- client

	go client.writePump()
	go client.readPump()
}

// writePump 把队列中的消息写出，并维持ping
func (client *FeedClient) writePump() {
	pingTicker := time.NewTicker(30 * time.Second)
	defer func() {
		pingTicker.Stop()
		storageFeed.unregister <- client
	}()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-pingTicker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 消费客户端消息，维持pong超时
func (client *FeedClient) readPump() {
	defer func() {
		storageFeed.unregister <- client
	}()

	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(storageFeed.pingTimeout))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		client.conn.SetReadDeadline(time.Now().Add(storageFeed.pingTimeout))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
		client.UpdatePing()
	}
}

// GetWebSocketStatus 调试端点：当前连接状态
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	h.responseHelper.Success(c, map[string]interface{}{
		"connected_clients": storageFeed.ClientCount(),
	})
}

// CleanupWebSocketConnections 手动触发一次过期连接清理
func (h *Handler) CleanupWebSocketConnections(c *gin.Context) {
	storageFeed.cleanupExpiredConnections()
	h.responseHelper.Success(c, map[string]interface{}{
		"connected_clients": storageFeed.ClientCount(),
	}, "清理完成")
}
