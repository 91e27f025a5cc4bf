package api

import "github.com/sirupsen/logrus"

type sseMessage struct {
	event string
	data  interface{}
}

func (h *HTTPHandler) registerSSEClient(clientID string, ch chan sseMessage) {
	if h == nil || ch == nil || clientID == "" {
		return
	}
	h.sseMu.Lock()
	defer h.sseMu.Unlock()

	if h.sseClients == nil {
		h.sseClients = make(map[string]chan sseMessage)
	}
	h.sseClients[clientID] = ch
}

func (h *HTTPHandler) unregisterSSEClient(clientID string, target chan sseMessage) {
	if h == nil || target == nil || clientID == "" {
		return
	}
	h.sseMu.Lock()
	defer h.sseMu.Unlock()

	if h.sseClients[clientID] == target {
		delete(h.sseClients, clientID)
	}
}

// broadcastSSEMessage 把事件推送给所有已连接客户端。
// 生成循环与图片状态是全局共享的，事件不做按客户端过滤。
func (h *HTTPHandler) broadcastSSEMessage(msg sseMessage) {
	if h == nil {
		return
	}

	h.sseMu.Lock()
	channels := make(map[string]chan sseMessage, len(h.sseClients))
	for id, ch := range h.sseClients {
		channels[id] = ch
	}
	h.sseMu.Unlock()

	for clientID, ch := range channels {
		select {
		case ch <- msg:
		default:
			logrus.WithFields(logrus.Fields{
				"client_id": clientID,
				"event":     msg.event,
			}).Warn("dropping sse message due to slow consumer")
		}
	}
}
