package api

// Типы сообщений sync-транспорта. Транспорт контентно-агностичен:
// payload — непрозрачная CRDT-дельта, никакое сообщение не несет
// plaintext-контент узлов вне этой кодировки.
const (
	WSTypeDelta          = "delta"
	WSTypeResyncRequest  = "resync-request"
	WSTypeResyncResponse = "resync-response"
)

// WSMessage кадр дуплексного соединения (участник, workspace).
type WSMessage struct {
	Type string `json:"type"`

	// Payload непрозрачная дельта (delta, resync-response).
	Payload []byte `json:"payload,omitempty"`

	// Since checkpoint клиента в resync-request: сервер отвечает
	// дельтами после этой точки либо полным снимком.
	Since int64 `json:"since,omitempty"`

	// Checkpoint серверный sequence, присвоенный дельте (delta),
	// либо актуальный checkpoint после resync (resync-response).
	Checkpoint int64 `json:"checkpoint,omitempty"`
}
