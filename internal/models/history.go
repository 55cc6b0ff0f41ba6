package models

// Session is one connector session, from a successful activation to its
// disconnect.
type Session struct {
	// ID is the unique identifier for the session.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// Connector is the connector variant that opened the session (node, watch).
	Connector string `json:"connector" gorm:"column:connector;not null"`
	// Account is the connected account address.
	Account string `json:"account" gorm:"column:account;index;not null"`
	// ChainID is the network the session was opened on.
	ChainID uint64 `json:"chain_id" gorm:"column:chain_id"`
	// ConnectedAt is the Unix timestamp of the activation.
	ConnectedAt int64 `json:"connected_at" gorm:"column:connected_at;index"`
	// DisconnectedAt is the Unix timestamp of the disconnect, 0 while open.
	DisconnectedAt int64 `json:"disconnected_at" gorm:"column:disconnected_at"`
}

// BalanceSnapshot is a balance that was displayed for an account.
type BalanceSnapshot struct {
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// SessionID links the snapshot to the session it was observed in.
	SessionID int64  `json:"session_id" gorm:"column:session_id;index"`
	Account   string `json:"account" gorm:"column:account;index;not null"`
	ChainID   uint64 `json:"chain_id" gorm:"column:chain_id"`
	// Amount is the balance in the smallest denomination, as a decimal string.
	Amount    string `json:"amount" gorm:"column:amount;not null"`
	Timestamp int64  `json:"timestamp" gorm:"column:timestamp;index"`
}
