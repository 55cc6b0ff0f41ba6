package models

type Repository interface {
	OpenSession(session *Session) error
	CloseSession(id int64, timestamp int64) error
	GetOpenSessions() ([]*Session, error)

	AddBalanceSnapshot(snapshot *BalanceSnapshot) error
	GetBalanceSnapshots(account string, limit int) ([]*BalanceSnapshot, error)

	Close() error
}
