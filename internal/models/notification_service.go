package models

import "fmt"

type NotificationService interface {
	SendNotification(notification *Notification)
}

// Notification describes a connection lifecycle event worth telling the user about.
type Notification struct {
	Event     string `json:"event"`
	Connector string `json:"connector"`
	Account   string `json:"account"`
	ChainID   uint64 `json:"chain_id"`
	Error     string `json:"error,omitempty"`
}

func (n *Notification) String() string {
	switch {
	case n.Error != "":
		return fmt.Sprintf("%s: %s failed: %s", n.Connector, n.Event, n.Error)
	case n.Account != "":
		return fmt.Sprintf("%s: %s %s on chain %d", n.Connector, n.Event, n.Account, n.ChainID)
	}
	return fmt.Sprintf("%s: %s", n.Connector, n.Event)
}
