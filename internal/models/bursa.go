package models

// View is what a front-end renders: the connect control and the balance.
type View struct {
	Connector string `json:"connector"`
	Status    string `json:"status"`
	Disabled  bool   `json:"disabled"`
	Account   string `json:"account,omitempty"`
	ChainID   uint64 `json:"chain_id,omitempty"`
	Network   string `json:"network,omitempty"`
	Balance   string `json:"balance"`
	Error     string `json:"error,omitempty"`
}

type BursaI interface {
	// Connect presses the connect control. It fails when the control is disabled.
	Connect() error

	// Disconnect ends the active session and clears any connection error.
	Disconnect() error

	// View returns the current view.
	View() View

	// History returns the latest balance snapshots recorded for account.
	History(account string, limit int) ([]*BalanceSnapshot, error)
}

type APIServer interface {
	Start()
	Shutdown() error
}
