// Package blockchaintest runs an in-process go-core RPC node for tests.
package blockchaintest

import (
	"errors"
	"strconv"
	"sync"

	"github.com/core-coin/go-core/v2/rpc"
)

// Node answers the handful of RPC methods bursa uses.
type Node struct {
	mu        sync.Mutex
	networkID uint64
	accounts  []string
	balance   string
	server    *rpc.Server
}

// NewNode starts an in-process node reporting networkID and accounts.
func NewNode(networkID uint64, accounts ...string) (*Node, error) {
	n := &Node{networkID: networkID, accounts: accounts, balance: "0x0", server: rpc.NewServer()}
	if err := n.server.RegisterName("net", &netService{node: n}); err != nil {
		return nil, err
	}
	if err := n.server.RegisterName("xcb", &xcbService{node: n}); err != nil {
		return nil, err
	}
	return n, nil
}

// Dial returns a fresh client connected to the node.
func (n *Node) Dial() *rpc.Client {
	return rpc.DialInProc(n.server)
}

// SetNetworkID changes the network id reported from now on.
func (n *Node) SetNetworkID(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.networkID = id
}

// SetBalance sets the hex encoded balance reported for every account.
func (n *Node) SetBalance(hex string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.balance = hex
}

func (n *Node) Stop() {
	n.server.Stop()
}

type netService struct {
	node *Node
}

func (s *netService) Version() string {
	s.node.mu.Lock()
	defer s.node.mu.Unlock()
	return strconv.FormatUint(s.node.networkID, 10)
}

type xcbService struct {
	node *Node
}

func (s *xcbService) Accounts() []string {
	s.node.mu.Lock()
	defer s.node.mu.Unlock()
	return append([]string{}, s.node.accounts...)
}

func (s *xcbService) GetBalance(address string, block string) (string, error) {
	if address == "" {
		return "", errors.New("empty address")
	}
	s.node.mu.Lock()
	defer s.node.mu.Unlock()
	return s.node.balance, nil
}
