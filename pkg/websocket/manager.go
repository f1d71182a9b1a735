package websocket

import "sync"

// Manager 统计每个用户的活跃连接数
// 首个连接建立时上线，最后一个连接关闭时离线
type Manager struct {
	conns map[uint]int
	lock  sync.Mutex
}

func NewManager() *Manager {
	return &Manager{conns: make(map[uint]int)}
}

// Connect 登记连接，返回是否为该用户的首个连接
func (m *Manager) Connect(userID uint) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.conns[userID]++
	return m.conns[userID] == 1
}

// Disconnect 注销连接，返回是否为该用户的最后一个连接
func (m *Manager) Disconnect(userID uint) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	n, ok := m.conns[userID]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(m.conns, userID)
		return true
	}
	m.conns[userID] = n - 1
	return false
}

// IsOnline 用户是否有活跃连接
func (m *Manager) IsOnline(userID uint) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.conns[userID] > 0
}

// Users 有活跃连接的用户数
func (m *Manager) Users() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.conns)
}
