package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
)

// memoryPurchaseOrders serves a PO database loaded from the JSON file when no
// SQL store is configured. Orders keep file order.
type memoryPurchaseOrders struct {
	mu     sync.RWMutex
	orders []entity.PurchaseOrder
	index  map[string]int
}

func NewMemoryPurchaseOrderRepository(orders []entity.PurchaseOrder) PurchaseOrderRepository {
	m := &memoryPurchaseOrders{index: map[string]int{}}
	_, _ = m.UpsertPurchaseOrders(context.Background(), orders)
	return m
}

func (m *memoryPurchaseOrders) UpsertPurchaseOrders(_ context.Context, orders []entity.PurchaseOrder) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, po := range orders {
		if i, ok := m.index[po.PONumber]; ok {
			m.orders[i] = po
			continue
		}
		m.index[po.PONumber] = len(m.orders)
		m.orders = append(m.orders, po)
	}
	return len(orders), nil
}

func (m *memoryPurchaseOrders) ListPurchaseOrders(context.Context) ([]entity.PurchaseOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]entity.PurchaseOrder(nil), m.orders...), nil
}

func (m *memoryPurchaseOrders) GetPurchaseOrder(_ context.Context, poNumber string) (*entity.PurchaseOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[poNumber]
	if !ok {
		return nil, fmt.Errorf("purchase order %s: %w", poNumber, common.ErrNotFound)
	}
	po := m.orders[i]
	return &po, nil
}
