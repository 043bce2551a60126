package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"nursery-api/internal/models"
	"nursery-api/internal/store"
)

// memStore is an in-memory OrderStore/ProductStore. WithTx holds a single
// mutex for the whole transaction and works on copies, so transactions are
// serialized and a failed one leaves no trace.
type memStore struct {
	mu          sync.Mutex
	products    map[int64]models.Product
	orders      map[int64]models.Order
	items       []models.OrderItem
	nextOrderID int64
	nextItemID  int64
	txCount     int
	commitErr   error
	events      map[string]bool
	categories  []models.Category
}

func newMemStore() *memStore {
	return &memStore{
		products:    map[int64]models.Product{},
		orders:      map[int64]models.Order{},
		nextOrderID: 1,
		nextItemID:  1,
		events:      map[string]bool{},
	}
}

func (m *memStore) addProduct(id int64, name, price string, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[id] = models.Product{ID: id, Name: name, Price: models.MustMoney(price), Stock: stock}
}

func (m *memStore) stock(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memStore) itemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *memStore) WithTx(ctx context.Context, fn func(tx store.OrderTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++

	tx := &memTx{
		products:    make(map[int64]models.Product, len(m.products)),
		orders:      make(map[int64]models.Order, len(m.orders)),
		items:       append([]models.OrderItem(nil), m.items...),
		nextOrderID: m.nextOrderID,
		nextItemID:  m.nextItemID,
	}
	for k, v := range m.products {
		tx.products[k] = v
	}
	for k, v := range m.orders {
		tx.orders[k] = v
	}

	if err := fn(tx); err != nil {
		return err
	}
	if m.commitErr != nil {
		return fmt.Errorf("failed to commit transaction: %w", m.commitErr)
	}

	m.products = tx.products
	m.orders = tx.orders
	m.items = tx.items
	m.nextOrderID = tx.nextOrderID
	m.nextItemID = tx.nextItemID
	return nil
}

func (m *memStore) GetOrderDetails(ctx context.Context, id int64) (*models.OrderDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, store.ErrNotFound)
	}
	details := &models.OrderDetails{Order: order, Items: []models.OrderItemDetails{}}
	for _, item := range m.items {
		if item.OrderID != id {
			continue
		}
		p := m.products[item.ProductID]
		details.Items = append(details.Items, models.OrderItemDetails{
			OrderItem: item,
			Product:   models.ProductSnapshot{ID: p.ID, Name: p.Name, Price: p.Price},
		})
	}
	return details, nil
}

func (m *memStore) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	orders := []models.Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID > orders[j].ID })
	return orders, nil
}

func (m *memStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, store.ErrNotFound)
	}
	return &p, nil
}

func (m *memStore) ListProducts(ctx context.Context, categoryID *int64) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	products := []models.Product{}
	for _, p := range m.products {
		if categoryID != nil && (p.CategoryID == nil || *p.CategoryID != *categoryID) {
			continue
		}
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (m *memStore) CreateProduct(ctx context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	product.ID = int64(len(m.products) + 1)
	product.CreatedAt = time.Now()
	product.UpdatedAt = product.CreatedAt
	m.products[product.ID] = *product
	return nil
}

func (m *memStore) UpdateProduct(ctx context.Context, id int64, patch models.ProductPatch) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, store.ErrNotFound)
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.CategoryID != nil {
		p.CategoryID = patch.CategoryID
	}
	p.UpdatedAt = time.Now()
	m.products[id] = p
	return &p, nil
}

func (m *memStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Category{}, m.categories...), nil
}

func (m *memStore) CreateCategory(ctx context.Context, category *models.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		if c.Name == category.Name {
			return fmt.Errorf("category %q: %w", category.Name, store.ErrDuplicate)
		}
	}
	category.ID = int64(len(m.categories) + 1)
	m.categories = append(m.categories, *category)
	return nil
}

func (m *memStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[eventID], nil
}

func (m *memStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[eventID] = true
	return nil
}

type memTx struct {
	products    map[int64]models.Product
	orders      map[int64]models.Order
	items       []models.OrderItem
	nextOrderID int64
	nextItemID  int64
}

func (t *memTx) GetProductForUpdate(ctx context.Context, id int64) (*models.Product, error) {
	p, ok := t.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, store.ErrNotFound)
	}
	return &p, nil
}

func (t *memTx) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	p := t.products[productID]
	if p.Stock < quantity {
		return fmt.Errorf("stock update for product %d affected no rows", productID)
	}
	p.Stock -= quantity
	t.products[productID] = p
	return nil
}

func (t *memTx) IncrementStock(ctx context.Context, productID int64, quantity int) error {
	p := t.products[productID]
	p.Stock += quantity
	t.products[productID] = p
	return nil
}

func (t *memTx) CreateOrder(ctx context.Context, order *models.Order) error {
	order.ID = t.nextOrderID
	t.nextOrderID++
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	t.orders[order.ID] = *order
	return nil
}

func (t *memTx) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	item.ID = t.nextItemID
	t.nextItemID++
	t.items = append(t.items, *item)
	return nil
}

func (t *memTx) GetOrderForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	o, ok := t.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, store.ErrNotFound)
	}
	return &o, nil
}

func (t *memTx) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	for _, item := range t.items {
		if item.OrderID == orderID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (t *memTx) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	o := t.orders[orderID]
	o.Status = status
	t.orders[orderID] = o
	return nil
}

func (t *memTx) UpdateOrderPayment(ctx context.Context, orderID int64, paymentStatus, status string) error {
	o := t.orders[orderID]
	o.PaymentStatus = paymentStatus
	o.Status = status
	t.orders[orderID] = o
	return nil
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu            sync.Mutex
	placed        []*models.OrderPlacedEvent
	statusChanged []*models.OrderStatusChangedEvent
	paid          []*models.OrderPaidEvent
	err           error
}

func (r *recordingPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.placed = append(r.placed, event)
	return r.err
}

func (r *recordingPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statusChanged = append(r.statusChanged, event)
	return r.err
}

func (r *recordingPublisher) PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paid = append(r.paid, event)
	return r.err
}

// memIdempotency is an IdempotencyStore over a map
type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{keys: map[string]string{}}
}

func (m *memIdempotency) ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = "pending"
	return true, nil
}

func (m *memIdempotency) CompleteIdempotencyKey(ctx context.Context, key string, orderID int64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = fmt.Sprint(orderID)
	return nil
}

func (m *memIdempotency) GetIdempotencyKey(ctx context.Context, key string) (int64, bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.keys[key]
	if !ok {
		return 0, false, false, nil
	}
	if val == "pending" {
		return 0, true, true, nil
	}
	var id int64
	_, err := fmt.Sscan(val, &id)
	return id, false, true, err
}

func (m *memIdempotency) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

// memCache is a ProductCache over a map
type memCache struct {
	mu          sync.Mutex
	products    map[int64]models.Product
	invalidated []int64
}

func newMemCache() *memCache {
	return &memCache{products: map[int64]models.Product{}}
}

func (c *memCache) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (c *memCache) SetProduct(ctx context.Context, product *models.Product, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[product.ID] = *product
	return nil
}

func (c *memCache) InvalidateProducts(ctx context.Context, productIDs ...int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range productIDs {
		delete(c.products, id)
		c.invalidated = append(c.invalidated, id)
	}
	return nil
}
