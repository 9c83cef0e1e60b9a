package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// IssuedForm is a signed eSewa form handed to a customer and not yet paid.
type IssuedForm struct {
	TransactionUUID string            `json:"transactionUuid"`
	OrderRef        string            `json:"orderRef"`
	CustomerID      int               `json:"customerId"`
	TotalAmount     string            `json:"totalAmount"`
	FormURL         string            `json:"formUrl"`
	Fields          map[string]string `json:"fields"`
	CachedAt        time.Time         `json:"cachedAt"`
}

// PaymentCache remembers issued forms per customer and order so that
// re-opening the payment page reuses the same transaction instead of
// creating another pending payment.
type PaymentCache struct {
	redis *RedisClient
	ttl   time.Duration
}

// NewPaymentCache creates a PaymentCache whose entries live for ttl.
func NewPaymentCache(redis *RedisClient, ttl time.Duration) *PaymentCache {
	return &PaymentCache{redis: redis, ttl: ttl}
}

// keyForOrder returns the Redis key for a customer's order form.
func keyForOrder(customerID int, orderRef string) string {
	return fmt.Sprintf("esewa:form:%d:%s", customerID, orderRef)
}

// SetForm stores form under its customer and order.
func (c *PaymentCache) SetForm(ctx context.Context, form *IssuedForm) error {
	form.CachedAt = time.Now()
	data, err := json.Marshal(form)
	if err != nil {
		return fmt.Errorf("failed to marshal issued form: %w", err)
	}
	if err := c.redis.Set(ctx, keyForOrder(form.CustomerID, form.OrderRef), data, c.ttl); err != nil {
		return fmt.Errorf("failed to cache issued form: %w", err)
	}
	return nil
}

// GetForm returns the cached form for an order, or ErrCacheMiss.
func (c *PaymentCache) GetForm(ctx context.Context, customerID int, orderRef string) (*IssuedForm, error) {
	data, err := c.redis.Get(ctx, keyForOrder(customerID, orderRef))
	if err != nil {
		return nil, err
	}
	var form IssuedForm
	if err := json.Unmarshal(data, &form); err != nil {
		return nil, fmt.Errorf("failed to unmarshal issued form: %w", err)
	}
	return &form, nil
}

// DeleteForm forgets the cached form for an order.
func (c *PaymentCache) DeleteForm(ctx context.Context, customerID int, orderRef string) error {
	return c.redis.Delete(ctx, keyForOrder(customerID, orderRef))
}
