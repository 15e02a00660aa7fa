package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"ecommerce-backend/config"
	"ecommerce-backend/logging"
	"ecommerce-backend/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

type OrderLookup interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
}

// OrderConsumer 处理订单事件和死信
type OrderConsumer struct {
	orders OrderLookup
	log    *slog.Logger
}

func NewOrderConsumer(orders OrderLookup, logger *slog.Logger) *OrderConsumer {
	return &OrderConsumer{orders: orders, log: logging.Module(logger, "OrderConsumer")}
}

// DeliverySource is the part of *amqp.Channel the consumer needs.
type DeliverySource interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

func (c *OrderConsumer) Start(ch DeliverySource, cfg *config.Config) error {
	// 消费主订单队列
	msgs, err := ch.Consume(
		cfg.OrderQueue,
		"order-service", // consumer tag
		false,           // auto-ack
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,
	)
	if err != nil {
		return err
	}
	go func() {
		for msg := range msgs {
			c.handleDelivery(msg)
		}
		c.log.Warn("order queue delivery channel closed")
	}()

	// 消费死信队列
	dlqMsgs, err := ch.Consume(cfg.DeadLetterQueue, "order-service-dlq", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("register dead letter consumer: %w", err)
	}
	go func() {
		for msg := range dlqMsgs {
			c.log.Warn("received dead letter", "body", string(msg.Body), "type", msg.Type)
			_ = msg.Ack(false)
		}
	}()
	return nil
}

type acker interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func (c *OrderConsumer) handleDelivery(msg amqp.Delivery) {
	c.process(msg.Body, msg)
}

func (c *OrderConsumer) process(body []byte, ack acker) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("recovered from panic in message processing", "panic", r)
			_ = ack.Nack(false, false)
		}
	}()

	var event models.OrderEvent
	if err := json.Unmarshal(body, &event); err != nil || event.OrderID == 0 {
		c.log.Error("invalid message format", "body", string(body))
		_ = ack.Nack(false, false) // 拒绝消息，不重新入队
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.Handle(ctx, event); err != nil {
		c.log.Error("failed to handle order event", "order_id", event.OrderID, "type", event.Type, "error", err)
		_ = ack.Nack(false, false)
		return
	}
	_ = ack.Ack(false)
}

// Handle dispatches a decoded event by type.
func (c *OrderConsumer) Handle(ctx context.Context, event models.OrderEvent) error {
	switch event.Type {
	case "created":
		c.log.Info("handling order created", "order_id", event.OrderID, "total", event.Total.String())
	case "payment_check":
		return c.handlePaymentCheck(ctx, event.OrderID)
	case "compensation_failed":
		c.log.Error("order left partially committed, manual repair needed",
			"order_id", event.OrderID, "reason", event.Reason)
	default:
		c.log.Warn("unknown event type", "type", event.Type, "order_id", event.OrderID)
	}
	return nil
}

func (c *OrderConsumer) handlePaymentCheck(ctx context.Context, orderID int64) error {
	order, err := c.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.IsPaid {
		c.log.Warn("order still unpaid after payment window", "order_id", orderID, "email", order.Email)
		return nil
	}
	c.log.Info("order paid", "order_id", orderID)
	return nil
}
