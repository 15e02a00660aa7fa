package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ecommerce-backend/config"
	"ecommerce-backend/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrDelayedUnsupported is returned by PublishDelayedEvent when the broker
// has no delayed-message plugin.
var ErrDelayedUnsupported = errors.New("rabbitmq: delayed exchange not available")

type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	Cfg     *config.Config

	mu       sync.Mutex
	delayed  bool
	channels []*amqp.Channel
}

// NewRabbitMQ 连接 RabbitMQ，失败时按指数退避重试
func NewRabbitMQ(cfg *config.Config) (*RabbitMQ, error) {
	var (
		conn *amqp.Connection
		err  error
	)
	for i := 0; i < 5; i++ {
		conn, err = amqp.Dial(cfg.RabbitMQURL)
		if err == nil {
			break
		}
		retry := time.Duration(i*i)*time.Second + time.Second
		slog.Warn("failed to connect to RabbitMQ, retrying", "in", retry, "error", err)
		time.Sleep(retry)
	}
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	return &RabbitMQ{
		Conn:    conn,
		Channel: ch,
		Cfg:     cfg,
	}, nil
}

func (r *RabbitMQ) SetupQueues() error {
	// 声明死信交换机和队列
	if err := r.Channel.ExchangeDeclare(
		r.Cfg.DeadLetterQueue+"_exchange",
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return err
	}

	if _, err := r.Channel.QueueDeclare(
		r.Cfg.DeadLetterQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-queue-type": "classic"},
	); err != nil {
		return err
	}

	if err := r.Channel.QueueBind(r.Cfg.DeadLetterQueue, r.Cfg.DeadLetterQueue, r.Cfg.DeadLetterQueue+"_exchange", false, nil); err != nil {
		return err
	}

	// 订单事件交换机
	if err := r.Channel.ExchangeDeclare(r.Cfg.OrderExchange, "fanout", true, false, false, false, nil); err != nil {
		return err
	}

	// 声明延迟交换机（需要RabbitMQ安装延迟插件）
	delayed := true
	if err := r.Channel.ExchangeDeclare(
		r.Cfg.DelayExchange,
		"x-delayed-message",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		amqp.Table{"x-delayed-type": "fanout"},
	); err != nil {
		slog.Warn("delayed exchange not supported", "error", err)
		delayed = false
		// 声明失败会关闭 channel，需要重新打开
		if r.Channel, err = r.Conn.Channel(); err != nil {
			return err
		}
	}

	// 声明主订单队列（带优先级和死信）
	if _, err := r.Channel.QueueDeclare(
		r.Cfg.OrderQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-max-priority":            r.Cfg.MaxPriority,
			"x-dead-letter-exchange":    r.Cfg.DeadLetterQueue + "_exchange",
			"x-dead-letter-routing-key": r.Cfg.DeadLetterQueue,
		},
	); err != nil {
		return err
	}

	if err := r.Channel.QueueBind(r.Cfg.OrderQueue, "", r.Cfg.OrderExchange, false, nil); err != nil {
		return err
	}
	if delayed {
		if err := r.Channel.QueueBind(r.Cfg.OrderQueue, "", r.Cfg.DelayExchange, false, nil); err != nil {
			return err
		}
	}
	r.delayed = delayed
	return nil
}

// ConsumerChannel opens a channel dedicated to consumers, so a channel
// exception on the publishing side cannot stop deliveries.
func (r *RabbitMQ) ConsumerChannel() (*amqp.Channel, error) {
	ch, err := r.Conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consumer channel: %w", err)
	}
	r.channels = append(r.channels, ch)
	return ch, nil
}

func (r *RabbitMQ) PublishOrderEvent(ctx context.Context, event models.OrderEvent, priority uint8) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.publish(ctx, r.Cfg.OrderExchange, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		ContentType:  "application/json",
		Type:         event.Type,
		Body:         body,
		Priority:     priority,
	})
}

func (r *RabbitMQ) PublishDelayedEvent(ctx context.Context, event models.OrderEvent, delay time.Duration) error {
	// 未声明的交换机会触发 channel 异常并关闭 channel
	if !r.delayed {
		return ErrDelayedUnsupported
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.publish(ctx, r.Cfg.DelayExchange, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		ContentType:  "application/json",
		Type:         event.Type,
		Body:         body,
		Headers: amqp.Table{
			"x-delay": delay.Milliseconds(), // 延迟时间（毫秒）
		},
	})
}

func (r *RabbitMQ) publish(ctx context.Context, exchange string, msg amqp.Publishing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Channel.PublishWithContext(ctx, exchange, "", false, false, msg)
}

func (r *RabbitMQ) Close() {
	for _, ch := range r.channels {
		_ = ch.Close()
	}
	if r.Channel != nil {
		_ = r.Channel.Close()
	}
	if r.Conn != nil {
		_ = r.Conn.Close()
	}
}
