package push

import (
	"context"
	"encoding/json"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wyecare/calendar-gateway/internal/domain"
)

// 平台推送日历变更事件所用的队列
const QueueName = "calendar_events"

// Refresher 是收到推送事件后要触发的动作
// 事件只会触发重新拉取权威数据，从不携带或应用增量修改
type Refresher interface {
	RefreshUser(ctx context.Context, userID int64, kind string)
}

// Channel 是消费者用到的那部分 rabbitmq 通道能力，*amqp.Channel 直接满足
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

type Consumer struct {
	ch        Channel
	refresher Refresher
}

// NewConsumer 声明队列并创建消费者
func NewConsumer(ch Channel, refresher Refresher) (*Consumer, error) {
	_, err := ch.QueueDeclare(
		QueueName,
		true,  // 持久化
		false, // 不自动删除，避免没有消费者时队列被清掉
		false, // 不独占
		false, // 等待 RabbitMQ 确认队列创建成功
		nil,
	)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		ch:        ch,
		refresher: refresher,
	}, nil
}

// Run 持续消费推送事件，直到 ctx 被取消
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.ch.Consume(
		QueueName,
		"",    // 消费者标识由 RabbitMQ 自动分配
		false, // 手动确认
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}

			event := domain.PushEvent{}
			if err := json.Unmarshal(msg.Body, &event); err != nil {
				slog.Error("推送事件反序列化失败", "error", err)
				_ = msg.Nack(false, false)
				continue
			}

			slog.Info("收到日历变更推送", "userID", event.UserID, "kind", event.Kind)
			c.refresher.RefreshUser(ctx, event.UserID, event.Kind)
			_ = msg.Ack(false)
		}
	}
}
