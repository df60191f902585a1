package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rabbitmq/amqp091-go"
)

const RoutingKey = "mail.send"

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// AMQPMailer hands messages to a topic exchange; a notification worker owns
// actual delivery.
type AMQPMailer struct {
	conn     *amqp091.Connection
	channel  publisher
	exchange string
	from     string
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// DialAMQP connects to RabbitMQ and declares the durable topic exchange.
func DialAMQP(amqpURL, exchange, from string) (*AMQPMailer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}
	conn, err := amqp091.Dial(cleanURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &AMQPMailer{conn: conn, channel: channel, exchange: exchange, from: from}, nil
}

func (m *AMQPMailer) Send(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(Message{From: m.from, To: to, Subject: subject, Body: body})
	if err != nil {
		return fmt.Errorf("failed to marshal mail message: %w", err)
	}
	err = m.channel.PublishWithContext(ctx, m.exchange, RoutingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("failed to publish mail message: %w", err)
	}
	return nil
}

func (m *AMQPMailer) Close() {
	if c, ok := m.channel.(*amqp091.Channel); ok && c != nil {
		c.Close()
	}
	if m.conn != nil {
		m.conn.Close()
	}
}
