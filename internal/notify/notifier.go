package notify

import (
	"context"

	"go.uber.org/zap"
)

// Message is one notification addressed to a student.
type Message struct {
	StudentID int64
	BookingID int64
	Email     string
	Type      string
	Title     string
	Body      string
}

// Notifier delivers messages. Implementations must honour ctx cancellation.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes messages to the log instead of a delivery provider.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := n.Logger
	if l == nil {
		l = zap.NewNop()
	}
	l.Info("notification dispatched",
		zap.String("type", msg.Type),
		zap.Int64("student_id", msg.StudentID),
		zap.Int64("booking_id", msg.BookingID),
		zap.String("email", msg.Email),
		zap.String("title", msg.Title),
	)
	return nil
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, msg Message) error

func (f Func) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }
