package kafkax

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

// ReadyCheck dials the first configured broker. One reachable broker is
// enough for readiness; partition leadership is the broker's problem.
func ReadyCheck(brokers string) func(context.Context) error {
	return func(ctx context.Context) error {
		addrs := SplitBrokers(brokers)
		if len(addrs) == 0 {
			return errors.New("kafka brokers not configured")
		}
		d := kafka.Dialer{Timeout: 2 * time.Second}
		conn, err := d.DialContext(ctx, "tcp", addrs[0])
		if err != nil {
			return err
		}
		return conn.Close()
	}
}
