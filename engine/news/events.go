package news

import (
	"context"

	"github.com/pochini/pochini/pkg/natsutil"
)

// DefaultSubject carries a JSON Article for every stored feed entry.
const DefaultSubject = "pochini.news.created"

// PublishSink publishes stored articles on a NATS subject.
func PublishSink(p natsutil.Publisher, subject string) Sink {
	if subject == "" {
		subject = DefaultSubject
	}
	return SinkFunc(func(ctx context.Context, a Article) error {
		return natsutil.Publish(ctx, p, subject, a)
	})
}
