package app

import (
	"context"
	"fmt"

	"portfolio/api/internal/realtime"
)

// LoadTopic reads the snapshot pushed to subscribers of topic.
func (s *Service) LoadTopic(ctx context.Context, topic string) (any, error) {
	switch topic {
	case realtime.TopicPages:
		return s.ListPages(ctx)
	case realtime.TopicResume:
		return s.GetResume(ctx)
	case realtime.TopicMessages:
		return s.store.ListMessages(ctx)
	}
	if pageID, ok := realtime.PageIDOf(topic); ok {
		return s.PageBlocks(ctx, pageID)
	}
	return nil, fmt.Errorf("%w: %q", realtime.ErrUnknownTopic, topic)
}
