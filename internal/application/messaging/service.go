// Package messaging owns the append-only "messages" log and derives the
// conversation list from it on read.
package messaging

import (
	"context"
	"errors"
	"time"

	"motorhub-backend/internal/domain"
	"motorhub-backend/internal/infrastructure/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Service struct {
	store store.Store
	cache *conversationCache
	now   func() time.Time
	newID func() string
}

// NewService builds the messaging service. With cacheConversations set the
// derived conversation lists are memoized until the log changes; run Watch to
// also pick up writes made by other processes. The cache stays off when the
// store's change feed cannot see those writes.
func NewService(s store.Store, cacheConversations bool) *Service {
	svc := &Service{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	if cacheConversations && !store.ObservesAllWrites(s) {
		log.Info().Msg("messaging: store change feed is process-local, conversation cache disabled")
		cacheConversations = false
	}
	if cacheConversations {
		svc.cache = newConversationCache()
	}
	return svc
}

// Caching reports whether conversation lists are memoized.
func (s *Service) Caching() bool {
	return s.cache != nil
}

func (s *Service) messages(ctx context.Context) ([]domain.Message, error) {
	return store.Load(ctx, s.store, store.KeyMessages, []domain.Message{})
}

func (s *Service) invalidate() {
	if s.cache != nil {
		s.cache.invalidate()
	}
}

// Send appends a message from currentUserID to receiverID about listingID.
func (s *Service) Send(ctx context.Context, currentUserID, listingID, receiverID, content string) (*domain.Message, error) {
	if currentUserID == "" {
		return nil, ErrUnauthenticated
	}
	msg := domain.Message{
		ID:         s.newID(),
		ListingID:  listingID,
		SenderID:   currentUserID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  s.now(),
		Read:       false,
	}
	err := store.Mutate(ctx, s.store, store.KeyMessages, func(msgs []domain.Message) ([]domain.Message, error) {
		return append(msgs, msg), nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate()
	log.Debug().Str("message_id", msg.ID).Str("listing_id", listingID).Msg("messaging: sent")
	return &msg, nil
}

// MarkAsRead flags every message whose id is in ids as read. Unknown ids are
// ignored and nothing is written when no message changes.
func (s *Service) MarkAsRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	err := store.Mutate(ctx, s.store, store.KeyMessages, func(msgs []domain.Message) ([]domain.Message, error) {
		changed := false
		next := make([]domain.Message, len(msgs))
		for i, m := range msgs {
			if _, ok := want[m.ID]; ok && !m.Read {
				m.Read = true
				changed = true
			}
			next[i] = m
		}
		if !changed {
			return nil, errNoChange
		}
		return next, nil
	})
	if errors.Is(err, errNoChange) {
		return nil
	}
	if err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// ConversationMessages returns the thread between currentUserID and
// otherUserID on listingID, oldest first.
func (s *Service) ConversationMessages(ctx context.Context, currentUserID, listingID, otherUserID string) ([]domain.Message, error) {
	if currentUserID == "" {
		return []domain.Message{}, nil
	}
	msgs, err := s.messages(ctx)
	if err != nil {
		return nil, err
	}
	return threadOf(msgs, listingID, currentUserID, otherUserID), nil
}

// Conversations derives currentUserID's conversation list, most recent first.
func (s *Service) Conversations(ctx context.Context, currentUserID string) ([]domain.Conversation, error) {
	if currentUserID == "" {
		return []domain.Conversation{}, nil
	}
	var generation uint64
	if s.cache != nil {
		if convs, ok := s.cache.get(currentUserID); ok {
			return convs, nil
		}
		generation = s.cache.snapshot()
	}
	msgs, err := s.messages(ctx)
	if err != nil {
		return nil, err
	}
	convs := DeriveConversations(currentUserID, msgs)
	if s.cache != nil {
		s.cache.put(currentUserID, generation, convs)
	}
	return convs, nil
}

// UnreadCount is the number of unread messages addressed to userID across all
// conversations.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	convs, err := s.Conversations(ctx, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range convs {
		n += c.UnreadCount
	}
	return n, nil
}

// UserMessages returns every message userID sent or received, oldest first.
func (s *Service) UserMessages(ctx context.Context, userID string) ([]domain.Message, error) {
	msgs, err := s.messages(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Message, 0)
	for _, m := range msgs {
		if userID != "" && m.Involves(userID) {
			out = append(out, m)
		}
	}
	sortAscending(out)
	return out, nil
}

// Watch invalidates the conversation cache whenever the message log changes in
// the store, including writes from other processes. It blocks until ctx is
// cancelled or the subscription ends.
func (s *Service) Watch(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	changes, err := s.store.Subscribe(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			if c.Key == store.KeyMessages {
				s.cache.invalidate()
			}
		}
	}
}
