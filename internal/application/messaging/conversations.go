package messaging

import (
	"sort"

	"motorhub-backend/internal/domain"
)

// DeriveConversations groups the messages userID takes part in by listing and
// counterpart. Each conversation carries its newest message and the number of
// messages addressed to userID that are still unread. The result is ordered
// most recently active first.
func DeriveConversations(userID string, log []domain.Message) []domain.Conversation {
	type groupKey struct{ listingID, counterpart string }

	index := make(map[groupKey]int)
	out := make([]domain.Conversation, 0)
	for _, m := range log {
		if !m.Involves(userID) {
			continue
		}
		k := groupKey{m.ListingID, m.Counterpart(userID)}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, domain.Conversation{
				ID:             domain.ConversationID(k.listingID, k.counterpart),
				ListingID:      k.listingID,
				ParticipantIDs: [2]string{userID, k.counterpart},
				LastMessage:    m,
			})
		} else if !m.CreatedAt.Before(out[i].LastMessage.CreatedAt) {
			// Equal timestamps resolve to the later log entry.
			out[i].LastMessage = m
		}
		if m.ReceiverID == userID && !m.Read {
			out[i].UnreadCount++
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessage.CreatedAt.After(out[j].LastMessage.CreatedAt)
	})
	return out
}

// threadOf filters log to the messages on listingID exchanged between a and b,
// oldest first.
func threadOf(log []domain.Message, listingID, a, b string) []domain.Message {
	out := make([]domain.Message, 0)
	for _, m := range log {
		if m.ListingID != listingID {
			continue
		}
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	sortAscending(out)
	return out
}

func sortAscending(msgs []domain.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}
