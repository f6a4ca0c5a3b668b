package domain

import "time"

// Message is one element of the append-only "messages" log.
type Message struct {
	ID         string    `json:"id"`
	ListingID  string    `json:"listingId"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	Read       bool      `json:"read"`
}

// Involves reports whether userID is the sender or the receiver of m.
func (m Message) Involves(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// Counterpart returns the participant of m that is not userID.
func (m Message) Counterpart(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// Conversation is derived from the message log on read and never stored.
type Conversation struct {
	ID             string    `json:"id"`
	ListingID      string    `json:"listingId"`
	ParticipantIDs [2]string `json:"participantIds"`
	LastMessage    Message   `json:"lastMessage"`
	UnreadCount    int       `json:"unreadCount"`
}

// ConversationID builds the identifier of the thread with counterpartID on listingID.
func ConversationID(listingID, counterpartID string) string {
	return listingID + "_" + counterpartID
}
