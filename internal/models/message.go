package models

// ChatMessage is a single chat line as persisted by the store. ChatID equals
// the guest connection id of the conversation. Every field except Deleted is
// immutable once saved; Deleted only ever transitions false to true.
type ChatMessage struct {
	ID      string `json:"id" gorm:"primaryKey;size:64"`
	ChatID  string `json:"chatId" gorm:"column:chat_id;index"`
	From    string `json:"from" gorm:"column:from_label"`
	Text    string `json:"text"`
	Ts      int64  `json:"ts" gorm:"index"` // milliseconds since epoch, UTC
	Deleted bool   `json:"deleted"`

	// Seq is a store-assigned insertion counter used to break timestamp ties
	// in ordered retrieval. Not part of the wire format.
	Seq int64 `json:"-" gorm:"autoIncrement;uniqueIndex"`
}
