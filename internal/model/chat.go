package model

// ChatMessage 聊天消息文档。ID 由网关在创建时分配，之后不可变；
// 内容一经写入不再编辑，唯一的两种变更是按用户软删除和全局删除。
type ChatMessage struct {
	ID          string   `bson:"_id" json:"id"`
	RoomID      string   `bson:"roomId" json:"roomId"`
	SenderEmail string   `bson:"senderEmail" json:"senderEmail"`
	Text        string   `bson:"text" json:"text"`
	Timestamp   int64    `bson:"timestamp" json:"timestamp"` // 毫秒，展示顺序的全序
	DeletedFor  []string `bson:"deletedFor" json:"-"`        // 对这些用户不可见（软删除）
}

// VisibleTo 消息对用户可见 iff 用户不在 DeletedFor 中
func (m *ChatMessage) VisibleTo(email string) bool {
	for _, u := range m.DeletedFor {
		if u == email {
			return false
		}
	}
	return true
}
