// Package storage persists conversations and group chat sessions in SQLite.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quorumlabs/quorum/internal/council"
)

// ErrNotFound is returned when a conversation or session does not exist.
var ErrNotFound = errors.New("storage: not found")

// Conversation is a council deliberation thread.
type Conversation struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `gorm:"constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// Message is a single turn in a conversation. Assistant turns carry the full
// three-stage deliberation record alongside the synthesized content.
type Message struct {
	ID             uint                            `gorm:"primaryKey" json:"-"`
	ConversationID string                          `gorm:"index" json:"-"`
	Role           string                          `json:"role"`
	Content        string                          `json:"content"`
	Stage1         []council.AdvisorResponse       `gorm:"serializer:json" json:"stage1,omitempty"`
	Stage2         []council.RankingEntry          `gorm:"serializer:json" json:"stage2,omitempty"`
	LabelToModel   map[string]string               `gorm:"serializer:json" json:"label_to_model,omitempty"`
	Aggregate      []council.AggregateRankingEntry `gorm:"serializer:json" json:"aggregate_rankings,omitempty"`
	CreatedAt      time.Time                       `json:"created_at"`
}

// GroupChatSession is a free-form chat with a subset of the roster.
type GroupChatSession struct {
	ID        string             `gorm:"primaryKey" json:"id"`
	Title     string             `json:"title"`
	MemberIDs []string           `gorm:"serializer:json" json:"member_ids"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	Messages  []GroupChatMessage `gorm:"constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// GroupChatMessage is one turn in a group chat. Assistant turns carry every
// member's contribution.
type GroupChatMessage struct {
	ID                 uint                        `gorm:"primaryKey" json:"-"`
	GroupChatSessionID string                      `gorm:"index" json:"-"`
	Role               string                      `json:"role"`
	Content            string                      `json:"content"`
	Responses          []council.GroupChatResponse `gorm:"serializer:json" json:"responses,omitempty"`
	CreatedAt          time.Time                   `json:"created_at"`
}

// Store wraps the SQLite database.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open opens (creating if needed) the database at path and migrates the schema.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(&Conversation{}, &Message{}, &GroupChatSession{}, &GroupChatMessage{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	log.Debug("database ready", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

// CreateConversation inserts a new, empty conversation.
func (s *Store) CreateConversation(id string) (*Conversation, error) {
	conv := &Conversation{ID: id, Title: "New Conversation"}
	if err := s.db.Create(conv).Error; err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// GetConversation loads a conversation with its messages in insertion order.
func (s *Store) GetConversation(id string) (*Conversation, error) {
	var conv Conversation
	err := s.db.Preload("Messages", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).First(&conv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &conv, nil
}

// ListConversations returns conversation metadata, newest first.
func (s *Store) ListConversations() ([]Conversation, error) {
	var convs []Conversation
	if err := s.db.Order("created_at DESC").Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// DeleteConversation removes a conversation and its messages.
func (s *Store) DeleteConversation(id string) error {
	res := s.db.Delete(&Conversation{ID: id})
	if res.Error != nil {
		return fmt.Errorf("delete conversation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return s.db.Where("conversation_id = ?", id).Delete(&Message{}).Error
}

// AddUserMessage appends a user turn to a conversation.
func (s *Store) AddUserMessage(conversationID, content string) error {
	return s.appendMessage(&Message{
		ConversationID: conversationID,
		Role:           "user",
		Content:        content,
	})
}

// AddAssistantMessage appends an assistant turn carrying the deliberation
// record. Content is the chairman's synthesis.
func (s *Store) AddAssistantMessage(conversationID string, res council.Result) error {
	return s.appendMessage(&Message{
		ConversationID: conversationID,
		Role:           "assistant",
		Content:        res.Stage3.Response,
		Stage1:         res.Stage1,
		Stage2:         res.Stage2,
		LabelToModel:   res.LabelToModel,
		Aggregate:      res.Aggregate,
	})
}

func (s *Store) appendMessage(msg *Message) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var conv Conversation
		if err := tx.First(&conv, "id = ?", msg.ConversationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("append message: %w", err)
		}
		return tx.Model(&conv).Update("updated_at", time.Now()).Error
	})
}

// UpdateConversationTitle sets the conversation title.
func (s *Store) UpdateConversationTitle(id, title string) error {
	res := s.db.Model(&Conversation{}).Where("id = ?", id).Update("title", title)
	if res.Error != nil {
		return fmt.Errorf("update title: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateGroupChat inserts a new group chat session with the given members.
func (s *Store) CreateGroupChat(id string, memberIDs []string) (*GroupChatSession, error) {
	sess := &GroupChatSession{ID: id, Title: "New Group Chat", MemberIDs: memberIDs}
	if err := s.db.Create(sess).Error; err != nil {
		return nil, fmt.Errorf("create group chat: %w", err)
	}
	return sess, nil
}

// GetGroupChat loads a session with its messages in insertion order.
func (s *Store) GetGroupChat(id string) (*GroupChatSession, error) {
	var sess GroupChatSession
	err := s.db.Preload("Messages", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).First(&sess, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get group chat: %w", err)
	}
	return &sess, nil
}

// ListGroupChats returns session metadata, newest first.
func (s *Store) ListGroupChats() ([]GroupChatSession, error) {
	var sessions []GroupChatSession
	if err := s.db.Order("created_at DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list group chats: %w", err)
	}
	return sessions, nil
}

// DeleteGroupChat removes a session and its messages.
func (s *Store) DeleteGroupChat(id string) error {
	res := s.db.Delete(&GroupChatSession{ID: id})
	if res.Error != nil {
		return fmt.Errorf("delete group chat: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return s.db.Where("group_chat_session_id = ?", id).Delete(&GroupChatMessage{}).Error
}

// AddGroupUserMessage appends a user turn to a group chat.
func (s *Store) AddGroupUserMessage(sessionID, content string) error {
	return s.appendGroupMessage(&GroupChatMessage{
		GroupChatSessionID: sessionID,
		Role:               "user",
		Content:            content,
	})
}

// AddGroupAssistantMessage appends an assistant turn with every member's
// response. Content is a readable concatenation used for history context.
func (s *Store) AddGroupAssistantMessage(sessionID string, responses []council.GroupChatResponse) error {
	content := ""
	for i, r := range responses {
		if i > 0 {
			content += "\n\n"
		}
		content += fmt.Sprintf("%s: %s", r.AdvisorName, r.Response)
	}
	return s.appendGroupMessage(&GroupChatMessage{
		GroupChatSessionID: sessionID,
		Role:               "assistant",
		Content:            content,
		Responses:          responses,
	})
}

func (s *Store) appendGroupMessage(msg *GroupChatMessage) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var sess GroupChatSession
		if err := tx.First(&sess, "id = ?", msg.GroupChatSessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("append group message: %w", err)
		}
		return tx.Model(&sess).Update("updated_at", time.Now()).Error
	})
}

// UpdateGroupChatTitle sets the session title.
func (s *Store) UpdateGroupChatTitle(id, title string) error {
	res := s.db.Model(&GroupChatSession{}).Where("id = ?", id).Update("title", title)
	if res.Error != nil {
		return fmt.Errorf("update group chat title: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// History converts a session's turns into engine history messages. Assistant
// turns keep their per-member responses; the context builder renders advisor
// answers from those, not from the concatenated content.
func (s *GroupChatSession) History() []council.HistoryMessage {
	out := make([]council.HistoryMessage, 0, len(s.Messages))
	for _, m := range s.Messages {
		out = append(out, council.HistoryMessage{
			Role:      m.Role,
			Content:   m.Content,
			Responses: m.Responses,
		})
	}
	return out
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
