package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"changanet/internal/infrastructure/database"
	chat "changanet/internal/pkg/chat/application/domain"
	repository "changanet/internal/pkg/chat/persistence/repository/port"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgChatRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	return &PgChatRepository{pool: pool}
}

var _ repository.ChatRepository = (*PgChatRepository)(nil)

var errNilPool = errors.New("PgChatRepository: nil pool")

func (r *PgChatRepository) CreateConversationIfAbsent(ctx context.Context, c chat.Conversation) (chat.Conversation, bool, error) {
	if r == nil || r.pool == nil {
		return chat.Conversation{}, false, errNilPool
	}
	var created bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `
			INSERT INTO chat.conversation (id, participant_a, participant_b, created_at, last_activity_at)
			VALUES ($1, $2::uuid, $3::uuid, $4, $4)
			ON CONFLICT (id) DO NOTHING
		`, string(c.ID), c.ParticipantA, c.ParticipantB, c.CreatedAt)
		if err != nil {
			return err
		}
		created = ct.RowsAffected() == 1
		if !created {
			return nil
		}
		for _, p := range c.Participants {
			if _, err := tx.Exec(ctx, `
				INSERT INTO chat.participant (conversation_id, user_id, role)
				VALUES ($1, $2::uuid, $3)
				ON CONFLICT (conversation_id, user_id) DO NOTHING
			`, string(c.ID), p.UserID, p.Role); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return chat.Conversation{}, false, classify(err)
	}

	stored, err := r.GetConversation(ctx, c.ID)
	if err != nil {
		return chat.Conversation{}, false, err
	}
	return stored, created, nil
}

func (r *PgChatRepository) GetConversation(ctx context.Context, id chat.ConversationID) (chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return chat.Conversation{}, errNilPool
	}
	var c chat.Conversation
	err := r.pool.QueryRow(ctx, `
		SELECT id, participant_a::text, participant_b::text, created_at, last_activity_at
		FROM chat.conversation
		WHERE id = $1
	`, string(id)).Scan(&c.ID, &c.ParticipantA, &c.ParticipantB, &c.CreatedAt, &c.LastActivityAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.Conversation{}, repository.ErrConversationNotFound
	}
	if err != nil {
		return chat.Conversation{}, classify(err)
	}

	parts, err := r.loadParticipants(ctx, []string{string(id)})
	if err != nil {
		return chat.Conversation{}, err
	}
	c.Participants = parts[c.ID]
	return c, nil
}

func (r *PgChatRepository) ListConversations(ctx context.Context, userID string, includeArchived bool, limit int, offset int) ([]chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.participant_a::text, c.participant_b::text, c.created_at, c.last_activity_at
		FROM chat.conversation c
		JOIN chat.participant p ON p.conversation_id = c.id AND p.user_id = $1::uuid
		WHERE $2 OR p.archived_at IS NULL
		ORDER BY c.last_activity_at DESC, c.id
		LIMIT $3 OFFSET $4
	`, userID, includeArchived, limit, offset)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var (
		convs []chat.Conversation
		ids   []string
	)
	for rows.Next() {
		var c chat.Conversation
		if err := rows.Scan(&c.ID, &c.ParticipantA, &c.ParticipantB, &c.CreatedAt, &c.LastActivityAt); err != nil {
			return nil, err
		}
		convs = append(convs, c)
		ids = append(ids, string(c.ID))
	}
	if rows.Err() != nil {
		return nil, classify(rows.Err())
	}
	if len(convs) == 0 {
		return convs, nil
	}

	parts, err := r.loadParticipants(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range convs {
		convs[i].Participants = parts[convs[i].ID]
	}
	return convs, nil
}

func (r *PgChatRepository) SetArchived(ctx context.Context, id chat.ConversationID, userID string, archived bool) (chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return chat.Conversation{}, errNilPool
	}
	var archivedAt *time.Time
	if archived {
		now := time.Now().UTC()
		archivedAt = &now
	}
	// COALESCE keeps the original timestamp when archiving twice.
	ct, err := r.pool.Exec(ctx, `
		UPDATE chat.participant
		SET archived_at = CASE WHEN $3::timestamptz IS NULL THEN NULL ELSE COALESCE(archived_at, $3) END
		WHERE conversation_id = $1 AND user_id = $2::uuid
	`, string(id), userID, archivedAt)
	if err != nil {
		return chat.Conversation{}, classify(err)
	}
	if ct.RowsAffected() == 0 {
		return chat.Conversation{}, repository.ErrConversationNotFound
	}
	return r.GetConversation(ctx, id)
}

func (r *PgChatRepository) SaveMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	if r == nil || r.pool == nil {
		return chat.Message{}, errNilPool
	}
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		// Locks the conversation row, serializing writers of the same conversation.
		ct, err := tx.Exec(ctx, `
			UPDATE chat.conversation
			SET last_activity_at = GREATEST(last_activity_at, $2)
			WHERE id = $1
		`, string(m.ConversationID), m.CreatedAt)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return repository.ErrConversationNotFound
		}
		return tx.QueryRow(ctx, `
			INSERT INTO chat.message (conversation_id, sender_id, body, status, created_at)
			VALUES ($1, $2::uuid, $3, $4, $5)
			RETURNING id::text, created_at
		`, string(m.ConversationID), m.SenderID, m.Body, m.Status, m.CreatedAt).Scan(&m.ID, &m.CreatedAt)
	})
	if errors.Is(err, repository.ErrConversationNotFound) {
		return chat.Message{}, err
	}
	if err != nil {
		return chat.Message{}, classify(err)
	}
	return m, nil
}

func (r *PgChatRepository) GetMessagesByConversation(ctx context.Context, id chat.ConversationID, limit int, offset int) ([]chat.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, conversation_id, sender_id::text, body, status, created_at
		FROM chat.message
		WHERE conversation_id = $1
		ORDER BY seq DESC
		LIMIT $2 OFFSET $3
	`, string(id), limit, offset)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var msg chat.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Body, &msg.Status, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if rows.Err() != nil {
		return nil, classify(rows.Err())
	}
	return msgs, nil
}

func (r *PgChatRepository) MarkDelivered(ctx context.Context, messageID string) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errNilPool
	}
	var advanced bool
	err := r.pool.QueryRow(ctx, `
		WITH updated AS (
			UPDATE chat.message SET status = $2
			WHERE id = $1::uuid AND status = $3
			RETURNING id
		)
		SELECT true FROM updated
		UNION ALL
		SELECT false FROM chat.message WHERE id = $1::uuid AND NOT EXISTS (SELECT 1 FROM updated)
	`, messageID, chat.MessageStatusDelivered, chat.MessageStatusSent).Scan(&advanced)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, repository.ErrMessageNotFound
	}
	if err != nil {
		return false, classify(err)
	}
	return advanced, nil
}

func (r *PgChatRepository) MarkRead(ctx context.Context, id chat.ConversationID, readerID string, upTo *string) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, errNilPool
	}
	var updated int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var lastSeq int64
		var lastID string
		var err error
		if upTo != nil {
			err = tx.QueryRow(ctx, `
				SELECT seq, id::text FROM chat.message WHERE id = $1::uuid AND conversation_id = $2
			`, *upTo, string(id)).Scan(&lastSeq, &lastID)
		} else {
			err = tx.QueryRow(ctx, `
				SELECT seq, id::text FROM chat.message WHERE conversation_id = $1 ORDER BY seq DESC LIMIT 1
			`, string(id)).Scan(&lastSeq, &lastID)
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrMessageNotFound
		}
		if err != nil {
			return err
		}

		ct, err := tx.Exec(ctx, `
			UPDATE chat.message
			SET status = $4
			WHERE conversation_id = $1 AND sender_id <> $2::uuid AND seq <= $3 AND status < $4
		`, string(id), readerID, lastSeq, chat.MessageStatusRead)
		if err != nil {
			return err
		}
		updated = ct.RowsAffected()

		// UpdateParticipantReadState
		ct, err = tx.Exec(ctx, `
			UPDATE chat.participant
			SET last_read_msg = $3::uuid
			WHERE conversation_id = $1 AND user_id = $2::uuid
		`, string(id), readerID, lastID)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return repository.ErrConversationNotFound
		}
		return nil
	})
	if errors.Is(err, repository.ErrMessageNotFound) || errors.Is(err, repository.ErrConversationNotFound) {
		return 0, err
	}
	if err != nil {
		return 0, classify(err)
	}
	return updated, nil
}

func (r *PgChatRepository) loadParticipants(ctx context.Context, ids []string) (map[chat.ConversationID][]chat.Participant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT conversation_id, user_id::text, role, archived_at, last_read_msg::text
		FROM chat.participant
		WHERE conversation_id = ANY($1)
		ORDER BY conversation_id, user_id
	`, ids)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := make(map[chat.ConversationID][]chat.Participant, len(ids))
	for rows.Next() {
		var p chat.Participant
		if err := rows.Scan(&p.ConversationID, &p.UserID, &p.Role, &p.ArchivedAt, &p.LastReadMsg); err != nil {
			return nil, err
		}
		out[p.ConversationID] = append(out[p.ConversationID], p)
	}
	if rows.Err() != nil {
		return nil, classify(rows.Err())
	}
	return out, nil
}

// classify tags transient failures with repository.ErrUnavailable so the
// use cases know they may retry.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if database.IsTransient(err) {
		return fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
	}
	return err
}
