package realtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/kaiwa/internal/metrics"
	"github.com/hitoshi/kaiwa/internal/model"
)

// ConversationAuthorizer は会話の存在とメンバーシップを検証する。
// conversation.Serviceが実装する。
type ConversationAuthorizer interface {
	Get(ctx context.Context, requesterID, conversationID string) (*model.Conversation, error)
}

// MessageAppender はメッセージを検証して永続化する。
// message.Serviceが実装する。
type MessageAppender interface {
	Append(ctx context.Context, senderID, conversationID, body string) (*model.Message, error)
}

// Broker はクライアントイベントをドメイン操作に仲介する。
//
// 配信規律: メッセージは必ず永続化に成功してから配信される。
// 永続化に失敗した場合、エラーイベントは送信者にのみ通知され、
// ルームの他のメンバーには何も配信されない。
type Broker struct {
	registry      *Registry
	conversations ConversationAuthorizer
	messages      MessageAppender
	metrics       metrics.MetricsCollector
}

// NewBroker はBrokerの新しいインスタンスを生成する。
func NewBroker(
	registry *Registry,
	conversations ConversationAuthorizer,
	messages MessageAppender,
	collector metrics.MetricsCollector,
) *Broker {
	return &Broker{
		registry:      registry,
		conversations: conversations,
		messages:      messages,
		metrics:       collector,
	}
}

// HandleJoin はjoinイベントを処理する。
// 会話が存在し、かつセッションのユーザーがメンバーである場合のみ
// ルームに参加させる。検証に失敗した場合はエラーイベントを送信者に返す。
func (b *Broker) HandleJoin(ctx context.Context, sess ClientSession, conversationID string) {
	if _, err := b.conversations.Get(ctx, sess.UserID(), conversationID); err != nil {
		b.sendError(sess, err)
		return
	}

	b.registry.Join(conversationID, sess)
	slog.Debug("session joined room",
		slog.String("session_id", sess.ID()),
		slog.String("conversation_id", conversationID),
	)
}

// HandleLeave はleaveイベントを処理する。冪等。
func (b *Broker) HandleLeave(sess ClientSession, conversationID string) {
	b.registry.Leave(conversationID, sess)
}

// HandleSend はsendイベントを処理する。
// メッセージを永続化したうえで、会話ルームの全セッション
// （送信者自身を含む）へmessageイベントを配信する。
func (b *Broker) HandleSend(ctx context.Context, sess ClientSession, conversationID, text string) {
	start := time.Now()
	msg, err := b.messages.Append(ctx, sess.UserID(), conversationID, text)
	if err != nil {
		b.metrics.RecordSendFailure(failureReason(err))
		b.sendError(sess, err)
		return
	}
	b.metrics.RecordPersistLatency(time.Since(start))
	b.metrics.RecordMessageSent()

	payload, err := EncodeMessageEvent(msg)
	if err != nil {
		slog.Error("failed to encode message event",
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
		b.sendError(sess, err)
		return
	}

	delivered := b.registry.Broadcast(conversationID, payload)
	b.metrics.RecordBroadcastDeliveries(delivered)
}

// sendError はエラーイベントを送信者にのみ通知する。
func (b *Broker) sendError(sess ClientSession, err error) {
	if sendErr := sess.Send(EncodeErrorEvent(err)); sendErr != nil {
		slog.Warn("failed to deliver error event",
			slog.String("session_id", sess.ID()),
			slog.String("error", sendErr.Error()),
		)
	}
}

// failureReason はメトリクスのラベルに使う失敗理由を返す。
func failureReason(err error) string {
	if apiErr, ok := model.AsAPIError(err); ok {
		return apiErr.Category
	}
	return "system"
}
