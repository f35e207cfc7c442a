package telegram

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/capitalize-ai/callerid-relay/internal/relay"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	historyPageSize     = 100
	latestScanSize      = 20
)

type rpc interface {
	MessagesSendMessage(ctx context.Context, request *tg.MessagesSendMessageRequest) (tg.UpdatesClass, error)
	MessagesGetHistory(ctx context.Context, request *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error)
	MessagesGetMessages(ctx context.Context, id []tg.InputMessageClass) (tg.MessagesMessagesClass, error)
}

// ResolveFunc resolves a public username to an input peer.
type ResolveFunc func(ctx context.Context, domain string) (tg.InputPeerClass, error)

// Transport implements relay.Transport over the raw Telegram API.
type Transport struct {
	api          rpc
	resolve      ResolveFunc
	pollInterval time.Duration
}

var _ relay.Transport = (*Transport)(nil)

// NewTransport creates a transport. Replies are detected by polling the
// conversation history every pollInterval.
func NewTransport(api rpc, resolve ResolveFunc, pollInterval time.Duration) *Transport {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Transport{
		api:          api,
		resolve:      resolve,
		pollInterval: pollInterval,
	}
}

// ResolveTarget implements relay.Transport.
func (t *Transport) ResolveTarget(ctx context.Context, name string) (relay.Target, error) {
	domain := strings.TrimPrefix(strings.TrimSpace(name), "@")
	if domain == "" {
		return relay.Target{}, errors.New("empty target name")
	}

	p, err := t.resolve(ctx, domain)
	if err != nil {
		return relay.Target{}, wrapErr(err)
	}
	return relay.Target{Name: name, Ref: p}, nil
}

// SendAndAwaitReply implements relay.Transport. The first inbound message
// newer than anything seen before sending is the reply.
func (t *Transport) SendAndAwaitReply(ctx context.Context, target relay.Target, text string, timeout time.Duration) (relay.Message, error) {
	p, err := inputPeer(target)
	if err != nil {
		return relay.Message{}, err
	}

	baseline, err := t.newestID(ctx, p)
	if err != nil {
		return relay.Message{}, err
	}
	if err := t.send(ctx, p, text); err != nil {
		return relay.Message{}, err
	}

	waitCtx, cancel := context.WithTimeoutCause(ctx, timeout, relay.ErrReplyTimeout)
	defer cancel()

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		msgs, err := t.history(waitCtx, p, baseline, 0, historyPageSize)
		if err != nil {
			if waitCtx.Err() != nil {
				return relay.Message{}, context.Cause(waitCtx)
			}
			// The query is already out. A flood wait here only delays the
			// next poll; reporting it would make the caller send again.
			var fw *relay.FloodWaitError
			if !errors.As(err, &fw) {
				return relay.Message{}, err
			}
			if !sleepCtx(waitCtx, fw.Wait) {
				return relay.Message{}, context.Cause(waitCtx)
			}
			continue
		}
		if reply, ok := earliestInbound(msgs); ok {
			return reply, nil
		}

		select {
		case <-waitCtx.Done():
			return relay.Message{}, context.Cause(waitCtx)
		case <-ticker.C:
		}
	}
}

// SendMessage implements relay.Transport.
func (t *Transport) SendMessage(ctx context.Context, target relay.Target, text string) error {
	p, err := inputPeer(target)
	if err != nil {
		return err
	}
	return t.send(ctx, p, text)
}

// LatestInbound implements relay.Transport.
func (t *Transport) LatestInbound(ctx context.Context, target relay.Target) (relay.Message, bool, error) {
	p, err := inputPeer(target)
	if err != nil {
		return relay.Message{}, false, err
	}

	msgs, err := t.history(ctx, p, 0, 0, latestScanSize)
	if err != nil {
		return relay.Message{}, false, err
	}
	for _, m := range msgs {
		if m.Inbound() {
			return m, true, nil
		}
	}
	return relay.Message{}, false, nil
}

// MessageByID implements relay.Transport.
func (t *Transport) MessageByID(ctx context.Context, target relay.Target, id int) (relay.Message, bool, error) {
	if _, err := inputPeer(target); err != nil {
		return relay.Message{}, false, err
	}

	res, err := t.api.MessagesGetMessages(ctx, []tg.InputMessageClass{&tg.InputMessageID{ID: id}})
	if err != nil {
		return relay.Message{}, false, wrapErr(err)
	}
	for _, m := range extractMessages(res) {
		if m.ID == id {
			return m, true, nil
		}
	}
	return relay.Message{}, false, nil
}

// MessagesAfter implements relay.Transport. Messages are returned newest
// first.
func (t *Transport) MessagesAfter(ctx context.Context, target relay.Target, id int) ([]relay.Message, error) {
	p, err := inputPeer(target)
	if err != nil {
		return nil, err
	}

	var (
		out      []relay.Message
		offsetID int
	)
	for {
		page, err := t.history(ctx, p, id, offsetID, historyPageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < historyPageSize {
			return out, nil
		}
		offsetID = page[len(page)-1].ID
	}
}

func (t *Transport) newestID(ctx context.Context, p tg.InputPeerClass) (int, error) {
	msgs, err := t.history(ctx, p, 0, 0, 1)
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, nil
	}
	return msgs[0].ID, nil
}

func (t *Transport) history(ctx context.Context, p tg.InputPeerClass, minID, offsetID, limit int) ([]relay.Message, error) {
	res, err := t.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:     p,
		OffsetID: offsetID,
		MinID:    minID,
		Limit:    limit,
	})
	if err != nil {
		return nil, wrapErr(err)
	}

	msgs := extractMessages(res)
	if minID > 0 {
		kept := msgs[:0]
		for _, m := range msgs {
			if m.ID > minID {
				kept = append(kept, m)
			}
		}
		msgs = kept
	}
	return msgs, nil
}

func (t *Transport) send(ctx context.Context, p tg.InputPeerClass, text string) error {
	randomID, err := newRandomID()
	if err != nil {
		return err
	}
	_, err = t.api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:     p,
		Message:  text,
		RandomID: randomID,
	})
	return wrapErr(err)
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func inputPeer(target relay.Target) (tg.InputPeerClass, error) {
	p, ok := target.Ref.(tg.InputPeerClass)
	if !ok || p == nil {
		return nil, fmt.Errorf("target %q is not a resolved telegram peer", target.Name)
	}
	return p, nil
}

// extractMessages converts a history response to relay messages, newest
// first. Service and empty messages are skipped.
func extractMessages(res tg.MessagesMessagesClass) []relay.Message {
	var raw []tg.MessageClass
	switch v := res.(type) {
	case *tg.MessagesMessages:
		raw = v.Messages
	case *tg.MessagesMessagesSlice:
		raw = v.Messages
	case *tg.MessagesChannelMessages:
		raw = v.Messages
	default:
		return nil
	}

	out := make([]relay.Message, 0, len(raw))
	for _, mc := range raw {
		m, ok := mc.(*tg.Message)
		if !ok {
			continue
		}
		msg := relay.Message{
			ID:     m.ID,
			Text:   m.Message,
			Out:    m.Out,
			SentAt: time.Unix(int64(m.Date), 0),
		}
		if edited, ok := m.GetEditDate(); ok && edited > 0 {
			msg.EditedAt = time.Unix(int64(edited), 0)
		}
		out = append(out, msg)
	}
	return out
}

func earliestInbound(newestFirst []relay.Message) (relay.Message, bool) {
	for i := len(newestFirst) - 1; i >= 0; i-- {
		if newestFirst[i].Inbound() {
			return newestFirst[i], true
		}
	}
	return relay.Message{}, false
}

// wrapErr turns FLOOD_WAIT errors into relay.FloodWaitError.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if d, ok := tgerr.AsFloodWait(err); ok {
		return &relay.FloodWaitError{Wait: d}
	}
	return err
}

func newRandomID() (int64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("random id: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
