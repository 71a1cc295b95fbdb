package tui

import (
	"context"
	"encoding/json"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/csheth/tapwrite/internal/compose"
	"github.com/csheth/tapwrite/internal/history"
)

// Messenger delivers composed text through the lookup service.
type Messenger interface {
	Send(ctx context.Context, text string) (json.RawMessage, error)
	WeChat(ctx context.Context) (json.RawMessage, error)
}

type lookupResultMsg struct {
	done compose.Completion
}

type sendResultMsg struct {
	text    string
	ack     json.RawMessage
	err     error
	saveErr error
}

type weChatResultMsg struct {
	err error
}

const sendTimeout = 15 * time.Second

func kindForStage(stage compose.Stage) jobKind {
	switch stage {
	case compose.StageSuggesting:
		return jobKindSuggest
	case compose.StageSplitting:
		return jobKindSplit
	default:
		return jobKindQuery
	}
}

func lookupJob(p *compose.Pending) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		done := p.Run(ctx)
		return lookupResultMsg{done: done}, done.Err
	}
}

// sendJob delivers text and records it in the history log whether or not the
// service acknowledged it.
func sendJob(messenger Messenger, text, historyPath, sessionID string, logger *zap.Logger) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, sendTimeout)
		defer cancel()
		ack, err := messenger.Send(ctx, text)

		entry := history.NewEntry(sessionID, text)
		entry.Ack = ack
		if err != nil {
			entry.Error = err.Error()
		}
		saveErr := history.Append(historyPath, entry)
		if saveErr != nil {
			logger.Warn("history append failed", zap.String("path", historyPath), zap.Error(saveErr))
		}
		return sendResultMsg{text: text, ack: ack, err: err, saveErr: saveErr}, err
	}
}

func weChatJob(messenger Messenger) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, sendTimeout)
		defer cancel()
		_, err := messenger.WeChat(ctx)
		return weChatResultMsg{err: err}, err
	}
}
