package dashboard

import (
	"context"
	"fmt"
	"log"

	"stockdash/internal/llm"
	"stockdash/internal/marketdata"
	"stockdash/internal/model"
)

// ChatRequest is one analysis chat turn.
type ChatRequest struct {
	Message        string `json:"message"`
	Ticker         string `json:"ticker,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponse carries the assistant's reply and, when a ticker was named
// and had enough history, the indicators it was given.
type ChatResponse struct {
	Response       string                   `json:"response"`
	ConversationID string                   `json:"conversation_id"`
	Indicators     *model.IndicatorSnapshot `json:"indicators"`
}

// Chat answers req. When a ticker is named, its current indicators and the
// trade log statistics are prepended as context.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if req.Message == "" {
		return ChatResponse{}, fmt.Errorf("%w: message is required", ErrInvalid)
	}
	if s.chat == nil {
		return ChatResponse{}, llm.ErrNotConfigured
	}

	var (
		resp        ChatResponse
		dataContext string
	)
	if ticker := marketdata.NormalizeTicker(req.Ticker); ticker != "" {
		snap, err := s.Indicators(ctx, ticker, s.period)
		if err != nil {
			log.Printf("[dashboard] chat %s: indicators unavailable: %v", ticker, err)
		} else if !snap.Empty() {
			resp.Indicators = &snap
			var stats *model.TradeStats
			if st, err := s.TradeStats(ctx); err == nil && st.TotalTrades > 0 {
				stats = &st
			}
			dataContext = llm.BuildContext(ticker, snap.IndicatorRecord, stats)
		}
	}

	reply, id, err := s.chat.Chat(ctx, req.Message, req.ConversationID, dataContext)
	if err != nil {
		return ChatResponse{}, err
	}
	resp.Response = reply
	resp.ConversationID = id
	return resp, nil
}
