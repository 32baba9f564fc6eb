package llm

import (
	"fmt"
	"strconv"
	"strings"

	"stockdash/internal/model"
)

// SystemPrompt frames the assistant as a swing-trade analysis aid.
const SystemPrompt = `あなたは株式スイングトレード（数日〜数週間の短中期売買）の分析アシスタントです。

## 役割
- テクニカル・ファンダメンタル両面から銘柄を分析
- エントリー/イグジットのタイミングについて客観的な見解を提示
- リスク要因を必ず併記（楽観バイアスを避ける）
- 過去のトレード実績がある場合、パターンを踏まえた助言

## 制約
- 投資助言ではなく分析支援であることを認識
- 「絶対」「必ず」等の断定表現を避ける
- データが不十分な場合は明示する
- 日本語で回答

## 出力フォーマット
分析時は以下の構造で回答:
1. **サマリー**: 1-2文で結論
2. **テクニカル分析**: 提供された指標の解釈
3. **注目ポイント**: エントリー/イグジットの判断材料
4. **リスク**: 下落シナリオや注意点
`

// ContextSeparator joins the data context and the user's question.
const ContextSeparator = "\n\n---\n\n"

// BuildContext renders indicator data and trade statistics as the Markdown
// block prepended to a chat message. Either part may be absent; with
// neither the result is empty.
func BuildContext(ticker string, rec model.IndicatorRecord, stats *model.TradeStats) string {
	var parts []string

	if ticker != "" && !rec.Empty() {
		parts = append(parts, fmt.Sprintf("## %s テクニカルデータ", ticker))
		if rec.Date != "" {
			parts = append(parts, "- データ日付: "+rec.Date)
		}
		if v, ok := rec.Get(model.KeyRSI14); ok {
			parts = append(parts, "- RSI(14): "+num(v))
		}
		if v, ok := rec.Get(model.KeyMACD); ok {
			parts = append(parts, fmt.Sprintf("- MACD: %s / Signal: %s", num(v), orNA(rec, model.KeyMACDSignal)))
		}
		if v, ok := rec.Get(model.KeyBBPosition); ok {
			parts = append(parts, fmt.Sprintf("- BB位置: %s (0=下限, 1=上限)", num(v)))
		}
		if v, ok := rec.Get(model.KeyVolumeRatio); ok {
			parts = append(parts, fmt.Sprintf("- 出来高倍率(vs 20日平均): %sx", num(v)))
		}
		if v, ok := rec.Get(model.KeySMA20); ok {
			parts = append(parts, fmt.Sprintf("- SMA20: %s / SMA50: %s", num(v), orNA(rec, model.KeySMA50)))
		}
	}

	if stats != nil {
		parts = append(parts,
			"\n## 過去のトレード実績",
			"- total_trades: "+strconv.Itoa(stats.TotalTrades),
			"- open_positions: "+strconv.Itoa(stats.OpenPositions),
			"- wins: "+strconv.Itoa(stats.Wins),
			"- losses: "+strconv.Itoa(stats.Losses),
			"- win_rate: "+num(stats.WinRate),
			"- total_pnl: "+num(stats.TotalPnL),
			"- avg_pnl_pct: "+num(stats.AvgPnLPct),
		)
	}

	return strings.Join(parts, "\n")
}

// ComposeMessage prefixes message with dataContext when there is any.
func ComposeMessage(dataContext, message string) string {
	if dataContext == "" {
		return message
	}
	return dataContext + ContextSeparator + message
}

func orNA(rec model.IndicatorRecord, key string) string {
	if v, ok := rec.Get(key); ok {
		return num(v)
	}
	return "N/A"
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
