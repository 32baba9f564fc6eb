// Package journal writes trade notes into a Markdown vault (Obsidian
// layout): YAML frontmatter followed by entry rationale, the indicator
// snapshot at entry and a retrospective filled in when the trade closes.
package journal

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"stockdash/internal/model"
	"stockdash/internal/portfolio"
)

const (
	retroHeading     = "## 振り返り（クローズ後に追記）"
	retroPlaceholder = "- P/L: \n- 学び: "
	fence            = "---"
)

// Writer writes notes under a vault directory. A nil *Writer is a disabled
// journal and every method is a no-op.
type Writer struct {
	dir string
}

// New returns a writer rooted at vaultPath/subdir, or nil when vaultPath is
// empty.
func New(vaultPath, subdir string) *Writer {
	if vaultPath == "" {
		return nil
	}
	return &Writer{dir: filepath.Join(vaultPath, subdir)}
}

// frontmatter is the YAML header of a trade note.
type frontmatter struct {
	ID          string   `yaml:"id"`
	Type        string   `yaml:"type"`
	Ticker      string   `yaml:"ticker"`
	Direction   string   `yaml:"direction"`
	EntryDate   string   `yaml:"entry_date"`
	EntryPrice  float64  `yaml:"entry_price"`
	TargetPrice *float64 `yaml:"target_price,omitempty"`
	StopLoss    *float64 `yaml:"stop_loss,omitempty"`
	RiskReward  *float64 `yaml:"risk_reward,omitempty"`
	Status      string   `yaml:"status"`
	ExitDate    string   `yaml:"exit_date,omitempty"`
	ExitPrice   *float64 `yaml:"exit_price,omitempty"`
	PnL         *float64 `yaml:"pnl,omitempty"`
	PnLPct      *float64 `yaml:"pnl_pct,omitempty"`
	Tags        []string `yaml:"tags,flow"`
}

// Filename is the note name for a trade: trade-{entry date}-{ticker} with
// dots replaced so the name has a single extension.
func Filename(entryDate, ticker string) string {
	safe := strings.NewReplacer(".", "_", "/", "_", "\\", "_").Replace(ticker)
	return "trade-" + entryDate + "-" + safe + ".md"
}

func (w *Writer) path(t model.Trade) string {
	return filepath.Join(w.dir, Filename(t.EntryDate, t.Ticker))
}

// WriteEntry creates the note for a newly opened trade and returns its path.
// An empty rec omits the indicator section.
func (w *Writer) WriteEntry(t model.Trade, rec model.IndicatorRecord) (string, error) {
	if w == nil {
		return "", nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("journal mkdir: %w", err)
	}

	fm := frontmatter{
		ID:          "trade-" + t.EntryDate + "-" + t.Ticker,
		Type:        "trade-journal",
		Ticker:      t.Ticker,
		Direction:   string(t.Direction),
		EntryDate:   t.EntryDate,
		EntryPrice:  t.EntryPrice,
		TargetPrice: t.TargetPrice.Ptr(),
		StopLoss:    t.StopLoss.Ptr(),
		RiskReward:  portfolio.RiskReward(t.Direction, t.EntryPrice, t.TargetPrice, t.StopLoss).Ptr(),
		Status:      string(model.TradeOpen),
		Tags:        append([]string{"trade", string(t.Direction)}, t.Tags...),
	}

	var body strings.Builder
	fmt.Fprintf(&body, "# %s %s @%s\n\n", t.Ticker, strings.ToUpper(string(t.Direction)), num(t.EntryPrice))
	body.WriteString("## エントリー根拠\n")
	if t.EntryReason != "" {
		body.WriteString(t.EntryReason + "\n\n")
	} else {
		body.WriteString("(未記入)\n\n")
	}
	if fields := rec.Fields(); len(fields) > 0 {
		body.WriteString("## テクニカル状況（エントリー時点）\n")
		for _, f := range fields {
			fmt.Fprintf(&body, "- %s: %s\n", f.Key, num(f.Value))
		}
		body.WriteString("\n")
	}
	body.WriteString(retroHeading + "\n" + retroPlaceholder + "\n")

	note, err := render(fm, body.String())
	if err != nil {
		return "", err
	}
	path := w.path(t)
	if err := writeFile(path, note); err != nil {
		return "", err
	}
	return path, nil
}

// UpdateOnClose marks the trade's note closed and fills the retrospective.
// A missing note is not an error; the returned path is then empty.
func (w *Writer) UpdateOnClose(t model.Trade) (string, error) {
	if w == nil {
		return "", nil
	}
	path := w.path(t)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("journal read: %w", err)
	}

	fm, body, err := parse(data)
	if err != nil {
		return "", fmt.Errorf("journal %s: %w", path, err)
	}
	fm.Status = string(model.TradeClosed)
	fm.ExitDate = t.ExitDate.ValueOrZero()
	fm.ExitPrice = t.ExitPrice.Ptr()
	fm.PnL = t.PnL.Ptr()
	fm.PnLPct = t.PnLPct.Ptr()

	body = strings.Replace(body, retroPlaceholder, retro(t), 1)

	note, err := render(fm, body)
	if err != nil {
		return "", err
	}
	if err := writeFile(path, note); err != nil {
		return "", err
	}
	return path, nil
}

// retro formats the filled retrospective, e.g.
//
//   - P/L: +150円 (+5.5%)
//   - 決済日: 2024-03-15 @2900
//   - 決済理由: target hit
//   - 学び:
func retro(t model.Trade) string {
	pnl, pct := t.PnL.ValueOrZero(), t.PnLPct.ValueOrZero()
	sign := ""
	if pnl >= 0 {
		sign = "+"
	}
	return fmt.Sprintf("- P/L: %s%.0f円 (%s%.1f%%)\n- 決済日: %s @%s\n- 決済理由: %s\n- 学び: ",
		sign, pnl, sign, pct,
		t.ExitDate.ValueOrZero(), num(t.ExitPrice.ValueOrZero()),
		t.ExitReason.ValueOrZero())
}

func render(fm frontmatter, body string) ([]byte, error) {
	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("journal frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(fence + "\n")
	buf.Write(head)
	buf.WriteString(fence + "\n\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

func parse(data []byte) (frontmatter, string, error) {
	var fm frontmatter
	s := string(data)
	if !strings.HasPrefix(s, fence+"\n") {
		return fm, "", errors.New("missing frontmatter")
	}
	rest := s[len(fence)+1:]
	end := strings.Index(rest, "\n"+fence+"\n")
	if end < 0 {
		return fm, "", errors.New("unterminated frontmatter")
	}
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return fm, "", fmt.Errorf("frontmatter: %w", err)
	}
	body := strings.TrimPrefix(rest[end+len(fence)+2:], "\n")
	return fm, body, nil
}

func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("journal write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("journal write: %w", err)
	}
	return nil
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
