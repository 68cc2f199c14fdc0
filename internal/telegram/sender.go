package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"gplanner/pkg/logx"
)

// Config configures the outbound Telegram channel.
type Config struct {
	Token      string
	ChatID     int64
	RatePerSec int // default 1
}

// api is the slice of the bot client the sender needs; swapped in tests.
type api interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Sender pushes text messages to one chat, chunking long text on
// whitespace boundaries and rate-limiting the sends.
type Sender struct {
	cfg     Config
	bot     api
	limiter *rate.Limiter
	log     logx.Logger
}

func New(cfg Config, log logx.Logger) (*Sender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is not set")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	return newWithAPI(cfg, b, log), nil
}

func newWithAPI(cfg Config, bot api, log logx.Logger) *Sender {
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &Sender{
		cfg:     cfg,
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
	}
}

// Send delivers text to the configured chat as one or more ordered
// messages. Overall success is the AND of all chunk sends; a failed chunk
// is logged and the remaining chunks are still attempted.
func (s *Sender) Send(ctx context.Context, text string) bool {
	chunks := SplitText(text, MaxChunkRunes)
	if len(chunks) == 0 {
		return true
	}

	ok := true
	for i, chunk := range chunks {
		if err := s.limiter.Wait(ctx); err != nil {
			s.log.Warn("send aborted", logx.Int("chunk", i), logx.Err(err))
			return false
		}
		if _, err := s.bot.Send(tele.ChatID(s.cfg.ChatID), chunk); err != nil {
			s.log.Warn("telegram chunk send failed",
				logx.Int("chunk", i), logx.Int("chunks", len(chunks)), logx.Err(err))
			ok = false
			continue
		}
		s.log.Debug("telegram chunk sent", logx.Int("chunk", i), logx.Int("chunks", len(chunks)))
	}
	if ok {
		s.log.Info("message delivered", logx.Int("chunks", len(chunks)), logx.Int64("chat_id", s.cfg.ChatID))
	}
	return ok
}

// SendTimeout wraps Send with a bounded deadline so a stalled Bot API call
// cannot stall a scheduler job indefinitely.
func (s *Sender) SendTimeout(ctx context.Context, text string, d time.Duration) bool {
	if d <= 0 {
		return s.Send(ctx, text)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return s.Send(ctx, text)
}
